// internal/app/server.go
package app

import (
	"context"
	"fmt"

	"leadcrm-service/internal/config"
	"leadcrm-service/internal/db"
	authHandler "leadcrm-service/internal/handlers/auth"
	customerHandler "leadcrm-service/internal/handlers/customer"
	teamHandler "leadcrm-service/internal/handlers/team"
	"leadcrm-service/internal/middleware"
	"leadcrm-service/internal/pkg/jwt"
	"leadcrm-service/internal/pkg/planstore"
	"leadcrm-service/internal/pkg/ratelimit"
	"leadcrm-service/internal/repository/postgres"
	authsvc "leadcrm-service/internal/service/auth"
	customersvc "leadcrm-service/internal/service/customer"
	"leadcrm-service/internal/service/notification"
	remindersvc "leadcrm-service/internal/service/reminder"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg       config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	reminders *remindersvc.Service
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectPostgres(ctx, db.PostgresConfig{DSN: s.cfg.DatabaseDSN})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// ----- JWT Manager -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}

	// ----- Rate limiter & plan store -----
	limiter := ratelimit.NewLimiter(redisClient, s.cfg.LoginMaxAttempts, s.cfg.LoginWindow)
	plans := planstore.NewRedisStore(redisClient)

	// ----- Notification channels -----
	var emailCh notification.EmailChannel
	if s.cfg.SMTPHost != "" {
		emailCh = notification.NewEmailSender(
			s.cfg.SMTPHost,
			s.cfg.SMTPPort,
			s.cfg.SMTPUser,
			s.cfg.SMTPPass,
			s.cfg.SMTPFromName,
			s.cfg.SMTPSecure,
		)
	}
	var whatsappCh notification.MessageChannel
	if s.cfg.TwilioAccountSID != "" {
		whatsappCh = notification.NewWhatsAppSender(
			s.cfg.TwilioAccountSID,
			s.cfg.TwilioAuthToken,
			s.cfg.TwilioWhatsAppNumber,
		)
	}
	dispatcher := notification.NewDispatcher(emailCh, whatsappCh, s.cfg.AdminEmail, logger)

	// ----- Repositories -----
	customerRepo := postgres.NewCustomerRepository(pool)
	teamRepo := postgres.NewTeamRepository(pool)
	reminderRepo := postgres.NewReminderRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// ----- Services -----
	customerService := customersvc.NewService(customerRepo, teamRepo, plans, dispatcher, logger)
	authService := authsvc.NewService(userRepo, jwtManager, limiter, logger)

	s.reminders = remindersvc.NewService(reminderRepo, whatsappCh, emailCh, s.cfg.ReminderSchedule, logger)
	if err := s.reminders.Start(); err != nil {
		return fmt.Errorf("failed to start reminder scheduler: %w", err)
	}

	// ----- Handlers -----
	customerHandlerInst := customerHandler.NewCustomerHandler(customerService)
	authHandlerInst := authHandler.NewAuthHandler(authService)
	teamHandlerInst := teamHandler.NewTeamHandler(teamRepo)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:     authHandlerInst,
		CustomerHandler: customerHandlerInst,
		TeamHandler:     teamHandlerInst,
		AuthMiddleware:  authMiddleware,
	}
	SetupRouter(s.engine, handlers)

	// ----- Start HTTP -----
	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown stops background workers.
func (s *Server) Shutdown() {
	if s.reminders != nil {
		s.reminders.Stop()
	}
	if s.logger != nil {
		s.logger.Info("server stopped")
	}
}
