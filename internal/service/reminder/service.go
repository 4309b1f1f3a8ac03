// internal/service/reminder/service.go
package reminder

import (
	"context"
	"time"

	"leadcrm-service/internal/domain/customer"
	"leadcrm-service/internal/domain/reminder"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Repository is the persistence surface for the follow-up sweep.
type Repository interface {
	ListDueFollowUps(ctx context.Context, asOf, since time.Time, limit int) ([]customer.Record, error)
	RecordSent(ctx context.Context, log *reminder.Log) error
}

type whatsappSender interface {
	Send(to, body string) (string, error)
}

type emailSender interface {
	Send(to, subject, bodyHTML string) error
}

// Service periodically reminds agents of due follow-ups. A record is
// reminded at most once per dedupe window even across restarts, because
// the query excludes records with a recent reminder log.
type Service struct {
	repo         Repository
	whatsapp     whatsappSender
	email        emailSender
	logger       *zap.Logger
	cron         *cron.Cron
	schedule     string
	batchSize    int
	dedupeWindow time.Duration
}

func NewService(repo Repository, whatsapp whatsappSender, email emailSender, schedule string, logger *zap.Logger) *Service {
	if schedule == "" {
		schedule = "0 9 * * *" // daily at 09:00
	}
	return &Service{
		repo:         repo,
		whatsapp:     whatsapp,
		email:        email,
		logger:       logger,
		cron:         cron.New(),
		schedule:     schedule,
		batchSize:    200,
		dedupeWindow: 20 * time.Hour,
	}
}

// Start registers the sweep on the cron schedule and starts the scheduler.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep sends one reminder per due follow-up.
func (s *Service) Sweep(ctx context.Context) {
	since := time.Now().Add(-s.dedupeWindow)
	due, err := s.repo.ListDueFollowUps(ctx, time.Now(), since, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list due follow-ups", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Info("processing due follow-ups", zap.Int("count", len(due)))

	for i := range due {
		s.remind(ctx, &due[i])
	}
}

func (s *Service) remind(ctx context.Context, rec *customer.Record) {
	name := rec.FirstName.String
	body := "Hi " + name + ", just following up on our earlier conversation. Reply here and we will pick it up."

	channel, destination, err := s.send(rec, body)
	if err != nil {
		s.logger.Warn("failed to send follow-up reminder",
			zap.String("uid", rec.UID), zap.Error(err))
		return
	}
	if channel == "" {
		s.logger.Warn("no reachable channel for follow-up", zap.String("uid", rec.UID))
		return
	}

	log := &reminder.Log{
		CustomerID:  rec.ID,
		Channel:     channel,
		Destination: destination,
		SentAt:      time.Now(),
	}
	if err := s.repo.RecordSent(ctx, log); err != nil {
		s.logger.Error("failed to record reminder",
			zap.String("uid", rec.UID), zap.Error(err))
	}
}

// send prefers WhatsApp and falls back to email.
func (s *Service) send(rec *customer.Record, body string) (channel, destination string, err error) {
	if s.whatsapp != nil && rec.WhatsApp.Valid && rec.WhatsApp.String != "" {
		if _, err := s.whatsapp.Send(rec.WhatsApp.String, body); err != nil {
			return "", "", err
		}
		return "whatsapp", rec.WhatsApp.String, nil
	}
	if s.email != nil && rec.Email.Valid && rec.Email.String != "" {
		if err := s.email.Send(rec.Email.String, "Following up", "<p>"+body+"</p>"); err != nil {
			return "", "", err
		}
		return "email", rec.Email.String, nil
	}
	return "", "", nil
}
