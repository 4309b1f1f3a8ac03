// internal/service/auth/auth.go
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadcrm-service/internal/domain/auth"
	xerrors "leadcrm-service/internal/pkg/errors"
	"leadcrm-service/internal/pkg/jwt"
	"leadcrm-service/internal/pkg/ratelimit"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence surface the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *auth.User) error
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	FindByID(ctx context.Context, id int64) (*auth.User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

type Service struct {
	users   UserStore
	tokens  *jwt.Manager
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

func NewService(users UserStore, tokens *jwt.Manager, limiter *ratelimit.Limiter, logger *zap.Logger) *Service {
	return &Service{users: users, tokens: tokens, limiter: limiter, logger: logger}
}

// Register creates a new agent account.
func (s *Service) Register(ctx context.Context, req *auth.RegisterRequest) (*auth.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &auth.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         auth.RoleAgent,
		IsActive:     true,
	}
	if team := strings.TrimSpace(req.TeamName); team != "" {
		user.TeamName = sql.NullString{String: team, Valid: true}
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			return nil, fmt.Errorf("%w: email already registered", xerrors.ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("email", email))
	return user, nil
}

// Login verifies credentials and issues an access token. Attempts are rate
// limited per client IP and email.
func (s *Service) Login(ctx context.Context, req *auth.LoginRequest, clientIP string) (*auth.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if s.limiter != nil {
		allowed, remaining, err := s.limiter.AllowLogin(ctx, clientIP, email)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.logger.Warn("login rate limited",
				zap.String("email", email),
				zap.String("ip", clientIP),
				zap.Int64("remaining", remaining))
			return nil, fmt.Errorf("%w: too many login attempts", xerrors.ErrRateLimited)
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", xerrors.ErrUnauthorized)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account disabled", xerrors.ErrForbidden)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", xerrors.ErrUnauthorized)
	}

	token, err := s.tokens.Generate(user.ID, string(user.Role), user.TeamName.String)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	now := time.Now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if s.limiter != nil {
		_ = s.limiter.Reset(ctx, clientIP, email)
	}

	user.LastLoginAt = sql.NullTime{Time: now, Valid: true}
	return &auth.LoginResponse{Token: token, User: user}, nil
}

// Profile returns the account for an authenticated user id.
func (s *Service) Profile(ctx context.Context, userID int64) (*auth.User, error) {
	return s.users.FindByID(ctx, userID)
}
