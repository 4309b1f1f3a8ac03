// internal/pkg/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter throttles login attempts per client using a Redis counter window.
type Limiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewLimiter(client *redis.Client, maxAttempts int64, window time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Limiter{client: client, maxAttempts: maxAttempts, window: window}
}

// AllowLogin counts one attempt and reports whether it is within the window
// budget, plus the attempts remaining.
func (l *Limiter) AllowLogin(ctx context.Context, ip, email string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment login attempt: %w", err)
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}

	remaining := l.maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.maxAttempts, remaining, nil
}

// Reset clears the attempt counter after a successful login.
func (l *Limiter) Reset(ctx context.Context, ip, email string) error {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)
	return l.client.Del(ctx, key).Err()
}
