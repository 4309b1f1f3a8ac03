// internal/pkg/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
var ErrExhausted = errors.New("retry attempts exhausted")

// Do runs op up to maxAttempts times. A failed attempt is retried only when
// retryable reports true for its error; otherwise the error is returned as-is.
// A non-zero backoff is slept between attempts, honoring context cancellation.
func Do(ctx context.Context, maxAttempts int, backoff time.Duration, retryable func(error) bool, op func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, maxAttempts, lastErr)
}
