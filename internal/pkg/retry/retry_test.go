package retry

import (
	"context"
	"errors"
	"testing"
)

var errTransient = errors.New("transient")

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, 0, nil, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, 0,
		func(err error) bool { return errors.Is(err, errTransient) },
		func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), 5, 0,
		func(err error) bool { return errors.Is(err, errTransient) },
		func(ctx context.Context) error {
			calls++
			return fatal
		})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want fatal", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoExhausts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 4, 0,
		func(err error) bool { return true },
		func(ctx context.Context) error {
			calls++
			return errTransient
		})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 10, 0,
		func(err error) bool { return true },
		func(ctx context.Context) error {
			calls++
			cancel()
			return errTransient
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
