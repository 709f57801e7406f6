package distance

import (
	"context"
	"time"
)

// RetryPolicy controls how route lookups are retried before falling back
type RetryPolicy struct {
	// MaxAttempts is the total number of upstream calls, including the first
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based)
	Backoff func(attempt int) time.Duration
	// Sleep waits for d or until ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy waits attempt × 500ms between at most three attempts
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(500 * time.Millisecond),
		Sleep:       SleepContext,
	}
}

// LinearBackoff waits attempt × step
func LinearBackoff(step time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// SleepContext blocks for d, returning early with ctx.Err() on cancellation
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) wait(ctx context.Context, attempt int) error {
	if p.Backoff == nil {
		return nil
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return sleep(ctx, p.Backoff(attempt))
}
