package mockup

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultMaxAttempts = 3

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExponentialBackoff waits base * 2^failures after each failed attempt,
// so a one second base yields 2s then 4s.
func ExponentialBackoff(base time.Duration) func(failures int) time.Duration {
	return func(failures int) time.Duration {
		return base << failures
	}
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(failures int) time.Duration
	Sleep       Sleeper
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     ExponentialBackoff(time.Second),
		Sleep:       SleepContext,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = ExponentialBackoff(time.Second)
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}

// Retry runs op until it succeeds or the policy's attempts are used up.
// Attempts are sequential with a backoff wait between them. Context
// errors end the loop at once.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	policy = policy.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if err := policy.Sleep(ctx, policy.Backoff(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", policy.MaxAttempts, lastErr)
}
