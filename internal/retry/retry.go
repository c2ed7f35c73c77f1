package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy describes how a fallible operation is retried.
// An operation that keeps failing is invoked MaxRetries+1 times in total.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Backoff      float64

	// Retryable reports whether an error should be retried. A nil predicate retries every error.
	Retryable func(error) bool

	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *zap.Logger
}

// DefaultPolicy returns the policy used for cluster API calls: 3 retries, 1s initial delay, doubling
func DefaultPolicy(logger *zap.Logger, retryable func(error) bool) Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Backoff:      2.0,
		Retryable:    retryable,
		Logger:       logger,
	}
}

// Do invokes op until it succeeds, fails with a non-retryable error, or the retries are exhausted.
// The error of the last attempt is returned unchanged.
func Do[T any](ctx context.Context, p Policy, name string, op func(ctx context.Context) (T, error)) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	backoff := p.Backoff
	if backoff < 1 {
		backoff = 1
	}

	delay := p.InitialDelay
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return result, err
		}

		if attempt >= p.MaxRetries {
			logger.Error("Operation failed after retries",
				zap.String("operation", name),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return result, err
		}

		logger.Warn("Retrying operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Int("maxRetries", p.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err))

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, err
		}
		delay = time.Duration(float64(delay) * backoff)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
