package services

import (
	"context"
	"log/slog"
	"time"

	"artistsync/internal/metrics"
)

// Backoff returns the delay to wait after the given failed attempt (1-based)
type Backoff func(attempt int) time.Duration

// LinearBackoff waits base × attempt
func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration { return base * time.Duration(attempt) }
}

// FixedBackoff always waits delay
func FixedBackoff(delay time.Duration) Backoff {
	return func(int) time.Duration { return delay }
}

// retryPolicy runs an operation a bounded number of times
type retryPolicy struct {
	operation string
	attempts  int
	backoff   Backoff
	metrics   *metrics.Metrics
	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(operation string, attempts int, backoff Backoff, m *metrics.Metrics) retryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return retryPolicy{operation: operation, attempts: attempts, backoff: backoff, metrics: m, sleep: sleepContext}
}

// do calls fn until it succeeds, the attempts run out, or ctx ends.
// It returns the last error.
func (p retryPolicy) do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return err
		}
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}

		delay := p.backoff(attempt)
		slog.Warn("Retrying operation", "operation", p.operation, "attempt", attempt, "delay", delay, "error", err)
		p.metrics.Retry(p.operation)
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
	return err
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
