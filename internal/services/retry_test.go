package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"artistsync/internal/metrics"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestBackoff(t *testing.T) {
	linear := LinearBackoff(2 * time.Second)
	assert.Equal(t, 2*time.Second, linear(1))
	assert.Equal(t, 6*time.Second, linear(3))

	fixed := FixedBackoff(3 * time.Second)
	assert.Equal(t, 3*time.Second, fixed(1))
	assert.Equal(t, 3*time.Second, fixed(5))
}

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	policy := newRetryPolicy("upload", 3, LinearBackoff(time.Second), m)

	var delays []time.Duration
	policy.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	err := policy.do(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return assert.AnError
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
	expected := `
# HELP artistsync_retries_total Retried external operations.
# TYPE artistsync_retries_total counter
artistsync_retries_total{operation="upload"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "artistsync_retries_total"))
}

func TestRetryPolicy_ReturnsLastError(t *testing.T) {
	policy := newRetryPolicy("download", 2, FixedBackoff(time.Second), nil)
	policy.sleep = noSleep

	last := errors.New("second failure")
	calls := 0
	err := policy.do(context.Background(), func(attempt int) error {
		calls++
		if attempt == 1 {
			return assert.AnError
		}
		return last
	})

	assert.Equal(t, 2, calls)
	assert.Equal(t, last, err)
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	policy := newRetryPolicy("playlist", 5, FixedBackoff(time.Second), nil)
	policy.sleep = noSleep

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := policy.do(ctx, func(int) error {
		calls++
		cancel()
		return assert.AnError
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, assert.AnError, err)
}

func TestRetryPolicy_CancelledBeforeFirstAttempt(t *testing.T) {
	policy := newRetryPolicy("upload", 3, FixedBackoff(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.do(ctx, func(int) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_AtLeastOneAttempt(t *testing.T) {
	policy := newRetryPolicy("upload", 0, FixedBackoff(0), nil)
	calls := 0
	_ = policy.do(context.Background(), func(int) error {
		calls++
		return assert.AnError
	})
	assert.Equal(t, 1, calls)
}
