package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuswx/nimbus/internal/provider/resilience"
	"github.com/nimbuswx/nimbus/internal/provider/resilience/resiliencetest"
)

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	timer := resiliencetest.NewTimer()
	cfg := resilience.DefaultRetryConfig()
	cfg.NewTimer = timer.Factory()

	attempts, err := resilience.Retry(context.Background(), cfg, func(int) error { return nil }, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, timer.Delays())
}

func TestRetry_ExponentialDelays(t *testing.T) {
	timer := resiliencetest.NewTimer()
	cfg := resilience.RetryConfig{MaxAttempts: 4, BaseDelay: time.Second, NewTimer: timer.Factory()}

	attempts, err := resilience.Retry(context.Background(), cfg, func(int) error {
		return assert.AnError
	}, nil)

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, timer.Delays())
}

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	timer := resiliencetest.NewTimer()
	cfg := resilience.DefaultRetryConfig()
	cfg.NewTimer = timer.Factory()

	var notified []int
	attempts, err := resilience.Retry(context.Background(), cfg, func(attempt int) error {
		if attempt < 3 {
			return assert.AnError
		}
		return nil
	}, func(_ error, attempt int, _ time.Duration) {
		notified = append(notified, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, notified)
	assert.Equal(t, 3*time.Second, timer.Total())
}

func TestRetry_PermanentStops(t *testing.T) {
	timer := resiliencetest.NewTimer()
	cfg := resilience.DefaultRetryConfig()
	cfg.NewTimer = timer.Factory()

	sentinel := errors.New("not configured")
	attempts, err := resilience.Retry(context.Background(), cfg, func(int) error {
		return backoff.Permanent(sentinel)
	}, nil)

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, timer.Delays())
}

func TestRetry_ContextCanceledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := resilience.RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}

	attempts, err := resilience.Retry(ctx, cfg, func(int) error {
		cancel()
		return assert.AnError
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetry_MaxDelayCaps(t *testing.T) {
	timer := resiliencetest.NewTimer()
	cfg := resilience.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 3 * time.Second, NewTimer: timer.Factory()}

	_, err := resilience.Retry(context.Background(), cfg, func(int) error { return assert.AnError }, nil)

	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, timer.Delays())
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	attempts, err := resilience.Retry(context.Background(), resilience.RetryConfig{}, func(int) error {
		calls++
		return assert.AnError
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := resilience.DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Zero(t, cfg.MaxDelay)
}
