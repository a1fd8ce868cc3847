package resilience

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig describes a bounded exponential retry policy. The delay before
// attempt n+1 is BaseDelay * 2^(n-1), without jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay after the first failure.
	// Default: 1 second
	BaseDelay time.Duration

	// MaxDelay caps a single delay. Zero means uncapped.
	MaxDelay time.Duration

	// NewTimer builds the timer used between attempts. Nil uses a real timer.
	NewTimer func() backoff.Timer
}

// DefaultRetryConfig returns 3 attempts with a 1s base delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// Notify is called after a failed attempt when another one will follow.
type Notify func(err error, attempt int, next time.Duration)

// Retry calls op until it succeeds, returns an error wrapped with
// backoff.Permanent, the attempt budget is spent or ctx is done. It returns
// the number of attempts made and the last error. Cancellation is observed
// between attempts; a delay already waiting is abandoned.
func Retry(ctx context.Context, cfg RetryConfig, op func(attempt int) error, notify Notify) (int, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.MaxInterval = time.Duration(math.MaxInt64)
	if cfg.MaxDelay > 0 {
		bo.MaxInterval = cfg.MaxDelay
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.MaxAttempts-1)), ctx)

	var timer backoff.Timer
	if cfg.NewTimer != nil {
		timer = cfg.NewTimer()
	}

	attempt := 0
	operation := func() error {
		attempt++
		return op(attempt)
	}
	onRetry := func(err error, next time.Duration) {
		if notify != nil {
			notify(err, attempt, next)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, onRetry, timer)
	return attempt, err
}
