// Package resiliencetest provides test doubles for the resilience package.
package resiliencetest

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Timer is a backoff.Timer that fires immediately and records every
// requested delay.
type Timer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

// NewTimer returns a ready Timer.
func NewTimer() *Timer {
	return &Timer{c: make(chan time.Time, 1)}
}

// Factory returns a constructor suitable for RetryConfig.NewTimer. Every
// timer it builds records into t.
func (t *Timer) Factory() func() backoff.Timer {
	return func() backoff.Timer { return t }
}

// Start records d and fires.
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	select {
	case t.c <- time.Now():
	default:
	}
}

// Stop is a no-op.
func (t *Timer) Stop() {}

// C returns the firing channel.
func (t *Timer) C() <-chan time.Time {
	return t.c
}

// Delays returns a copy of the recorded delays.
func (t *Timer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]time.Duration, len(t.delays))
	copy(out, t.delays)
	return out
}

// Total returns the sum of the recorded delays.
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, d := range t.Delays() {
		total += d
	}
	return total
}
