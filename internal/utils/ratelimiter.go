package utils

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum delay between outgoing requests to one service.
// Callers queue on the mutex, so a burst is drained one request at a time.
type RateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	delay    time.Duration
}

// NewRateLimiter creates a RateLimiter with the given minimum interval.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{delay: delay}
}

// Wait blocks until enough time has passed since the last request or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elapsed := time.Since(r.lastCall); elapsed < r.delay {
		t := time.NewTimer(r.delay - elapsed)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	r.lastCall = time.Now()
	return nil
}

// Interval returns the configured minimum delay.
func (r *RateLimiter) Interval() time.Duration {
	return r.delay
}
