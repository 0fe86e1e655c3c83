// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	Multiplier  float64       // growth factor per attempt, 2 when zero
	MaxDelay    time.Duration // cap per delay, none when zero
	Jitter      float64       // fraction of the delay randomized, 0..1

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p Policy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	if b.Multiplier <= 0 {
		b.Multiplier = 2
	}
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.RandomizationFactor = min(max(p.Jitter, 0), 1)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay returns the wait before attempt n+1, where n >= 1 is the attempt that just failed.
func (p Policy) Delay(n int) time.Duration {
	b := p.exponential()
	var d time.Duration
	for i := 0; i < max(n, 1); i++ {
		d = b.NextBackOff()
	}
	return d
}

// Do calls fn until it succeeds, returns an error retryable rejects, the attempts
// run out or ctx is done. The last error from fn is returned.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var timer backoff.Timer
	var st *sleepTimer
	if p.Sleep != nil {
		st = &sleepTimer{ctx: ctx, sleep: p.Sleep}
		timer = st
	}

	var (
		last    error
		attempt int
	)
	op := func() error {
		if st != nil && st.err != nil {
			return backoff.Permanent(last)
		}
		attempt++
		last = fn(ctx)
		if last != nil && !retryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}
	notify := func(err error, d time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, d, err)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(attempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(op, b, notify, timer)
	if err != nil && last != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return last
	}
	return err
}

// sleepTimer drives backoff waits through Policy.Sleep. A failed sleep ends the
// retries on the next attempt.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
	err   error
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	t.err = t.sleep(t.ctx, d)
	t.c <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }
