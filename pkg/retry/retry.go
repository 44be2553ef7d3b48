// Package retry implements exponential backoff with jitter for source
// adapter calls. The policy is an explicit value injected into the caller,
// and the sleep function is swappable so backoff behavior can be tested
// without waiting.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/therealsahil19/webspace/pkg/errors"
)

// Policy describes the retry behavior for one adapter call.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	Multiplier float64

	// Jitter is the fraction of the delay randomized on top of it,
	// in [0, 1]. A delay d becomes d + rand(0, d*Jitter).
	Jitter float64

	// Sleep waits for the given duration or until the context is done.
	// Nil means a real timer; tests inject a no-op or recorder.
	Sleep func(ctx context.Context, d time.Duration) error

	// Rand returns a value in [0, 1) for jitter. Nil means math/rand.
	Rand func() float64
}

// DefaultPolicy returns the pipeline's standard adapter retry policy:
// 3 attempts, 1 minute base delay, doubling, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Minute,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Delay returns the backoff before the given attempt (attempt 1 is the
// first retry), jitter included.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if p.Jitter > 0 {
		random := p.Rand
		if random == nil {
			random = rand.Float64
		}
		d += d * p.Jitter * random()
	}
	return time.Duration(d)
}

// Do runs fn up to MaxAttempts times, sleeping between attempts. It returns
// the number of attempts made and the last error. Cancellation stops the
// loop immediately; context errors are not retried.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = realSleep
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, errors.ErrCanceled
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if errors.IsCanceled(lastErr) {
			return attempt, lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return attempt, errors.ErrCanceled
		}
	}
	return p.MaxAttempts, lastErr
}

// realSleep waits on a timer or the context, whichever fires first.
func realSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
