// Package retry provides a small retry combinator with bounded attempts and
// jittered exponential backoff. Store adapters wrap their network calls with
// it; which failures are worth retrying is decided by the caller's predicate.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts. A zero BaseDelay disables sleeping entirely, which
// is what the tests use.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the adapters' production behavior: three attempts
// with jittered backoff capped at two seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// NoBackoff returns a policy with the same attempt budget as DefaultPolicy
// but zero delay between attempts.
func NoBackoff() Policy {
	return Policy{MaxAttempts: 3}
}

// Do runs fn up to p.MaxAttempts times. It stops early when fn succeeds,
// when retryable(err) is false, or when ctx is done. The last error is
// returned after the budget is exhausted.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if serr := sleep(ctx, p.delay(attempt)); serr != nil {
				return err
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}

// delay computes the backoff before the given attempt (1-based for the first
// retry), doubling BaseDelay each time with full jitter, capped at MaxDelay.
func (p Policy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		// Still honor cancellation between attempts.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
