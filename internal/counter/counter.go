// Package counter provides the shared atomic counters that rate limiting
// consumes tokens from. The production adapter is Redis; an in-memory
// adapter backs local development and tests.
package counter

import (
	"context"
	"time"
)

// Store exposes the three atomic primitives the rate limiters need.
// Operations fail with errs.RetryableError for connection/timeout faults
// and errs.NonRetryableError for everything else.
type Store interface {
	// SetIfAbsent creates key with the given value and TTL only when the
	// key does not exist. Reports whether the key was created. A zero ttl
	// means no expiry.
	SetIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)
	// Get returns the current value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// DecrBy atomically decrements key by n and returns the new value.
	DecrBy(ctx context.Context, key string, n int64) (int64, error)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connections. It never fails; teardown
	// problems are logged and swallowed.
	Close()
}
