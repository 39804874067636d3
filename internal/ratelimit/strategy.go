// Package ratelimit implements the admission-control strategies that gate
// every request before business logic: a fixed-window counter, a daily
// counter resetting at midnight UTC, and a no-op used where the counter
// store is unavailable. Strategies consume tokens from a counter.Store;
// whether a store failure blocks the request is the admission gate's call,
// not theirs.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/pigeonhq/pigeon/internal/counter"
)

// Rate-limited responses carry one of these fixed messages.
const (
	MsgRateLimitExceeded      = "Rate limit exceeded"
	MsgDailyRateLimitExceeded = "Daily rate limit exceeded"
)

// Strategy is one rate-limiting variant. The set is closed: fixed-window,
// daily, and no-op.
type Strategy interface {
	// Name identifies the strategy in logs and configuration.
	Name() string
	// Key builds the counter-store key for a service/API-key pair.
	Key(serviceID, apiKeyID string) string
	// Allow attempts to consume one token. It returns false when the limit
	// is exhausted and an error only for store faults.
	Allow(ctx context.Context, store counter.Store, serviceID, apiKeyID string) (bool, error)
	// ErrorMessage is the fixed client-facing text for a denied request.
	ErrorMessage() string
}

// Strategy names accepted in configuration.
const (
	StrategyNoop     = "noop"
	StrategyWindowed = "windowed"
)

// NewServiceStrategy builds the per-service strategy from its configured
// name. Unknown names are an error; callers fall back to no-op and log.
func NewServiceStrategy(name string, limit int, windowSeconds int) (Strategy, error) {
	switch name {
	case StrategyNoop, "":
		return NoOp{}, nil
	case StrategyWindowed:
		return NewFixedWindow(limit, windowSeconds), nil
	default:
		return nil, fmt.Errorf("unknown rate limiting strategy %q", name)
	}
}

// NewDailyStrategy builds the daily strategy from its configured name.
func NewDailyStrategy(name string, limit int) (Strategy, error) {
	switch name {
	case StrategyNoop, "":
		return NoOp{}, nil
	case StrategyWindowed:
		return NewDaily(limit), nil
	default:
		return nil, fmt.Errorf("unknown daily rate limiting strategy %q", name)
	}
}

// consumeToken is the shared consume operation: create the counter at the
// limit if absent (atomic, so concurrent first requests cannot reset an
// in-progress window), read it, and spend one token when any remain. A
// stale read racing another decrement can slightly over- or under-admit;
// this is a best-effort limiter, not an exact one.
func consumeToken(ctx context.Context, store counter.Store, key string, limit int64, ttlSeconds int) (bool, error) {
	if _, err := store.SetIfAbsent(ctx, key, limit, secondsToDuration(ttlSeconds)); err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	value, found, err := store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	if !found || value <= 0 {
		return false, nil
	}
	if _, err := store.DecrBy(ctx, key, 1); err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	return true, nil
}
