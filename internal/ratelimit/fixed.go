package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pigeonhq/pigeon/internal/counter"
)

// FixedWindow limits each service/API-key pair to a fixed number of
// requests per window. The counter expires with the window; the store's
// TTL mechanism is the reset.
type FixedWindow struct {
	limit         int
	windowSeconds int
}

// NewFixedWindow creates a fixed-window strategy.
func NewFixedWindow(limit, windowSeconds int) FixedWindow {
	return FixedWindow{limit: limit, windowSeconds: windowSeconds}
}

// Name identifies the strategy in logs and configuration.
func (s FixedWindow) Name() string { return "service" }

// Key builds the counter key for a service/API-key pair.
func (s FixedWindow) Key(serviceID, apiKeyID string) string {
	return fmt.Sprintf("rate-limit-%s-%s", serviceID, apiKeyID)
}

// Allow consumes one token from the window's counter.
func (s FixedWindow) Allow(ctx context.Context, store counter.Store, serviceID, apiKeyID string) (bool, error) {
	return consumeToken(ctx, store, s.Key(serviceID, apiKeyID), int64(s.limit), s.windowSeconds)
}

// ErrorMessage is the fixed text for a denied request.
func (s FixedWindow) ErrorMessage() string { return MsgRateLimitExceeded }

func secondsToDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
