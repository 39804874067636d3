package ratelimit

import (
	"context"
	"fmt"

	"github.com/pigeonhq/pigeon/internal/counter"
)

// NoOp admits every request. It is the default strategy for environments
// without a counter store.
type NoOp struct{}

// Name identifies the strategy in logs and configuration.
func (NoOp) Name() string { return StrategyNoop }

// Key returns a placeholder; no counter is ever touched.
func (NoOp) Key(serviceID, apiKeyID string) string {
	return fmt.Sprintf("noop-%s-%s", serviceID, apiKeyID)
}

// Allow always admits.
func (NoOp) Allow(ctx context.Context, store counter.Store, serviceID, apiKeyID string) (bool, error) {
	return true, nil
}

// ErrorMessage should never reach a client.
func (NoOp) ErrorMessage() string { return MsgRateLimitExceeded }
