package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pigeonhq/pigeon/internal/counter"
)

// Daily limits each service/API-key pair to a fixed number of requests per
// calendar day. The counter is created with a TTL reaching the next
// midnight UTC, so the store's expiry is the daily reset.
type Daily struct {
	limit int
	now   func() time.Time
}

// NewDaily creates a daily strategy.
func NewDaily(limit int) Daily {
	return Daily{limit: limit, now: time.Now}
}

// Name identifies the strategy in logs and configuration.
func (s Daily) Name() string { return "daily" }

// Key builds the counter key for a service/API-key pair.
func (s Daily) Key(serviceID, apiKeyID string) string {
	return fmt.Sprintf("remaining-daily-limit-%s-%s", serviceID, apiKeyID)
}

// Allow consumes one token from today's counter.
func (s Daily) Allow(ctx context.Context, store counter.Store, serviceID, apiKeyID string) (bool, error) {
	return consumeToken(ctx, store, s.Key(serviceID, apiKeyID), int64(s.limit), s.secondsUntilMidnightUTC())
}

// ErrorMessage is the fixed text for a denied request.
func (s Daily) ErrorMessage() string { return MsgDailyRateLimitExceeded }

func (s Daily) secondsUntilMidnightUTC() int {
	now := s.now().UTC()
	next := now.AddDate(0, 0, 1).Truncate(24 * time.Hour)
	return int(next.Sub(now).Seconds())
}
