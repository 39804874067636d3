package counter

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pigeonhq/pigeon/internal/errs"
	"github.com/pigeonhq/pigeon/internal/retry"
)

// RedisStore adapts a shared Redis instance to the Store interface. Every
// command runs through the retry combinator; connection and timeout faults
// are retried and re-raised as retryable, anything else is non-retryable.
type RedisStore struct {
	client *redis.Client
	policy retry.Policy
	logger *slog.Logger
}

// RedisConfig holds connection settings for the counter store.
type RedisConfig struct {
	URL         string
	DialTimeout time.Duration
	OpTimeout   time.Duration
}

// NewRedisStore builds a RedisStore from a redis:// URL. The connection is
// pooled and lazy; the first command dials.
func NewRedisStore(cfg RedisConfig, policy retry.Policy, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errs.NonRetryable("parse redis url", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.OpTimeout > 0 {
		opts.ReadTimeout = cfg.OpTimeout
		opts.WriteTimeout = cfg.OpTimeout
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		policy: policy,
		logger: logger,
	}, nil
}

// SetIfAbsent issues SET NX with an expiry.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	var created bool
	err := retry.Do(ctx, s.policy, errs.IsRetryable, func(ctx context.Context) error {
		ok, cmdErr := s.client.SetNX(ctx, key, value, ttl).Result()
		if cmdErr != nil {
			return classifyRedis("redis setnx", cmdErr)
		}
		created = ok
		return nil
	})
	return created, err
}

// Get reads the counter value. A missing key is (0, false, nil).
func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	var (
		value int64
		found bool
	)
	err := retry.Do(ctx, s.policy, errs.IsRetryable, func(ctx context.Context) error {
		v, cmdErr := s.client.Get(ctx, key).Int64()
		if errors.Is(cmdErr, redis.Nil) {
			value, found = 0, false
			return nil
		}
		if cmdErr != nil {
			return classifyRedis("redis get", cmdErr)
		}
		value, found = v, true
		return nil
	})
	return value, found, err
}

// DecrBy atomically decrements the counter.
func (s *RedisStore) DecrBy(ctx context.Context, key string, n int64) (int64, error) {
	var value int64
	err := retry.Do(ctx, s.policy, errs.IsRetryable, func(ctx context.Context) error {
		v, cmdErr := s.client.DecrBy(ctx, key, n).Result()
		if cmdErr != nil {
			return classifyRedis("redis decrby", cmdErr)
		}
		value = v
		return nil
	})
	return value, err
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classifyRedis("redis ping", err)
	}
	return nil
}

// Close shuts the client down. Failures during teardown must never
// propagate; they are logged and swallowed.
func (s *RedisStore) Close() {
	if err := s.client.Close(); err != nil && s.logger != nil {
		s.logger.Error("redis shutdown failed", "error", err)
	}
}

// classifyRedis sorts command faults into the shared taxonomy. Network and
// timeout faults (including pool timeouts) are retryable; every other redis
// error is deterministic.
func classifyRedis(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, redis.ErrClosed):
		return errs.Retryable(op, err)
	default:
		return errs.NonRetryable(op, err)
	}
}
