// Package ratelimit answers "is one more request allowed for this key given
// the hits seen in the trailing window". Windows live in Redis when several
// gateway instances share a quota, or in process memory otherwise.
package ratelimit

import (
	"context"
	"time"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/redis"
)

// Decision is the outcome of one check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter records a hit on key and reports whether it fits the quota
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// counter is the subset of *redis.Client the Redis limiter uses
type counter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}

// RedisLimiter keeps a sliding log per key in a Redis sorted set
type RedisLimiter struct {
	store  counter
	prefix string
}

// NewRedisLimiter creates a limiter whose keys are stored under prefix
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rate_limit:"
	}
	return &RedisLimiter{store: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit}, nil
	}

	allowed, seen, err := l.store.CheckRateLimit(ctx, l.prefix+key, limit, window)
	if err != nil {
		return Decision{}, errors.InternalError("failed to check rate limit", err)
	}

	remaining := limit - seen - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(window),
	}, nil
}

// Noop allows everything. Used when rate limiting is switched off.
type Noop struct{}

func (Noop) Allow(_ context.Context, _ string, limit int, _ time.Duration) (Decision, error) {
	return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
}
