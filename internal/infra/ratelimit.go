package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// LimitDecision is the result of one limiter check
type LimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a fixed-window counter shared across instances through Redis.
// It fails open: with no client, or when Redis errors, every request is allowed.
type RateLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
	prefix string
	logger logrus.FieldLogger
}

// NewRateLimiter creates a limiter allowing limit hits per window per key. client may be nil.
func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration, logger logrus.FieldLogger) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{client: client, window: window, limit: limit, prefix: prefix, logger: logger}
}

// Allow registers one hit for key
func (l *RateLimiter) Allow(ctx context.Context, key string) LimitDecision {
	open := LimitDecision{Allowed: true, Limit: l.limit, Remaining: l.limit, ResetAt: time.Now().UTC().Add(l.window)}
	if l.client == nil {
		return open
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Result()
	if err != nil {
		if l.logger != nil {
			l.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
		}
		return open
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return open
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = l.window.Milliseconds()
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return LimitDecision{
		Allowed:   int(count) <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.Now().UTC().Add(time.Duration(ttlMs) * time.Millisecond),
	}
}
