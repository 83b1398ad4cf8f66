package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript counts one request in the principal's window. The key expires with the
// window, so the first request after expiry starts a new one.
var checkScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { count, ttl }
`)

// RedisLimiter shares windows between API instances. Redis errors let the request
// through.
type RedisLimiter struct {
	client *redis.Client
	limits Limits
	prefix string
	logger *log.Logger
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limits Limits, logger *log.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limits: limits,
		prefix: "ratelimit",
		logger: logger,
		now:    time.Now,
	}
}

func (l *RedisLimiter) key(principalID string) string {
	return fmt.Sprintf("%s:%s", l.prefix, principalID)
}

func (l *RedisLimiter) Check(ctx context.Context, principalID, role string) (Result, error) {
	limit := l.limits.For(role)
	now := l.now()

	vals, err := checkScript.Run(ctx, l.client, []string{l.key(principalID)}, l.limits.Window.Milliseconds()).Int64Slice()
	if err != nil || len(vals) != 2 {
		l.logger.Printf("Warning: rate limit check for %s failed, allowing request: %v", principalID, err)
		return Result{Allowed: true, Limit: limit, Remaining: limit, Reset: now.Add(l.limits.Window)}, nil
	}

	count, ttl := int(vals[0]), time.Duration(vals[1])*time.Millisecond
	reset := now.Add(ttl)

	// The script counts rejected requests too; only the first limit of them were allowed
	if count > limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: retryAfter(reset, now),
		}, nil
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - count, Reset: reset}, nil
}

func (l *RedisLimiter) Status(ctx context.Context, principalID, role string) (Result, error) {
	limit := l.limits.For(role)
	now := l.now()
	key := l.key(principalID)

	pipe := l.client.Pipeline()
	get := pipe.Get(ctx, key)
	pttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Result{}, fmt.Errorf("reading rate limit window: %w", err)
	}

	count, err := get.Int()
	if err == redis.Nil || pttl.Val() <= 0 {
		return Result{Allowed: true, Limit: limit, Remaining: limit, Reset: now.Add(l.limits.Window)}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reading rate limit count: %w", err)
	}

	return Result{
		Allowed:   count < limit,
		Limit:     limit,
		Remaining: max(0, limit-count),
		Reset:     now.Add(pttl.Val()),
	}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, principalID string) error {
	if err := l.client.Del(ctx, l.key(principalID)).Err(); err != nil {
		return fmt.Errorf("resetting rate limit: %w", err)
	}
	return nil
}
