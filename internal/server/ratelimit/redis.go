package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "utask:auth:login:"

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end

if current > tonumber(ARGV[1]) then
  return {0, ttl}
end
return {1, ttl}
`)

var errUnexpectedReply = errors.New("unexpected redis reply")

// RedisLimiter shares counters between server replicas. The now argument is
// ignored; Redis key expiry drives the window.
type RedisLimiter struct {
	client redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

func NewRedis(client redis.Scripter, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	windowMS := l.window.Milliseconds()
	if windowMS <= 0 {
		return false, 0, errors.New("invalid rate limit window")
	}

	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.limit, windowMS).Result()
	if err != nil {
		return false, 0, err
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return false, 0, errUnexpectedReply
	}
	allowed, ok := vals[0].(int64)
	if !ok {
		return false, 0, errUnexpectedReply
	}
	ttl, ok := vals[1].(int64)
	if !ok {
		return false, 0, errUnexpectedReply
	}

	if allowed == 1 {
		return true, 0, nil
	}
	return false, max(time.Duration(ttl)*time.Millisecond, 0), nil
}
