package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// luaSlidingWindow records a hit only when it fits in the window, so rejected
// attempts do not push the window forward. Time is taken from the server.
// KEYS[1] = hits sorted set
// ARGV[1] = window_ms
// ARGV[2] = limit
// ARGV[3] = member
const luaSlidingWindow = `
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])

if count >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local retry = window
  if oldest[2] then
    retry = math.max(tonumber(oldest[2]) + window - now, 1)
  end
  return {0, count, retry}
end

redis.call('ZADD', KEYS[1], now, ARGV[3])
redis.call('PEXPIRE', KEYS[1], window)
return {1, count + 1, 0}
`

// Decision is the limiter verdict for one attempt.
type Decision struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
}

// SlidingWindowLimiter allows at most limit attempts per client within window.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int64
	window time.Duration
	script *redis.Script
}

func NewSlidingWindowLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  int64(limit),
		window: window,
		script: redis.NewScript(luaSlidingWindow),
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	key := KeyRateLimit(l.scope, clientID)

	vals, err := l.script.Run(ctx, l.rdb, []string{key},
		l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit %s: %w", l.scope, err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("ratelimit %s: unexpected reply %v", l.scope, vals)
	}

	d := Decision{
		Allowed:    vals[0] == 1,
		Count:      vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}
	if d.Count < l.limit {
		d.Remaining = l.limit - d.Count
	}

	return d, nil
}
