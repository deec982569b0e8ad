package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket refills continuously at rate tokens per second up to burst.
// Redis truncates Lua numbers to integers on return, so the remaining count
// comes back floored.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (tonumber(clock[1]) * 1000) + math.floor(tonumber(clock[2]) / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), now}
`

var (
	ErrLimiterNotConfigured = errors.New("rate limiter not configured")
	ErrLimiterKeyEmpty      = errors.New("rate limiter key is empty")
	ErrLimiterInvalidRate   = errors.New("rate limiter rate and burst must be positive")
	errLimiterResponse      = errors.New("invalid rate limit script response")
)

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket at key.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return nil, ErrLimiterNotConfigured
	}
	if key == "" {
		return nil, ErrLimiterKeyEmpty
	}
	if rate <= 0 || burst <= 0 {
		return nil, ErrLimiterInvalidRate
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, errLimiterResponse
	}

	allowed := toInt64(res[0]) == 1
	remaining := toFloat64(res[1])
	now := time.UnixMilli(toInt64(res[2]))

	var retryAfter time.Duration
	if !allowed {
		retryAfter = time.Duration((1 - remaining) / rate * float64(time.Second))
	}
	full := time.Duration((float64(burst) - remaining) / rate * float64(time.Second))

	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(math.Floor(remaining)),
		ResetTime:  now.Add(full),
		RetryAfter: retryAfter,
	}, nil
}

// bucketTTL keeps idle buckets around for twice the time a full refill takes.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
