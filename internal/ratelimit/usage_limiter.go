package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditledger/internal/config"
)

const keyUsageUser = "creditledger:usage:user:%s"

// UsageLimiter throttles usage charging per user. A nil limiter allows everything.
type UsageLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUsageLimiter(cfg config.Config, client *redis.Client) (*UsageLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("usage rate limit requires REDIS_ADDR")
	}
	if limitCfg.UsageRate <= 0 || limitCfg.UsageBurst <= 0 {
		return nil, ErrLimiterInvalidRate
	}
	return &UsageLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.UsageRate,
		burst:  limitCfg.UsageBurst,
	}, nil
}

func (l *UsageLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *UsageLimiter) AllowUser(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUsageUser, strings.TrimSpace(userID)), l.rate, l.burst)
}
