package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestLockerTryLockAndRelease(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "scheduler:leader", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "scheduler:leader", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, locker.Release(ctx, "scheduler:leader", "someone-else"))
	_, ok, err = locker.TryLock(ctx, "scheduler:leader", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "foreign token must not release the lease")

	require.NoError(t, locker.Release(ctx, "scheduler:leader", token))
	_, ok, err = locker.TryLock(ctx, "scheduler:leader", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLockerLeaseExpires(t *testing.T) {
	srv, client := newTestRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLockerRejectsBadInput(t *testing.T) {
	var nilLocker *Locker
	_, _, err := nilLocker.TryLock(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, ErrLockNotConfigured)

	_, client := newTestRedis(t)
	locker := NewLocker(client)
	_, _, err = locker.TryLock(context.Background(), "", time.Second)
	require.ErrorIs(t, err, ErrLockKeyEmpty)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	require.ErrorIs(t, err, ErrLockTTLInvalid)
}

func TestTokenBucketDrainsAndRefills(t *testing.T) {
	srv, client := newTestRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv.SetTime(start)

	for i := 0; i < 2; i++ {
		res, err := bucket.Allow(ctx, "bucket", 1, 2)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 2, res.Limit)
	}

	res, err := bucket.Allow(ctx, "bucket", 1, 2)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 0, res.Remaining)
	require.Equal(t, time.Second, res.RetryAfter)

	srv.SetTime(start.Add(time.Second))
	res, err = bucket.Allow(ctx, "bucket", 1, 2)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestTokenBucketValidation(t *testing.T) {
	_, client := newTestRedis(t)
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	require.ErrorIs(t, err, ErrLimiterKeyEmpty)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	require.ErrorIs(t, err, ErrLimiterInvalidRate)

	var nilBucket *TokenBucket
	_, err = nilBucket.Allow(context.Background(), "k", 1, 1)
	require.ErrorIs(t, err, ErrLimiterNotConfigured)
}

func TestUsageLimiterPerUser(t *testing.T) {
	srv, client := newTestRedis(t)
	srv.SetTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, UsageRate: 1, UsageBurst: 1}}
	limiter, err := NewUsageLimiter(cfg, client)
	require.NoError(t, err)
	require.True(t, limiter.Enabled())

	res, err := limiter.AllowUser(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.AllowUser(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	res, err = limiter.AllowUser(context.Background(), "bob")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	require.True(t, srv.Exists("creditledger:usage:user:alice"))
}

func TestUsageLimiterDisabled(t *testing.T) {
	limiter, err := NewUsageLimiter(config.Config{}, nil)
	require.NoError(t, err)
	require.Nil(t, limiter)

	res, err := limiter.AllowUser(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	_, err = NewUsageLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, UsageRate: 1, UsageBurst: 1}}, nil)
	require.Error(t, err)
}
