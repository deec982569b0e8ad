package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	schedtesting "github.com/smallbiznis/creditledger/internal/scheduler/testing"
	"github.com/smallbiznis/creditledger/internal/testutil/credittest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T, stack *credittest.Stack, locker *ratelimit.Locker, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(Params{
		DB:      stack.DB,
		Log:     zap.NewNop(),
		Ledger:  stack.Ledger,
		Credits: stack.Credits,
		GenID:   stack.Node,
		Clock:   stack.Clock,
		Locker:  locker,
		Config:  cfg,
	})
	require.NoError(t, err)
	return s
}

func monthlyGrants(rows []creditledgerdomain.Transaction) int {
	n := 0
	for _, row := range rows {
		if row.TransactionType == creditledgerdomain.TransactionTypeMonthlyGrant {
			n++
		}
	}
	return n
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceRenewsExpiredMonthlyCycles(t *testing.T) {
	stack := credittest.New(t)
	ctx := context.Background()

	for _, userID := range []int64{1, 2, 3} {
		_, err := stack.Credits.EnsureSubscription(ctx, userID)
		require.NoError(t, err)
	}
	_, err := stack.Credits.SetAutoRenew(ctx, 3, false)
	require.NoError(t, err)

	sched := newTestScheduler(t, stack, nil, Config{BatchSize: 2})
	accel := schedtesting.NewTimeAccelerator(stack.DB, stack.Clock)

	require.NoError(t, accel.AdvanceToCycleEnd(ctx, 1, 24*time.Hour))
	due, err := accel.GetCycleInfo(ctx, 1)
	require.NoError(t, err)
	require.True(t, due.RenewalDue)
	require.NoError(t, sched.RunOnce(ctx))

	for _, userID := range []int64{1, 2} {
		sub := stack.Subscription(t, userID)
		require.Equal(t, creditledgerdomain.SubscriptionStatusActive, sub.Status)
		require.True(t, sub.BillingCycleStart.Equal(time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)))
		require.True(t, sub.BillingCycleEnd.Equal(time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)))
		credittest.RequireDecimal(t, "500", sub.CurrentCredits)
		require.Equal(t, 2, monthlyGrants(stack.Transactions(t, userID)))
	}

	expired := stack.Subscription(t, 3)
	require.Equal(t, creditledgerdomain.SubscriptionStatusExpired, expired.Status)
	require.Equal(t, 1, monthlyGrants(stack.Transactions(t, 3)))

	// a second pass finds nothing due
	require.NoError(t, sched.RunOnce(ctx))
	require.Equal(t, 2, monthlyGrants(stack.Transactions(t, 1)))
}

func TestRunOnceDeliversYearlyGrant(t *testing.T) {
	stack := credittest.New(t)
	ctx := context.Background()

	_, err := stack.Credits.Subscribe(ctx, creditdomain.SubscribeRequest{
		UserID:           10,
		TierName:         "pro",
		SubscriptionType: creditledgerdomain.SubscriptionTypeYearly,
		PaymentReference: "pay-10",
	})
	require.NoError(t, err)

	sched := newTestScheduler(t, stack, nil, Config{EnabledJobs: []string{JobYearlyGrant}})
	accel := schedtesting.NewTimeAccelerator(stack.DB, stack.Clock)

	require.NoError(t, sched.RunOnce(ctx))
	require.Equal(t, 1, monthlyGrants(stack.Transactions(t, 10)))

	require.NoError(t, accel.AdvanceToNextGrant(ctx, 10))
	require.True(t, stack.Clock.Now().Equal(time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, sched.RunOnce(ctx))

	sub := stack.Subscription(t, 10)
	require.Equal(t, 2, monthlyGrants(stack.Transactions(t, 10)))
	credittest.RequireDecimal(t, "1000", sub.CurrentCredits)
	require.True(t, sub.NextGrantDate.After(stack.Clock.Now()))
	require.True(t, sub.BillingCycleEnd.Equal(time.Date(2027, time.January, 15, 0, 0, 0, 0, time.UTC)))
}

func TestRunOnceContinuesPastFailingSubscription(t *testing.T) {
	stack := credittest.New(t)
	ctx := context.Background()

	_, err := stack.Credits.Subscribe(ctx, creditdomain.SubscribeRequest{
		UserID:           20,
		TierName:         "enterprise",
		SubscriptionType: creditledgerdomain.SubscriptionTypeMonthly,
		PaymentReference: "pay-20",
	})
	require.NoError(t, err)
	_, err = stack.Credits.EnsureSubscription(ctx, 21)
	require.NoError(t, err)

	_, err = stack.Tiers.SetTierEnabled(ctx, "enterprise", false)
	require.NoError(t, err)

	accel := schedtesting.NewTimeAccelerator(stack.DB, stack.Clock)
	require.NoError(t, accel.AdvanceToCycleEnd(ctx, 20, time.Hour))

	sched := newTestScheduler(t, stack, nil, Config{BatchSize: 1})
	err = sched.RunOnce(ctx)
	require.ErrorIs(t, err, creditdomain.ErrTierUnavailable)

	require.Equal(t, creditledgerdomain.SubscriptionStatusExpired, stack.Subscription(t, 20).Status)
	info, err := accel.GetCycleInfo(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, creditledgerdomain.SubscriptionStatusActive, info.Status)
	require.False(t, info.RenewalDue)
}

func TestRunOnceSkipsWhenAnotherInstanceLeads(t *testing.T) {
	stack := credittest.New(t)
	ctx := context.Background()

	_, err := stack.Credits.EnsureSubscription(ctx, 30)
	require.NoError(t, err)

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := ratelimit.NewLocker(client)

	token, ok, err := locker.TryLock(ctx, leaderLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sched := newTestScheduler(t, stack, locker, Config{})
	stack.Clock.Set(time.Date(2026, time.February, 16, 0, 0, 0, 0, time.UTC))

	require.NoError(t, sched.RunOnce(ctx))
	require.Equal(t, 1, monthlyGrants(stack.Transactions(t, 30)))

	require.NoError(t, locker.Release(ctx, leaderLockKey, token))
	require.NoError(t, sched.RunOnce(ctx))
	require.Equal(t, 2, monthlyGrants(stack.Transactions(t, 30)))
	require.False(t, srv.Exists(leaderLockKey), "lease is released after the pass")
}
