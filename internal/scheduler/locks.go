package scheduler

import (
	"context"
	"time"

	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	"go.uber.org/zap"
)

func (s *Scheduler) fetchRenewalDue(ctx context.Context, now time.Time, limit int) ([]creditledgerdomain.Subscription, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	subs, err := s.ledger.ListRenewalDue(claimCtx, s.db, now, limit)
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceSubscriptionsRenewalDue, time.Since(start))
	return subs, err
}

func (s *Scheduler) fetchYearlyGrantDue(ctx context.Context, now time.Time, limit int) ([]creditledgerdomain.Subscription, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	subs, err := s.ledger.ListYearlyGrantDue(claimCtx, s.db, now, limit)
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceSubscriptionsGrantDue, time.Since(start))
	return subs, err
}

// acquireLeadership takes the cluster-wide run lease. Without a locker every
// instance is its own leader.
func (s *Scheduler) acquireLeadership(ctx context.Context) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	token, ok, err := s.locker.TryLock(ctx, leaderLockKey, s.cfg.LeaderLockTTL)
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		if err := s.locker.Release(context.Background(), leaderLockKey, token); err != nil {
			s.log.Warn("failed to release scheduler leader lock", zap.Error(err))
		}
	}, true, nil
}
