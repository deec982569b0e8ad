package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/clock"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Ledger  creditledgerdomain.Repository
	Credits creditdomain.Service
	GenID   *snowflake.Node
	Clock   clock.Clock
	Locker  *ratelimit.Locker `optional:"true"`
	Config  Config            `optional:"true"`
}

// Scheduler drives cycle renewals and yearly monthly grants in batches. Every
// subscription change goes through the credit service, which re-checks due
// state under the subscription lock, so overlapping passes are harmless.
type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	ledger  creditledgerdomain.Repository
	credits creditdomain.Service
	locker  *ratelimit.Locker
}

type dueFetcher func(ctx context.Context, now time.Time, limit int) ([]creditledgerdomain.Subscription, error)

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Ledger == nil || p.Credits == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		ledger:  p.Ledger,
		credits: p.Credits,
		locker:  p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next pass picks up the remainder
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	release, leader, err := s.acquireLeadership(parent)
	if err != nil {
		return fmt.Errorf("scheduler leader lock: %w", err)
	}
	if !leader {
		obsmetrics.Scheduler().IncBatchDeferred("run_once", obsmetrics.SchedulerBatchDeferredReasonNotLeader)
		s.log.Debug("scheduler pass skipped, another instance holds the leader lock")
		return nil
	}
	defer release()

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobCycleRenewal, s.CycleRenewalJob},
		{JobYearlyGrant, s.YearlyGrantJob},
	}

	var runErr error
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		runErr = errors.Join(runErr, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return runErr
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// CycleRenewalJob settles every active subscription whose billing cycle has ended.
func (s *Scheduler) CycleRenewalJob(ctx context.Context) error {
	return s.processDue(ctx, JobCycleRenewal, s.fetchRenewalDue)
}

// YearlyGrantJob delivers the monthly allowance of yearly plans whose next
// grant date has passed.
func (s *Scheduler) YearlyGrantJob(ctx context.Context) error {
	return s.processDue(ctx, JobYearlyGrant, s.fetchYearlyGrantDue)
}

func (s *Scheduler) processDue(ctx context.Context, job string, fetch dueFetcher) error {
	ctx, run, owner := s.ensureJobRun(ctx, job, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()
	skipped := make(map[int64]struct{})
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		processed, fresh, batchErr := s.processBatch(ctx, run, job, fetch, now, skipped)
		jobErr = errors.Join(jobErr, batchErr)
		run.AddProcessed(processed)
		// a batch made only of previously skipped rows means nothing is left to try
		if fresh == 0 {
			break
		}
	}

	return jobErr
}

func (s *Scheduler) processBatch(
	ctx context.Context,
	run *jobRun,
	job string,
	fetch dueFetcher,
	now time.Time,
	skipped map[int64]struct{},
) (int, int, error) {
	schedMetrics := obsmetrics.Scheduler()

	// rows that keep failing are still due, so over-fetch past them
	subs, err := fetch(ctx, now, s.cfg.BatchSize+len(skipped))
	if err != nil {
		schedMetrics.IncBatchDeferred(job, obsmetrics.ClassifySchedulerJobReason(err))
		s.logSchedulerError(ctx, run, "scheduler.batch.fetch.failed", job, 0, err)
		return 0, 0, err
	}

	var batchErr error
	processed, fresh := 0, 0
	for _, sub := range subs {
		if _, skip := skipped[sub.UserID]; skip {
			continue
		}
		fresh++
		if ctx.Err() != nil {
			batchErr = errors.Join(batchErr, ctx.Err())
			schedMetrics.IncBatchDeferred(job, obsmetrics.ClassifySchedulerJobReason(ctx.Err()))
			break
		}

		res, err := s.credits.AdvanceCycle(ctx, sub.UserID)
		if res != nil {
			s.recordTransition(ctx, job, res)
		}
		if err != nil {
			skipped[sub.UserID] = struct{}{}
			batchErr = errors.Join(batchErr, fmt.Errorf("user %d: %w", sub.UserID, err))
			s.logSchedulerError(ctx, run, "scheduler.subscription.advance.failed", job, sub.UserID, err,
				zap.String("tier", sub.Tier),
				zap.String("subscription_type", string(sub.SubscriptionType)),
			)
			continue
		}
		if res == nil || (!res.Advanced && res.FromStatus == res.Status) {
			// settled concurrently or no longer due; do not pick it up again this pass
			skipped[sub.UserID] = struct{}{}
			continue
		}
		processed++
	}

	if fresh == 0 && len(subs) == 0 {
		schedMetrics.IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonSkipLockedEmpty)
	}
	if processed > 0 {
		schedMetrics.AddBatchProcessed(job, "subscriptions", processed)
	}
	return processed, fresh, batchErr
}

func (s *Scheduler) recordTransition(ctx context.Context, job string, res *creditdomain.AdvanceResult) {
	if !res.Advanced && res.FromStatus == res.Status {
		return
	}
	obsmetrics.Scheduler().IncCycleTransition(string(res.FromStatus), string(res.Status))
	s.logger(s.withLogContext(ctx, res.UserID)).Info("scheduler.subscription.advanced",
		zap.String("job", job),
		zap.String("kind", string(res.Kind)),
		zap.String("from_status", string(res.FromStatus)),
		zap.String("status", string(res.Status)),
		zap.String("granted", res.Granted.String()),
		zap.String("expired", res.Expired.String()),
		zap.Time("cycle_end", res.Window.End),
	)
}
