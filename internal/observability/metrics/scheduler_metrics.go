package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerBatchDeferredReasonSkipLockedEmpty = "skip_locked_empty"
	SchedulerBatchDeferredReasonNotLeader       = "not_leader"
)

const (
	LockResourceSubscriptionsRenewalDue = "subscriptions_renewal_due"
	LockResourceSubscriptionsGrantDue   = "subscriptions_grant_due"
)

// SchedulerMetrics captures credit cycle scheduler health signals.
type SchedulerMetrics struct {
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobTimeouts      *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	batchProcessed   *prometheus.CounterVec
	batchDeferred    *prometheus.CounterVec
	runLoopLag       prometheus.Observer
	cycleTransitions *prometheus.CounterVec
	dbLockWait       *prometheus.HistogramVec
	lockWaitObserver map[string]prometheus.Observer
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "creditledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditledger_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_scheduler_job_timeouts_total",
		Help:        "Scheduler job timeouts.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_scheduler_batch_processed_total",
		Help:        "Scheduler batch items processed.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	batchDeferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_scheduler_batch_deferred_total",
		Help:        "Scheduler batch deferrals by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "creditledger_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	// Subscription status moves made by the cycle manager.
	cycleTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_subscription_cycle_transitions_total",
		Help:        "Subscription cycle transitions applied by renewal.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	dbLockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditledger_scheduler_db_lock_wait_seconds",
		Help:        "Scheduler DB lock wait time for SELECT FOR UPDATE contention.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"resource"})

	jobRuns = register(registerer, jobRuns)
	jobDuration = register(registerer, jobDuration)
	jobTimeouts = register(registerer, jobTimeouts)
	jobErrors = register(registerer, jobErrors)
	batchProcessed = register(registerer, batchProcessed)
	batchDeferred = register(registerer, batchDeferred)
	runLoopLag = register(registerer, runLoopLag)
	cycleTransitions = register(registerer, cycleTransitions)
	dbLockWait = register(registerer, dbLockWait)

	lockWaitObserver := map[string]prometheus.Observer{
		LockResourceSubscriptionsRenewalDue: dbLockWait.WithLabelValues(LockResourceSubscriptionsRenewalDue),
		LockResourceSubscriptionsGrantDue:   dbLockWait.WithLabelValues(LockResourceSubscriptionsGrantDue),
	}

	return &SchedulerMetrics{
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		jobTimeouts:      jobTimeouts,
		jobErrors:        jobErrors,
		batchProcessed:   batchProcessed,
		batchDeferred:    batchDeferred,
		runLoopLag:       runLoopLag,
		cycleTransitions: cycleTransitions,
		dbLockWait:       dbLockWait,
		lockWaitObserver: lockWaitObserver,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

// AddBatchProcessed increments the batch processed counter for a resource by count.
func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 || m.batchProcessed == nil {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m == nil || m.batchDeferred == nil {
		return
	}
	m.batchDeferred.WithLabelValues(job, reason).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SchedulerMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// IncCycleTransition counts a subscription status move, e.g. active to expired.
func (m *SchedulerMetrics) IncCycleTransition(from, to string) {
	if m == nil || m.cycleTransitions == nil {
		return
	}
	m.cycleTransitions.WithLabelValues(from, to).Inc()
}

// ObserveDBLockWait records lock wait time for SELECT FOR UPDATE work.
func (m *SchedulerMetrics) ObserveDBLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.lockWaitObserver[resource]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logging.
func ClassifySchedulerErrorType(err error) string {
	if err == nil {
		return SchedulerErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerErrorTypeDeadlineExceeded
	}
	if isDBError(err) {
		return SchedulerErrorTypeDB
	}
	return SchedulerErrorTypeBusinessRule
}

// IsSchedulerErrorRetryable reports whether the scheduler error should be retried.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBError(err)
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return SchedulerJobReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return SchedulerJobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return SchedulerJobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505"):
		return SchedulerJobReasonUniqueViolation
	default:
		return SchedulerJobReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
