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
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerSkipReasonLockHeld = "lock_held"
)

// SchedulerMetrics captures health signals of the monthly generation job.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobErrors      *prometheus.CounterVec
	jobSkipped     *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "societybill"
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
		Name:        "societybill_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "societybill_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "societybill_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	jobSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "societybill_scheduler_job_skipped_total",
		Help:        "Scheduler job runs skipped because another replica held the lock.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "societybill_scheduler_batch_processed_total",
		Help:        "Units processed by the generation job, by outcome.",
		ConstLabels: constLabels,
	}, []string{"job", "outcome"})

	registerer.MustRegister(jobRuns, jobDuration, jobErrors, jobSkipped, batchProcessed)

	return &SchedulerMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobErrors:      jobErrors,
		jobSkipped:     jobSkipped,
		batchProcessed: batchProcessed,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) IncJobSkipped(job, reason string) {
	if m == nil {
		return
	}
	m.jobSkipped.WithLabelValues(job, reason).Inc()
}

// AddBatchProcessed adds count units processed with the given outcome.
func (m *SchedulerMetrics) AddBatchProcessed(job, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, outcome).Add(float64(count))
}

// ClassifySchedulerJobReason maps an error to a bounded label value.
func ClassifySchedulerJobReason(err error) string {
	if err == nil {
		return SchedulerJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerJobReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return SchedulerJobReasonUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return SchedulerJobReasonDBLockTimeout
		case "40001":
			return SchedulerJobReasonSerializationFailure
		case "23505":
			return SchedulerJobReasonUniqueViolation
		}
	}
	return SchedulerJobReasonUnknown
}
