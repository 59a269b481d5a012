package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/societybill/internal/authorization"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	obsmetrics "github.com/smallbiznis/societybill/internal/observability/metrics"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobGenerateMonthlyBills = "generate_monthly_bills"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Bills    billdomain.Service
	Units    unitdomain.Directory
	AuthzSvc authorization.Service
	Locker   Locker
	Billing  *config.BillingConfigHolder  `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
	Config   Config                       `optional:"true"`
}

// Scheduler runs monthly bill generation for every society. Each society-month is
// guarded by a lock so only one replica generates it at a time; generation itself is
// idempotent, so a lost lock costs duplicate work, never duplicate bills.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	bills    billdomain.Service
	units    unitdomain.Directory
	authzSvc authorization.Service
	locker   Locker
	billing  *config.BillingConfigHolder
	metrics  *obsmetrics.SchedulerMetrics

	mu   sync.Mutex
	cron *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Bills == nil || p.Units == nil || p.AuthzSvc == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		bills:    p.Bills,
		units:    p.Units,
		authzSvc: p.AuthzSvc,
		locker:   p.Locker,
		billing:  p.Billing,
		metrics:  p.Metrics,
	}, nil
}

// Start registers the generation job on the configured cron schedule, evaluated in the
// billing timezone.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	billing := s.billing.Get()
	logger := newCronLogger(s.log)
	c := cron.New(
		cron.WithLocation(billing.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(billing.GenerationSchedule, func() {
		if err := s.RunMonthlyGeneration(context.Background()); err != nil {
			s.log.Warn("scheduled generation finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", JobGenerateMonthlyBills, err)
	}
	c.Start()
	s.cron = c

	s.log.Info("scheduler started",
		zap.String("job", JobGenerateMonthlyBills),
		zap.String("schedule", billing.GenerationSchedule),
		zap.String("timezone", billing.Location().String()),
	)
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunMonthlyGeneration bills the current month, as seen in the billing timezone.
func (s *Scheduler) RunMonthlyGeneration(parent context.Context) error {
	today := billdomain.DateOf(s.clock.Now(), s.billing.Get().Location())
	return s.GenerateMonth(parent, billdomain.FormatForMonth(today.Year(), today.Month()))
}

func (s *Scheduler) GenerateMonth(parent context.Context, forMonth string) error {
	if _, _, err := billdomain.ParseForMonth(forMonth); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	ctx = s.withLogContext(ctx, 0)

	run := s.newJobRun(JobGenerateMonthlyBills, forMonth)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(run.job)

	err := s.generateMonth(ctx, run)
	s.metrics.ObserveJobDuration(run.job, s.clock.Now().Sub(run.startedAt))
	if err != nil {
		if run.errorCount == 0 {
			run.IncError()
		}
		s.metrics.IncJobError(run.job, err)
	}
	s.logJobFinish(ctx, run)

	if err != nil {
		return fmt.Errorf("%s: %w", run.job, err)
	}
	return nil
}

func (s *Scheduler) generateMonth(ctx context.Context, run *jobRun) error {
	societies, err := s.units.ListSocietyIDs(ctx)
	if err != nil {
		return err
	}

	var jobErr error
	for _, societyID := range societies {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		if err := s.generateSociety(ctx, run, societyID); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}
	return jobErr
}

func (s *Scheduler) generateSociety(parent context.Context, run *jobRun, societyID snowflake.ID) error {
	ctx := s.withLogContext(parent, societyID)

	actor := authorization.Actor{ID: s.cfg.SystemActorID, Role: authorization.RoleSystem}
	if err := s.authzSvc.Authorize(ctx, actor, societyID.String(), authorization.ObjectMaintenanceBill, authorization.ActionBillGenerate); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.society.unauthorized", societyID, err)
		return err
	}

	key := fmt.Sprintf("%s:%s:%s", s.cfg.LockPrefix, societyID, run.forMonth)
	token, ok, err := s.locker.TryLock(ctx, key, s.billing.Get().GenerationLockTTL)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.society.lock_failed", societyID, err)
		return err
	}
	if !ok {
		s.metrics.IncJobSkipped(run.job, obsmetrics.SchedulerSkipReasonLockHeld)
		s.logger(ctx).Info("scheduler.society.skipped",
			zap.String("job", run.job),
			zap.String("society_id", societyID.String()),
			zap.String("reason", obsmetrics.SchedulerSkipReasonLockHeld),
		)
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("scheduler.society.release_failed", zap.String("key", key), zap.Error(err))
		}
	}()

	report, err := s.bills.GenerateForSociety(ctx, societyID, run.forMonth)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.society.failed", societyID, err)
		return err
	}

	s.metrics.AddBatchProcessed(run.job, "created", len(report.Created))
	s.metrics.AddBatchProcessed(run.job, "duplicate", report.Duplicate)
	s.metrics.AddBatchProcessed(run.job, "no_rule", len(report.NoRule))
	s.metrics.AddBatchProcessed(run.job, "failed", len(report.Failed))
	run.AddProcessed(len(report.Created) + report.Duplicate + len(report.NoRule) + len(report.Failed))

	if len(report.Failed) > 0 {
		run.IncError()
		s.logger(ctx).Warn("scheduler.society.partial",
			zap.String("society_id", societyID.String()),
			zap.Int("failed", len(report.Failed)),
		)
	}
	return nil
}
