package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	obscontext "github.com/smallbiznis/societybill/internal/observability/context"
	obslogger "github.com/smallbiznis/societybill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/societybill/internal/observability/metrics"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	forMonth       string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) newJobRun(job, forMonth string) *jobRun {
	return &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		forMonth:  forMonth,
		startedAt: s.clock.Now(),
	}
}

func (s *Scheduler) withLogContext(ctx context.Context, societyID snowflake.ID) context.Context {
	ctx = obscontext.WithActor(ctx, "system", s.cfg.SystemActorID)
	if societyID != 0 {
		ctx = obscontext.WithSocietyID(ctx, societyID.String())
	}
	return ctx
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("for_month", run.forMonth),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.String("for_month", run.forMonth),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, societyID snowflake.ID, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.IncError()
	ctx = s.withLogContext(ctx, societyID)
	baseFields := []zap.Field{
		zap.String("job", run.job),
		zap.String("society_id", idString(societyID)),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	}
	s.logger(ctx).Error(msg, append(baseFields, fields...)...)
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}

// cronLogger routes robfig/cron's internal logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

var _ cron.Logger = cronLogger{}

func newCronLogger(log *zap.Logger) cronLogger {
	return cronLogger{log: log.Named("cron").Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
