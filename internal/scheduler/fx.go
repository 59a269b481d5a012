package scheduler

import (
	"context"

	"github.com/smallbiznis/societybill/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(NewLocker),
	fx.Provide(New),
	fx.Invoke(Register),
)

// Register ties the cron loop to the app lifecycle when SCHEDULER_ENABLED is set.
func Register(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.SchedulerEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
