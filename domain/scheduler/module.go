package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

// Module provides cron-triggered Runnable execution (spec §4.A's cron
// path): on startup, and on every Config.SyncInterval thereafter, it scans
// the catalog for AgentDefinition rows naming a cron schedule and keeps the
// Scheduler's task set in sync with them.
var Module = fx.Module("scheduler",
	fx.Provide(
		NewConfig,
		NewScheduler,
		NewCatalogSyncTask,
	),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains dependencies for creating scheduled tasks.
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	Sync      *CatalogSyncTask
	Log       *slog.Logger
	Cfg       *Config
}

// RegisterTasks registers the recurring catalog sync, then runs it once
// immediately so the first Start() already has every current schedule.
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}
	if err := p.Scheduler.AddIntervalTask(catalogSyncTaskName, p.Cfg.SyncInterval, p.Sync.Run); err != nil {
		return err
	}
	if err := p.Sync.Run(context.Background()); err != nil {
		p.Log.Warn("initial catalog sync failed", slog.String("error", err.Error()))
	}
	p.Log.Info("registered scheduled tasks", slog.Any("tasks", p.Scheduler.ListTasks()))
	return nil
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *Config) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
