package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/runnabletool"
	"github.com/runloom/orchestra/internal/runtime/trace"
	"github.com/runloom/orchestra/internal/runtime/wire"
	"github.com/runloom/orchestra/pkg/logger"
)

// scheduledDefinition is the subset of an agent_definitions row that names a
// cron-triggered run: a catalog entry whose config JSONB carries
// "cronSchedule" (and optionally "input", the text fed to the run).
type scheduledDefinition struct {
	ID           string  `bun:"id"`
	CronSchedule string  `bun:"cron_schedule"`
	Input        *string `bun:"input"`
}

// RunTriggerTask runs one catalog Runnable on its own goroutine-local Wire.
// Unlike Handler.Trigger's request-scoped Wire, nothing streams the events
// to an HTTP client — the one consumer is the TraceCollector, so a cron
// run's spans still land in the trace store (spec §4.A cron path, §4.L).
type RunTriggerTask struct {
	runnableID string
	input      string
	registry   runnabletool.Registry
	executor   *runnable.Executor
	collector  *trace.Collector
	log        *slog.Logger
}

// NewRunTriggerTask constructs a RunTriggerTask for one catalog entry.
func NewRunTriggerTask(runnableID, input string, registry runnabletool.Registry, executor *runnable.Executor, collector *trace.Collector, log *slog.Logger) *RunTriggerTask {
	return &RunTriggerTask{
		runnableID: runnableID, input: input, registry: registry, executor: executor, collector: collector,
		log: log.With(logger.Scope("scheduler.run_trigger"), slog.String("runnable_id", runnableID)),
	}
}

// Run resolves and executes the target Runnable, matching the TaskFunc signature.
func (t *RunTriggerTask) Run(ctx context.Context) error {
	target, ok := t.registry.Find(t.runnableID)
	if !ok {
		return fmt.Errorf("scheduled run: runnable %q not found in catalog", t.runnableID)
	}

	w := wire.New(0)
	go func() {
		for event := range w.Read() {
			t.collector.Handle(ctx, event)
		}
	}()

	runID := uuid.NewString()
	ec := &execctx.Context{
		RunID:        runID,
		SessionID:    uuid.NewString(),
		Wire:         w,
		RunnableID:   target.ID(),
		RunnableType: target.RunnableType(),
		TraceID:      uuid.NewString(),
		SpanID:       runID,
	}

	out, err := t.executor.Execute(ctx, target, t.input, ec)
	w.Close()
	if err != nil {
		t.log.Error("scheduled run failed", logger.Error(err))
		return err
	}
	t.log.Debug("scheduled run completed", slog.String("run_id", out.RunID))
	return nil
}

// CatalogSyncTask rescans kb.agent_definitions for cron-scheduled entries
// and (re-)registers one Scheduler task per entry, so adding/removing a
// schedule from a definition's config takes effect without a restart.
type CatalogSyncTask struct {
	db        bun.IDB
	scheduler *Scheduler
	registry  runnabletool.Registry
	executor  *runnable.Executor
	collector *trace.Collector
	log       *slog.Logger
}

// NewCatalogSyncTask constructs a CatalogSyncTask.
func NewCatalogSyncTask(db bun.IDB, s *Scheduler, registry runnabletool.Registry, executor *runnable.Executor, collector *trace.Collector, log *slog.Logger) *CatalogSyncTask {
	return &CatalogSyncTask{
		db: db, scheduler: s, registry: registry, executor: executor, collector: collector,
		log: log.With(logger.Scope("scheduler.catalog_sync")),
	}
}

// Run fetches every scheduled definition and registers its cron task under
// the stable name "run:<id>", so a re-sync just overwrites the prior entry
// (Scheduler.AddCronTask already removes an existing task of the same name).
func (t *CatalogSyncTask) Run(ctx context.Context) error {
	// Avoids Postgres's JSONB "has key" operator (`?`) deliberately: bun's
	// NewRaw treats a literal `?` as its own positional-placeholder token,
	// so the has-key test is expressed as a plain text comparison instead.
	var rows []scheduledDefinition
	err := t.db.NewRaw(`
		SELECT id, config->>'cronSchedule' AS cron_schedule, config->>'input' AS input
		FROM kb.agent_definitions
		WHERE config->>'cronSchedule' IS NOT NULL AND config->>'cronSchedule' != ''
	`).Scan(ctx, &rows)
	if err != nil {
		return fmt.Errorf("catalog sync: list scheduled definitions: %w", err)
	}

	active := make(map[string]bool, len(rows))
	for _, row := range rows {
		input := ""
		if row.Input != nil {
			input = *row.Input
		}
		task := NewRunTriggerTask(row.ID, input, t.registry, t.executor, t.collector, t.log)
		name := "run:" + row.ID
		active[name] = true
		if err := t.scheduler.AddCronTask(name, row.CronSchedule, task.Run); err != nil {
			t.log.Warn("invalid cron schedule on agent definition",
				slog.String("runnable_id", row.ID), logger.Error(err))
		}
	}

	for _, name := range t.scheduler.ListTasks() {
		if name == catalogSyncTaskName || active[name] {
			continue
		}
		t.scheduler.RemoveTask(name)
	}
	return nil
}

const catalogSyncTaskName = "catalog_sync"
