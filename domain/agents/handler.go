package agents

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/runloom/orchestra/internal/config"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/trace"
	"github.com/runloom/orchestra/internal/runtime/wire"
	"github.com/runloom/orchestra/pkg/apperror"
	"github.com/runloom/orchestra/pkg/logger"
	"github.com/runloom/orchestra/pkg/sse"
)

// runnableFinder is the one Registry method Handler needs, narrowed to its
// own interface so tests can stub catalog lookups without a live database.
type runnableFinder interface {
	Find(id string) (runnable.Runnable, bool)
}

// Handler exposes the one HTTP surface this module needs: triggering a
// catalog Runnable and streaming its Wire events back as SSE (spec §4.A).
// Every other admin/CRUD surface the teacher's handler carried (agent
// manifest editing, run history listing, MCP tool routing, webhook
// triggers/rate-limiting) is out of scope — see DESIGN.md.
type Handler struct {
	registry   runnableFinder
	executor   *runnable.Executor
	collector  *trace.Collector
	log        *slog.Logger
	runTimeout time.Duration
}

// NewHandler constructs a Handler. cfg.AgentRunTimeout bounds every
// triggered run; once elapsed, Trigger's watchdog raises the run's
// AbortSignal rather than leaving the run to finish on its own schedule.
func NewHandler(registry *Registry, executor *runnable.Executor, collector *trace.Collector, log *slog.Logger, cfg *config.Config) *Handler {
	return &Handler{
		registry:   registry,
		executor:   executor,
		collector:  collector,
		log:        log.With(logger.Scope("agents.handler")),
		runTimeout: cfg.AgentRunTimeout,
	}
}

// triggerRequest is the JSON body of POST /api/v1/runnables/:id/trigger.
type triggerRequest struct {
	SessionID string `json:"sessionId"`
	Input     string `json:"input"`
}

// Trigger runs a catalog Runnable identified by :id against an input,
// streaming the run's Wire events as SSE until the run completes (spec
// §4.A, §4.I). A fresh session_id is minted when the caller omits one.
func (h *Handler) Trigger(c echo.Context) error {
	id := c.Param("id")
	target, ok := h.registry.Find(id)
	if !ok {
		return apperror.NewNotFound("runnable", id)
	}

	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	w := wire.New(0)
	runID := uuid.NewString()
	ec := &execctx.Context{
		RunID:        runID,
		SessionID:    req.SessionID,
		Wire:         w,
		RunnableID:   target.ID(),
		RunnableType: target.RunnableType(),
		TraceID:      uuid.NewString(),
		SpanID:       runID,
		Abort:        execctx.NewAbortSignal(),
	}
	if h.runTimeout > 0 {
		deadline := time.Now().Add(h.runTimeout)
		ec.TimeoutAt = &deadline
	}

	ctx := c.Request().Context()
	done := make(chan struct{})
	go func() {
		defer w.Close()
		defer close(done)
		if _, err := h.executor.Execute(ctx, target, req.Input, ec); err != nil {
			h.log.Warn("triggered run finished with error", slog.String("runnable_id", id), logger.Error(err))
		}
	}()
	if ec.TimeoutAt != nil {
		go h.watchTimeout(ec, done)
	}

	return h.streamSSE(c, w)
}

// watchTimeout raises ec.Abort with reason "timeout" once ec.TimeoutAt
// elapses, unless the run already finished. This is the only production
// path that ever raises a run's AbortSignal from an actual deadline rather
// than a caller-initiated cancellation.
func (h *Handler) watchTimeout(ec *execctx.Context, done <-chan struct{}) {
	timer := time.NewTimer(time.Until(*ec.TimeoutAt))
	defer timer.Stop()
	select {
	case <-timer.C:
		ec.Abort.Abort("timeout")
	case <-done:
	}
}

// streamSSE relays every Wire event to the client as a data-only SSE
// message until the run completes and the Wire closes (spec §4.I), and
// feeds the same event to the TraceCollector (spec §4.L) — the Wire has a
// single real consumer (wire.Wire.Read's re-posted sentinel only guarantees
// every reader observes termination, not that every reader sees every
// event), so collector and SSE fan out from this one read loop rather than
// each opening their own.
func (h *Handler) streamSSE(c echo.Context, w *wire.Wire) error {
	writer := sse.NewWriter(c.Response())
	if err := writer.Start(); err != nil {
		return apperror.NewInternal("sse not supported", err)
	}
	defer writer.Close()

	ctx := c.Request().Context()
	for event := range w.Read() {
		h.collector.Handle(ctx, event)
		if err := writer.WriteData(event); err != nil {
			h.log.Warn("sse write failed", logger.Error(err))
			return nil
		}
	}
	return nil
}
