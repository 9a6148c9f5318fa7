// Package metrics implements the lifecycle instrumentation hook referenced
// throughout the runtime core as an optional Recorder (runnable.Recorder
// and similar small interfaces), backed by Prometheus counters/histograms
// instead of the in-process counters a simpler hook would keep.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/runloom/orchestra/internal/runtime/step"
)

var (
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestra_runs_started_total",
		Help: "Total number of Runnable.Run invocations started.",
	}, []string{"runnable_type", "runnable_id"})

	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestra_runs_completed_total",
		Help: "Total number of Runnable.Run invocations that reached a terminal status.",
	}, []string{"runnable_type", "runnable_id", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orchestra_run_duration_seconds",
		Help:    "Duration of a Runnable.Run invocation from RUN_STARTED to its terminal event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"runnable_type", "runnable_id", "status"})

	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestra_tool_calls_total",
		Help: "Total number of tool invocations, by outcome.",
	}, []string{"tool_name", "status"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orchestra_tool_call_duration_seconds",
		Help:    "Duration of a single tool invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool_name"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestra_errors_total",
		Help: "Total number of runtime errors, by kind.",
	}, []string{"error_type"})
)

// Recorder satisfies runnable.Recorder (and any structurally-identical
// hook interface elsewhere in the runtime core) with Prometheus-backed
// counters instead of requiring each package to depend on this one
// directly — callers only need the two-method shape.
type Recorder struct {
	mu    sync.Mutex
	types map[string]step.RunnableType // runnable_id -> type, bridges RunStarted's type into RunFinished
}

// NewRecorder constructs a Recorder. Prometheus vectors are themselves
// concurrency-safe; the internal map is guarded separately since
// RunnableTool nesting can have several runs of different runnable_ids
// started and finished concurrently.
func NewRecorder() *Recorder {
	return &Recorder{types: make(map[string]step.RunnableType)}
}

// RunStarted implements runnable.Recorder.
func (r *Recorder) RunStarted(runnableID string, runnableType step.RunnableType) {
	r.mu.Lock()
	r.types[runnableID] = runnableType
	r.mu.Unlock()
	runsStarted.WithLabelValues(string(runnableType), runnableID).Inc()
}

// RunFinished implements runnable.Recorder.
func (r *Recorder) RunFinished(runnableID string, status step.RunStatus, duration time.Duration) {
	r.mu.Lock()
	runnableType := r.types[runnableID]
	delete(r.types, runnableID)
	r.mu.Unlock()

	runsCompleted.WithLabelValues(string(runnableType), runnableID, string(status)).Inc()
	runDuration.WithLabelValues(string(runnableType), runnableID, string(status)).Observe(duration.Seconds())
}

// ToolExecuted records one tool invocation's outcome and duration. It has
// no interface of its own to satisfy yet — toolexec.Executor doesn't take
// a recorder dependency — so callers (e.g. a domain-level wrapper around
// toolexec.Result) invoke it directly where a tool result is observed.
func ToolExecuted(toolName string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "ok"
	}
	toolCalls.WithLabelValues(toolName, status).Inc()
	toolDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// ErrorOccurred records a runtime error by its apperror code.
func ErrorOccurred(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
