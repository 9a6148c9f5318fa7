package runnable

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/eventfactory"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/store"
	"github.com/runloom/orchestra/pkg/apperror"
)

// Recorder receives lifecycle notifications for metrics purposes. Executor
// accepts nil, making the dependency optional (the supplemented lifecycle
// metrics hook — see internal/runtime/metrics.Recorder — is one
// implementation, but any other instrumentation can implement this small
// interface defined where it's consumed).
type Recorder interface {
	RunStarted(runnableID string, runnableType step.RunnableType)
	RunFinished(runnableID string, status step.RunStatus, duration time.Duration)
}

// Executor wraps any Runnable with Run lifecycle and persistence.
type Executor struct {
	store    store.SessionStore
	recorder Recorder
}

// New constructs an Executor. recorder may be nil.
func New(sessionStore store.SessionStore, recorder Recorder) *Executor {
	return &Executor{store: sessionStore, recorder: recorder}
}

// Execute runs r to completion, emitting RUN_STARTED/RUN_COMPLETED/
// RUN_FAILED on ec.Wire and persisting the Run record throughout.
func (e *Executor) Execute(ctx context.Context, r Runnable, input string, ec *execctx.Context) (RunOutput, error) {
	f := eventfactory.New(ec)
	start := time.Now()

	run := &step.Run{
		ID:           ec.RunID,
		RunnableID:   r.ID(),
		RunnableType: r.RunnableType(),
		SessionID:    ec.SessionID,
		InputQuery:   input,
		Status:       step.RunStatusRunning,
		WorkflowID:   ec.WorkflowID,
		ParentRunID:  ec.ParentRunID,
		CreatedAt:    start,
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		return RunOutput{}, err
	}
	if e.recorder != nil {
		e.recorder.RunStarted(r.ID(), r.RunnableType())
	}
	ec.Wire.Write(f.RunStarted())

	output, runErr := r.Run(ctx, input, ec)

	completedAt := time.Now()
	run.CompletedAt = &completedAt
	run.Metrics.DurationMS = completedAt.Sub(start).Milliseconds()
	if output.Metrics != nil {
		run.Metrics = *output.Metrics
		run.Metrics.DurationMS = completedAt.Sub(start).Milliseconds()
	}

	if runErr != nil {
		run.Status = step.RunStatusFailed
		run.Error = runErr.Error()
		_ = e.store.SaveRun(ctx, run)
		if e.recorder != nil {
			e.recorder.RunFinished(r.ID(), run.Status, completedAt.Sub(start))
		}
		ec.Wire.Write(f.RunFailed(runErr.Error(), errorType(runErr)))
		output.Error = runErr.Error()
		output.RunID = run.ID
		output.SessionID = ec.SessionID
		return output, runErr
	}

	// Cancellation that successfully produced a termination summary is
	// COMPLETED, not FAILED (spec §7): the presence of a non-empty
	// response for termination_reason in {"timeout","cancelled"} signals
	// this case to the caller building RunOutput.
	run.Status = step.RunStatusCompleted
	_ = e.store.SaveRun(ctx, run)
	if e.recorder != nil {
		e.recorder.RunFinished(r.ID(), run.Status, completedAt.Sub(start))
	}
	output.RunID = run.ID
	output.SessionID = ec.SessionID
	ec.Wire.Write(f.RunCompleted(output.Response, output.TerminationReason))
	return output, nil
}

func errorType(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}
