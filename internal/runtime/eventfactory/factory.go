// Package eventfactory provides the single sanctioned constructor for wire
// events outside tests (spec §4.E), filling in each event's run and tracing
// fields from the ExecutionContext.
package eventfactory

import (
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/wire"
)

// Factory is bound to one ExecutionContext and stamps every event it
// constructs with that context's run_id, trace/span/parent-span ids, depth,
// node_id and iteration. runnable_id, runnable_type, nesting_type and
// parent_run_id are not set on events in general: only RunStarted carries
// them, inside its Data map.
type Factory struct {
	ctx *execctx.Context
}

// New binds a Factory to ctx.
func New(ctx *execctx.Context) *Factory { return &Factory{ctx: ctx} }

func (f *Factory) base(t wire.EventType) wire.Event {
	return wire.Event{
		Type:         t,
		RunID:        f.ctx.RunID,
		TraceID:      f.ctx.TraceID,
		SpanID:       f.ctx.SpanID,
		ParentSpanID: f.ctx.ParentSpanID,
		Depth:        f.ctx.Depth,
		NodeID:       f.ctx.NodeID,
		Iteration:    f.ctx.Iteration,
	}
}

// RunStarted builds a RUN_STARTED event.
func (f *Factory) RunStarted() wire.Event {
	e := f.base(wire.EventRunStarted)
	e.Data = map[string]any{
		"runnable_id":   f.ctx.RunnableID,
		"runnable_type": f.ctx.RunnableType,
		"nesting_type":  f.ctx.NestingType,
		"parent_run_id": f.ctx.ParentRunID,
	}
	return e
}

// RunCompleted builds a RUN_COMPLETED event carrying a response preview.
func (f *Factory) RunCompleted(response string, terminationReason string) wire.Event {
	e := f.base(wire.EventRunCompleted)
	e.Data = map[string]any{"response": response, "termination_reason": terminationReason}
	return e
}

// RunFailed builds a RUN_FAILED event.
func (f *Factory) RunFailed(errMsg, errType string) wire.Event {
	e := f.base(wire.EventRunFailed)
	e.Data = map[string]any{"error": errMsg, "error_type": errType}
	return e
}

// StepDelta builds a STEP_DELTA event from a partial chunk.
func (f *Factory) StepDelta(d wire.Delta) wire.Event {
	e := f.base(wire.EventStepDelta)
	e.Delta = &d
	return e
}

// StepCompleted builds a STEP_COMPLETED event snapshotting a finalised Step.
func (f *Factory) StepCompleted(s *step.Step) wire.Event {
	e := f.base(wire.EventStepCompleted)
	e.Snapshot = s
	return e
}

// StageStarted/StageCompleted/StageSkipped build workflow stage markers.
func (f *Factory) StageStarted(nodeID string) wire.Event {
	e := f.base(wire.EventStageStarted)
	e.NodeID = nodeID
	return e
}

func (f *Factory) StageCompleted(nodeID string) wire.Event {
	e := f.base(wire.EventStageCompleted)
	e.NodeID = nodeID
	return e
}

func (f *Factory) StageSkipped(nodeID, reason string) wire.Event {
	e := f.base(wire.EventStageSkipped)
	e.NodeID = nodeID
	e.Data = map[string]any{"reason": reason}
	return e
}

// IterationStarted builds an ITERATION_STARTED marker.
func (f *Factory) IterationStarted(iteration int) wire.Event {
	e := f.base(wire.EventIterationStarted)
	e.Iteration = iteration
	return e
}

// BranchStarted/BranchCompleted build ParallelWorkflow branch markers.
func (f *Factory) BranchStarted(branchID string) wire.Event {
	e := f.base(wire.EventBranchStarted)
	e.BranchID = branchID
	return e
}

func (f *Factory) BranchCompleted(branchID string) wire.Event {
	e := f.base(wire.EventBranchCompleted)
	e.BranchID = branchID
	return e
}

// Error builds a standalone ERROR event (distinct from RUN_FAILED — used
// for non-terminal, logged-but-surfaced errors).
func (f *Factory) Error(errMsg string) wire.Event {
	e := f.base(wire.EventError)
	e.Data = map[string]any{"error": errMsg}
	return e
}
