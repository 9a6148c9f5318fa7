package eventfactory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/wire"
)

func TestFactory_StampsIdentityFromContext(t *testing.T) {
	ctx := &execctx.Context{
		RunID: "run-1", TraceID: "trace-1", SpanID: "span-1", ParentSpanID: "span-0",
		Depth: 2, NodeID: "classify", Iteration: 3,
		RunnableID: "agent-a", RunnableType: step.RunnableTypeAgent, NestingType: execctx.NestingToolCall,
	}
	f := New(ctx)

	e := f.RunStarted()
	assert.Equal(t, wire.EventRunStarted, e.Type)
	assert.Equal(t, "run-1", e.RunID)
	assert.Equal(t, "trace-1", e.TraceID)
	assert.Equal(t, 2, e.Depth)
	assert.Equal(t, "classify", e.NodeID)
	assert.Equal(t, "agent-a", e.Data["runnable_id"])

	delta := f.StepDelta(wire.Delta{Content: "hi"})
	assert.Equal(t, wire.EventStepDelta, delta.Type)
	assert.Equal(t, "hi", delta.Delta.Content)

	snap := f.StepCompleted(&step.Step{ID: "s1"})
	assert.Equal(t, "s1", snap.Snapshot.ID)
}
