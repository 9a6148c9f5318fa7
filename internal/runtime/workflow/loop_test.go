package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/runtimetest"
)

// TestLoop_ConditionFalseStopsAfterOneIteration covers S4's first case:
// condition="false" runs exactly one iteration regardless of max_iterations.
func TestLoop_ConditionFalseStopsAfterOneIteration(t *testing.T) {
	mem := runtimetest.NewMemorySessionStore()
	exec := runnable.New(mem, nil)

	calls := 0
	node := &echoRunnable{id: "step", transform: func(in string) string { calls++; return in }}
	nodes := []Node{{ID: "step", Runnable: node, InputTemplate: mustTemplate(t, "{{input}}")}}
	wf := NewLoopWorkflow("wf-loop", nodes, mustCondition(t, "false"), 5, exec)

	ec, w := newTestExecCtx("sess-1", "wf-loop")
	go func() { _, _ = wf.Run(context.Background(), "hi", ec); w.Close() }()
	for range w.Read() {
	}
	assert.Equal(t, 1, calls)
}

// TestLoop_ConditionTrueRunsUntilMaxIterations covers S4's second case.
func TestLoop_ConditionTrueRunsUntilMaxIterations(t *testing.T) {
	mem := runtimetest.NewMemorySessionStore()
	exec := runnable.New(mem, nil)

	calls := 0
	node := &echoRunnable{id: "step", transform: func(in string) string { calls++; return in }}
	nodes := []Node{{ID: "step", Runnable: node, InputTemplate: mustTemplate(t, "{{input}}")}}
	wf := NewLoopWorkflow("wf-loop", nodes, mustCondition(t, "true"), 2, exec)

	ec, w := newTestExecCtx("sess-1", "wf-loop")
	var iterations []int
	go func() { _, _ = wf.Run(context.Background(), "hi", ec); w.Close() }()
	for e := range w.Read() {
		if e.Type == "ITERATION_STARTED" {
			iterations = append(iterations, e.Iteration)
		}
	}
	require.Len(t, iterations, 2)
	assert.Equal(t, []int{0, 1}, iterations)
	assert.Equal(t, 2, calls)
}
