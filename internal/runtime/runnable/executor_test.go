package runnable

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runtimetest"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/wire"
)

type stubRunnable struct {
	id      string
	rtype   step.RunnableType
	output  RunOutput
	err     error
}

func (s *stubRunnable) ID() string                       { return s.id }
func (s *stubRunnable) RunnableType() step.RunnableType  { return s.rtype }
func (s *stubRunnable) Run(_ context.Context, _ string, _ *execctx.Context) (RunOutput, error) {
	return s.output, s.err
}

func newTestContext(w *wire.Wire) *execctx.Context {
	return &execctx.Context{RunID: "run-1", SessionID: "sess-1", Wire: w, RunnableID: "agent-a", RunnableType: step.RunnableTypeAgent}
}

func TestExecute_SuccessEmitsStartedThenCompleted(t *testing.T) {
	mem := runtimetest.NewMemorySessionStore()
	exec := New(mem, nil)
	w := wire.New(8)
	ec := newTestContext(w)

	go func() {
		_, err := exec.Execute(context.Background(), &stubRunnable{id: "agent-a", rtype: step.RunnableTypeAgent, output: RunOutput{Response: "hi"}}, "hello", ec)
		require.NoError(t, err)
		w.Close()
	}()

	var types []wire.EventType
	for e := range w.Read() {
		types = append(types, e.Type)
	}
	require.Len(t, types, 2)
	assert.Equal(t, wire.EventRunStarted, types[0])
	assert.Equal(t, wire.EventRunCompleted, types[1])

	run, err := mem.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, step.RunStatusCompleted, run.Status)
}

func TestExecute_FailureEmitsRunFailedAndPersistsFailedStatus(t *testing.T) {
	mem := runtimetest.NewMemorySessionStore()
	exec := New(mem, nil)
	w := wire.New(8)
	ec := newTestContext(w)

	go func() {
		_, _ = exec.Execute(context.Background(), &stubRunnable{id: "agent-a", rtype: step.RunnableTypeAgent, err: errors.New("boom")}, "hello", ec)
		w.Close()
	}()

	var types []wire.EventType
	for e := range w.Read() {
		types = append(types, e.Type)
	}
	require.Len(t, types, 2)
	assert.Equal(t, wire.EventRunFailed, types[1])

	run, err := mem.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, step.RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
}
