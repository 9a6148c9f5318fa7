package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/runtimetest"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/trace"
)

func testCollector() *trace.Collector {
	return trace.New(runtimetest.NewMemoryTraceStore(), nil, nil)
}

type stubRunnable struct {
	id    string
	err   error
	calls int
}

func (s *stubRunnable) ID() string                      { return s.id }
func (s *stubRunnable) RunnableType() step.RunnableType { return step.RunnableTypeAgent }
func (s *stubRunnable) Run(_ context.Context, _ string, _ *execctx.Context) (runnable.RunOutput, error) {
	s.calls++
	return runnable.RunOutput{Response: "ok"}, s.err
}

type stubRegistry struct {
	targets map[string]*stubRunnable
}

func (r *stubRegistry) Find(id string) (runnable.Runnable, bool) {
	t, ok := r.targets[id]
	return t, ok
}

func TestRunTriggerTask_Run_Success(t *testing.T) {
	target := &stubRunnable{id: "agent-a"}
	reg := &stubRegistry{targets: map[string]*stubRunnable{"agent-a": target}}
	exec := runnable.New(runtimetest.NewMemorySessionStore(), nil)
	task := NewRunTriggerTask("agent-a", "do the thing", reg, exec, testCollector(), slog.Default())

	err := task.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, target.calls)
}

func TestRunTriggerTask_Run_UnknownRunnable(t *testing.T) {
	reg := &stubRegistry{targets: map[string]*stubRunnable{}}
	exec := runnable.New(runtimetest.NewMemorySessionStore(), nil)
	task := NewRunTriggerTask("missing", "", reg, exec, testCollector(), slog.Default())

	err := task.Run(context.Background())
	require.Error(t, err)
}

func TestRunTriggerTask_Run_PropagatesRunnableError(t *testing.T) {
	target := &stubRunnable{id: "agent-a", err: errors.New("boom")}
	reg := &stubRegistry{targets: map[string]*stubRunnable{"agent-a": target}}
	exec := runnable.New(runtimetest.NewMemorySessionStore(), nil)
	task := NewRunTriggerTask("agent-a", "", reg, exec, testCollector(), slog.Default())

	err := task.Run(context.Background())
	require.Error(t, err)
}
