package resume

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/orchestra/internal/runtime/agentexec"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/runtimetest"
	"github.com/runloom/orchestra/internal/runtime/sequence"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/steprepo"
	"github.com/runloom/orchestra/internal/runtime/store"
	"github.com/runloom/orchestra/internal/runtime/toolexec"
	"github.com/runloom/orchestra/internal/runtime/wire"
)

func TestAnalyze_EmptyLogNotResumable(t *testing.T) {
	_, ok := Analyze(nil)
	assert.False(t, ok)
}

func TestAnalyze_AssistantNoToolCallsIsAlreadyComplete(t *testing.T) {
	steps := []*step.Step{
		{Role: modelclient.RoleUser, Content: "hi", RunnableID: "agent-a"},
		{Role: modelclient.RoleAssistant, Content: "done", RunnableID: "agent-a"},
	}
	out, ok := Analyze(steps)
	require.True(t, ok)
	assert.True(t, out.AlreadyComplete)
	assert.Equal(t, "done", out.Response)
}

func TestAnalyze_AssistantWithToolCallsYieldsPending(t *testing.T) {
	calls := []modelclient.ToolCall{{ID: "call-1", Function: modelclient.ToolCallFunction{Name: "echo", Arguments: `{"text":"hi"}`}}}
	steps := []*step.Step{
		{Role: modelclient.RoleUser, Content: "please echo hi", RunnableID: "agent-a"},
		{Role: modelclient.RoleAssistant, ToolCalls: calls, RunnableID: "agent-a"},
	}
	out, ok := Analyze(steps)
	require.True(t, ok)
	assert.False(t, out.AlreadyComplete)
	assert.Equal(t, calls, out.PendingToolCalls)
}

func TestAnalyze_ContinuesFromToolStep(t *testing.T) {
	steps := []*step.Step{
		{Role: modelclient.RoleUser, Content: "hi", RunnableID: "agent-a"},
		{Role: modelclient.RoleAssistant, ToolCalls: []modelclient.ToolCall{{ID: "c1"}}, RunnableID: "agent-a"},
		{Role: modelclient.RoleTool, Content: "Echo: hi", ToolCallID: "c1", RunnableID: "agent-a"},
	}
	out, ok := Analyze(steps)
	require.True(t, ok)
	assert.False(t, out.AlreadyComplete)
	assert.Empty(t, out.PendingToolCalls)
	assert.Equal(t, 3, out.Conversation.Len())
}

// echoTool mirrors the agentexec test fixture's single-tool setup.
func echoTool() map[string]*toolexec.Tool {
	return map[string]*toolexec.Tool{
		"echo": {
			Name: "echo",
			Execute: func(args map[string]any, _ *execctx.Context, _ *execctx.AbortSignal) (string, any, error) {
				return "Echo: " + args["text"].(string), nil, nil
			},
		},
	}
}

type oneShotClient struct{ response string }

func (c oneShotClient) Name() string  { return "fake" }
func (c oneShotClient) Model() string { return "fake-model" }
func (c oneShotClient) Stream(_ context.Context, _ modelclient.StreamRequest) (<-chan modelclient.Chunk, <-chan error, error) {
	ch := make(chan modelclient.Chunk, 1)
	errCh := make(chan error, 1)
	ch <- modelclient.Chunk{Content: c.response}
	close(ch)
	close(errCh)
	return ch, errCh, nil
}

func newAgentFixture(t *testing.T, model modelclient.Client) (*agentexec.Executor, *runtimetest.MemorySessionStore) {
	t.Helper()
	mem := runtimetest.NewMemorySessionStore()
	repo := steprepo.New(mem, steprepo.NewPolicy(1))
	seq := sequence.New(mem)
	tools := toolexec.New(echoTool())
	exec := agentexec.New(agentexec.Config{Model: model, Tools: tools, Repo: repo, Seq: seq, MaxSteps: 10})
	return exec, mem
}

// primeSequence advances the in-memory store's sequence counter to match
// Steps that tests seed directly via SaveStep (bypassing sequence.Manager,
// which production code never does — every real Step allocates through it).
func primeSequence(t *testing.T, mem *runtimetest.MemorySessionStore, sessionID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := mem.AllocateSequence(context.Background(), sessionID)
		require.NoError(t, err)
	}
}

func newResumeCtx() *execctx.Context {
	return &execctx.Context{
		RunID: "run-resume", SessionID: "sess-1", Wire: wire.New(64),
		RunnableID: "agent-a", RunnableType: step.RunnableTypeAgent,
		Abort: execctx.NewAbortSignal(),
	}
}

// TestAgent_AlreadyCompleteReturnsImmediately covers the first Resume case:
// the session's last Step is a tool-call-free assistant message.
func TestAgent_AlreadyCompleteReturnsImmediately(t *testing.T) {
	exec, mem := newAgentFixture(t, oneShotClient{response: "unreachable"})
	require.NoError(t, mem.SaveStep(context.Background(), &step.Step{ID: "s1", SessionID: "sess-1", Sequence: 1, Role: modelclient.RoleUser, Content: "hi", RunnableID: "agent-a"}))
	require.NoError(t, mem.SaveStep(context.Background(), &step.Step{ID: "s2", SessionID: "sess-1", Sequence: 2, Role: modelclient.RoleAssistant, Content: "already done", RunnableID: "agent-a"}))

	out, err := Agent(context.Background(), mem, exec, "sess-1", "", newResumeCtx())
	require.NoError(t, err)
	assert.Equal(t, "already done", out.Response)
	assert.Equal(t, "normal", out.TerminationReason)

	steps, err := mem.GetSteps(context.Background(), "sess-1", store.StepFilter{})
	require.NoError(t, err)
	assert.Len(t, steps, 2, "resuming an already-complete session must not append new Steps")
}

// TestAgent_PendingToolCallsExecuteBeforeNextLLMCall covers the second
// Resume case: an unexecuted tool call from the last assistant Step is run
// before anything else.
func TestAgent_PendingToolCallsExecuteBeforeNextLLMCall(t *testing.T) {
	exec, mem := newAgentFixture(t, oneShotClient{response: "wrapped up"})
	primeSequence(t, mem, "sess-1", 2)
	require.NoError(t, mem.SaveStep(context.Background(), &step.Step{ID: "s1", SessionID: "sess-1", Sequence: 1, Role: modelclient.RoleUser, Content: "please echo hi", RunnableID: "agent-a"}))
	require.NoError(t, mem.SaveStep(context.Background(), &step.Step{
		ID: "s2", SessionID: "sess-1", Sequence: 2, Role: modelclient.RoleAssistant, RunnableID: "agent-a",
		ToolCalls: []modelclient.ToolCall{{ID: "call-1", Function: modelclient.ToolCallFunction{Name: "echo", Arguments: `{"text":"hi"}`}}},
	}))

	out, err := Agent(context.Background(), mem, exec, "sess-1", "agent-a", newResumeCtx())
	require.NoError(t, err)
	assert.Equal(t, "wrapped up", out.Response)

	steps, err := mem.GetSteps(context.Background(), "sess-1", store.StepFilter{})
	require.NoError(t, err)
	require.Len(t, steps, 4, "2 seeded + 1 tool result + 1 final assistant")
	assert.Equal(t, modelclient.RoleTool, steps[2].Role)
	assert.Equal(t, "Echo: hi", steps[2].Content)
}

func TestRetryAgent_DeletesAndReanalyzes(t *testing.T) {
	exec, mem := newAgentFixture(t, oneShotClient{response: "redone"})
	primeSequence(t, mem, "sess-1", 2)
	require.NoError(t, mem.SaveStep(context.Background(), &step.Step{ID: "s1", SessionID: "sess-1", Sequence: 1, Role: modelclient.RoleUser, Content: "hi", RunnableID: "agent-a"}))
	require.NoError(t, mem.SaveStep(context.Background(), &step.Step{ID: "s2", SessionID: "sess-1", Sequence: 2, Role: modelclient.RoleAssistant, Content: "stale answer", RunnableID: "agent-a"}))

	out, err := RetryAgent(context.Background(), mem, exec, "sess-1", "agent-a", 2, newResumeCtx())
	require.NoError(t, err)
	assert.Equal(t, "redone", out.Response)

	steps, err := mem.GetSteps(context.Background(), "sess-1", store.StepFilter{})
	require.NoError(t, err)
	require.Len(t, steps, 2, "the stale assistant Step was deleted and one fresh Step appended")
	assert.Equal(t, "redone", steps[1].Content)
}

func TestFork_CopiesUpToSequencePreservingNumbers(t *testing.T) {
	mem := runtimetest.NewMemorySessionStore()
	for i := 1; i <= 3; i++ {
		require.NoError(t, mem.SaveStep(context.Background(), &step.Step{
			ID: "orig-" + string(rune('0'+i)), SessionID: "sess-1", Sequence: i,
			Role: modelclient.RoleUser, Content: "msg", RunnableID: "agent-a",
		}))
	}

	require.NoError(t, Fork(context.Background(), mem, "sess-1", "sess-2", 2))

	forked, err := mem.GetSteps(context.Background(), "sess-2", store.StepFilter{})
	require.NoError(t, err)
	require.Len(t, forked, 2)
	assert.Equal(t, 1, forked[0].Sequence)
	assert.Equal(t, 2, forked[1].Sequence)
	for _, s := range forked {
		assert.Equal(t, "sess-2", s.SessionID)
	}

	original, err := mem.GetSteps(context.Background(), "sess-1", store.StepFilter{})
	require.NoError(t, err)
	assert.Len(t, original, 3, "forking must not mutate the source session")
}
