package agentexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func strPtr(s string) *string { return &s }

// alwaysToolCallClient always responds with a single "echo" tool call when
// the request carries tools, and a plain text response when it doesn't
// (simulating the tools-disabled termination summary turn).
type alwaysToolCallClient struct {
	calls int
}

func (c *alwaysToolCallClient) Name() string  { return "fake" }
func (c *alwaysToolCallClient) Model() string { return "fake-model" }

func (c *alwaysToolCallClient) Stream(_ context.Context, req modelclient.StreamRequest) (<-chan modelclient.Chunk, <-chan error, error) {
	c.calls++
	ch := make(chan modelclient.Chunk, 2)
	errCh := make(chan error, 1)
	if req.Tools == nil {
		ch <- modelclient.Chunk{Content: "final summary"}
		close(ch)
		close(errCh)
		return ch, errCh, nil
	}
	id := "call-1"
	ch <- modelclient.Chunk{ToolCalls: []modelclient.ToolCallFragment{{
		Index:    0,
		ID:       strPtr(id),
		Function: modelclient.ToolCallFunctionFragment{Name: strPtr("echo"), Arguments: strPtr(`{"text":"hi"}`)},
	}}}
	close(ch)
	close(errCh)
	return ch, errCh, nil
}

// oneShotClient replies once with plain content and no tool calls.
type oneShotClient struct{}

func (oneShotClient) Name() string  { return "fake" }
func (oneShotClient) Model() string { return "fake-model" }

func (oneShotClient) Stream(_ context.Context, _ modelclient.StreamRequest) (<-chan modelclient.Chunk, <-chan error, error) {
	ch := make(chan modelclient.Chunk, 2)
	errCh := make(chan error, 1)
	ch <- modelclient.Chunk{Content: "hello "}
	ch <- modelclient.Chunk{Content: "world", Usage: &modelclient.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}}
	close(ch)
	close(errCh)
	return ch, errCh, nil
}

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

func newFixture(t *testing.T, model modelclient.Client, maxSteps int, enableSummary bool) (*Executor, *runtimetest.MemorySessionStore, *execctx.Context) {
	t.Helper()
	mem := runtimetest.NewMemorySessionStore()
	repo := steprepo.New(mem, steprepo.NewPolicy(1))
	seq := sequence.New(mem)
	tools := toolexec.New(echoTool())

	exec := New(Config{
		Model:                    model,
		Tools:                    tools,
		ToolDefs:                 tools.ToolDefs(),
		Repo:                     repo,
		Seq:                      seq,
		MaxSteps:                 maxSteps,
		EnableTerminationSummary: enableSummary,
	})

	w := wire.New(64)
	ec := &execctx.Context{
		RunID: "run-1", SessionID: "sess-1", Wire: w,
		RunnableID: "agent-a", RunnableType: step.RunnableTypeAgent,
		Abort: execctx.NewAbortSignal(),
	}
	return exec, mem, ec
}

// TestRun_NormalTermination covers the single-tool-call scenario (S1): an
// assistant step with a tool call, a tool step, a final content-only
// assistant step, normal termination.
func TestRun_NormalTermination(t *testing.T) {
	exec, mem, ec := newFixture(t, &twoTurnClient{}, 10, false)
	conv := step.NewConversation([]modelclient.Message{{Role: modelclient.RoleUser, Content: "please echo 'hi'"}})

	out, err := exec.Run(context.Background(), Request{SessionID: "sess-1", Conversation: conv}, ec)
	require.NoError(t, err)
	assert.Equal(t, "normal", out.TerminationReason)
	assert.Equal(t, "Done: Echo: hi", out.Response)

	steps, err := mem.GetSteps(context.Background(), "sess-1", store.StepFilter{})
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, modelclient.RoleAssistant, steps[0].Role)
	assert.Equal(t, modelclient.RoleTool, steps[1].Role)
	assert.Equal(t, "Echo: hi", steps[1].Content)
	assert.Equal(t, modelclient.RoleAssistant, steps[2].Role)
}

// TestRun_MaxStepsSummary covers P7: a model that always emits tool calls
// hits the step cap and, with summaries enabled, produces a response from
// a tools-disabled call.
func TestRun_MaxStepsSummary(t *testing.T) {
	client := &alwaysToolCallClient{}
	exec, _, ec := newFixture(t, client, 2, true)
	conv := step.NewConversation([]modelclient.Message{{Role: modelclient.RoleUser, Content: "loop forever"}})

	out, err := exec.Run(context.Background(), Request{SessionID: "sess-1", Conversation: conv}, ec)
	require.NoError(t, err)
	assert.Equal(t, "max_steps", out.TerminationReason)
	assert.Equal(t, "final summary", out.Response)
}

// TestRun_CancelledWithoutSummarySurfacesError covers the other half of P8:
// no summary enabled means cancellation surfaces as an error.
func TestRun_CancelledWithoutSummarySurfacesError(t *testing.T) {
	exec, _, ec := newFixture(t, oneShotClient{}, 10, false)
	ec.Abort.Abort("cancelled")
	conv := step.NewConversation([]modelclient.Message{{Role: modelclient.RoleUser, Content: "hi"}})

	_, err := exec.Run(context.Background(), Request{SessionID: "sess-1", Conversation: conv}, ec)
	require.Error(t, err)
}

// TestRun_CancelledWithSummaryProducesResponse covers P8's positive case.
func TestRun_CancelledWithSummaryProducesResponse(t *testing.T) {
	exec, _, ec := newFixture(t, oneShotClient{}, 10, true)
	ec.Abort.Abort("timeout")
	conv := step.NewConversation([]modelclient.Message{{Role: modelclient.RoleUser, Content: "hi"}})

	out, err := exec.Run(context.Background(), Request{SessionID: "sess-1", Conversation: conv}, ec)
	require.NoError(t, err)
	assert.Equal(t, "timeout", out.TerminationReason)
	assert.Equal(t, "hello world", out.Response)
}

// twoTurnClient drives the S1 scenario: first turn emits a tool call,
// second turn emits plain content referencing the tool's result.
type twoTurnClient struct {
	turn int
}

func (c *twoTurnClient) Name() string  { return "fake" }
func (c *twoTurnClient) Model() string { return "fake-model" }

func (c *twoTurnClient) Stream(_ context.Context, _ modelclient.StreamRequest) (<-chan modelclient.Chunk, <-chan error, error) {
	c.turn++
	ch := make(chan modelclient.Chunk, 2)
	errCh := make(chan error, 1)
	if c.turn == 1 {
		ch <- modelclient.Chunk{ToolCalls: []modelclient.ToolCallFragment{{
			Index:    0,
			ID:       strPtr("call-1"),
			Function: modelclient.ToolCallFunctionFragment{Name: strPtr("echo"), Arguments: strPtr(`{"text":"hi"}`)},
		}}}
	} else {
		ch <- modelclient.Chunk{Content: "Done: Echo: hi"}
	}
	close(ch)
	close(errCh)
	return ch, errCh, nil
}
