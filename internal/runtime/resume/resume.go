// Package resume formalises Resume, Retry, and Fork over the Step log
// (spec §4.M). All three analyse or rewind persisted Steps and then
// re-dispatch through the normal execution path rather than reimplementing
// any part of the loop.
package resume

import (
	"context"
	"fmt"

	"github.com/runloom/orchestra/internal/runtime/agentexec"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// Outcome is what analysing the last persisted Step of a session tells the
// caller about how to continue (spec §4.M "Resume").
type Outcome struct {
	// AlreadyComplete is true when the last Step is an assistant message
	// with no tool calls: the session has nothing left to do.
	AlreadyComplete bool
	Response        string

	// PendingToolCalls carries an assistant Step's unexecuted tool_calls,
	// to be run before the next LLM call (spec "pending_tool_calls").
	PendingToolCalls []modelclient.ToolCall

	// Conversation is every prior Step projected to LLM messages, ready to
	// hand to AgentExecutor or a Workflow's input reconstruction.
	Conversation *step.Conversation

	// RunnableID is the last Step's runnable_id, used when the caller
	// omitted one explicitly.
	RunnableID string
}

// Analyze inspects an ordered Step log and classifies how to resume it.
// steps must be ordered by sequence ascending; an empty log is not
// resumable (ok is false).
func Analyze(steps []*step.Step) (Outcome, bool) {
	if len(steps) == 0 {
		return Outcome{}, false
	}
	last := steps[len(steps)-1]
	conv := step.NewConversation(step.ToMessages(steps))

	out := Outcome{Conversation: conv, RunnableID: last.RunnableID}
	if last.Role == modelclient.RoleAssistant {
		if len(last.ToolCalls) == 0 {
			out.AlreadyComplete = true
			out.Response = last.Content
		} else {
			out.PendingToolCalls = last.ToolCalls
		}
	}
	// A user or tool Step needs nothing special: the loop continues from
	// the reconstructed conversation with no pending tool calls.
	return out, true
}

// Agent resumes a session driven by an AgentExecutor. sessionStore is
// queried for the session's full Step log (optionally narrowed to
// runnableID, when the caller already knows it); the last Step then
// decides whether the session is already complete, has pending tool
// calls, or simply continues.
func Agent(ctx context.Context, sessionStore store.SessionStore, exec *agentexec.Executor, sessionID, runnableID string, ec *execctx.Context) (runnable.RunOutput, error) {
	filter := store.StepFilter{}
	if runnableID != "" {
		filter.RunnableID = runnableID
	}
	steps, err := sessionStore.GetSteps(ctx, sessionID, filter)
	if err != nil {
		return runnable.RunOutput{}, err
	}
	outcome, ok := Analyze(steps)
	if !ok {
		return runnable.RunOutput{}, fmt.Errorf("resume: session %q has no steps to resume from", sessionID)
	}
	if outcome.AlreadyComplete {
		return runnable.RunOutput{
			Response: outcome.Response, RunID: ec.RunID, SessionID: sessionID,
			TerminationReason: "normal",
		}, nil
	}

	return exec.Run(ctx, agentexec.Request{
		SessionID:        sessionID,
		Conversation:     outcome.Conversation,
		PendingToolCalls: outcome.PendingToolCalls,
	}, ec)
}

// Workflow resumes a session driven by a Workflow Runnable. Unlike Agent,
// it re-dispatches through the plain RunnableExecutor: re-running a
// Workflow from the same input is safe because Pipeline idempotency
// (spec §4.J.1) skips any node whose terminal Step already exists, so
// already-completed nodes are never re-invoked.
func Workflow(ctx context.Context, wfExec *runnable.Executor, wf runnable.Runnable, input string, ec *execctx.Context) (runnable.RunOutput, error) {
	return wfExec.Execute(ctx, wf, input, ec)
}
