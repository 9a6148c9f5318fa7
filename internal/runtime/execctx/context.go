package execctx

import (
	"time"

	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/wire"
)

// NestingType says why a child context was derived.
type NestingType string

const (
	NestingNone         NestingType = "none"
	NestingToolCall     NestingType = "tool_call"
	NestingWorkflowNode NestingType = "workflow_node"
)

// Context is the immutable bundle of identity, wire reference, and tracing
// info threaded through all calls (spec §3 "ExecutionContext"). Fields are
// never mutated after construction — derivations go through Child, which
// returns a new value.
type Context struct {
	RunID        string
	SessionID    string
	Wire         *wire.Wire
	UserID       string
	WorkflowID   string
	Depth        int
	ParentRunID  string
	RunnableType step.RunnableType
	RunnableID   string
	NestingType  NestingType
	NodeID       string
	Iteration    int
	TraceID      string
	SpanID       string
	ParentSpanID string
	TimeoutAt    *time.Time
	Metadata     map[string]any

	Abort *AbortSignal

	// parentChain records the runnable ids of every ancestor context in
	// this run's nesting path, used by RunnableTool's cycle guard (spec
	// §4.K, §9 "Cyclic nesting via tools").
	parentChain []string
}

// ChildParams overrides fields on the derived context; zero values mean
// "inherit from parent" except where noted.
type ChildParams struct {
	RunnableType step.RunnableType
	RunnableID   string
	NestingType  NestingType
	NodeID       string
	Iteration    int
	SpanID       string
	Metadata     map[string]any
}

// Child constructs a derived context with depth+1, a fresh run_id (supplied
// by the caller, since id generation is an injected concern), parent_run_id
// set to self's run_id, the same wire, and inherited timeout_at/trace_id
// (spec §3 "Ownership").
func (c *Context) Child(newRunID string, p ChildParams) *Context {
	chain := make([]string, len(c.parentChain)+1)
	copy(chain, c.parentChain)
	chain[len(chain)-1] = c.RunnableID

	md := make(map[string]any, len(p.Metadata))
	for k, v := range p.Metadata {
		md[k] = v
	}

	return &Context{
		RunID:        newRunID,
		SessionID:    c.SessionID,
		Wire:         c.Wire,
		UserID:       c.UserID,
		WorkflowID:   c.WorkflowID,
		Depth:        c.Depth + 1,
		ParentRunID:  c.RunID,
		RunnableType: p.RunnableType,
		RunnableID:   p.RunnableID,
		NestingType:  p.NestingType,
		NodeID:       p.NodeID,
		Iteration:    p.Iteration,
		TraceID:      c.TraceID,
		SpanID:       p.SpanID,
		ParentSpanID: c.SpanID,
		TimeoutAt:    c.TimeoutAt,
		Metadata:     md,
		Abort:        c.Abort,
		parentChain:  chain,
	}
}

// ParentChain returns the runnable ids of every ancestor of this context,
// outermost first, not including this context's own RunnableID.
func (c *Context) ParentChain() []string {
	out := make([]string, len(c.parentChain))
	copy(out, c.parentChain)
	return out
}

// EffectiveTimeout returns the minimum of localLimit and the time
// remaining until TimeoutAt, per spec §4.N. A zero/negative localLimit
// means "no local limit" and only TimeoutAt constrains the result; if
// neither is set, ok is false.
func (c *Context) EffectiveTimeout(localLimit time.Duration, now time.Time) (d time.Duration, ok bool) {
	have := false
	if localLimit > 0 {
		d = localLimit
		have = true
	}
	if c.TimeoutAt != nil {
		remaining := c.TimeoutAt.Sub(now)
		if !have || remaining < d {
			d = remaining
			have = true
		}
	}
	return d, have
}
