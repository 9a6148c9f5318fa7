// Package step defines the atomic, persisted unit of conversation state
// (spec §3) and the pure projection between a Step and the provider-neutral
// message shape consumed by modelclient.
package step

import (
	"time"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
)

// RunnableType distinguishes an Agent from a Workflow; both satisfy the
// Runnable contract.
type RunnableType string

const (
	RunnableTypeAgent    RunnableType = "agent"
	RunnableTypeWorkflow RunnableType = "workflow"
)

// Metrics carries the per-Step performance data the trace collector and
// observability layer read back out.
type Metrics struct {
	DurationMS        int64  `json:"duration_ms,omitempty"`
	FirstTokenMS      int64  `json:"first_token_ms,omitempty"`
	InputTokens       int    `json:"input_tokens,omitempty"`
	OutputTokens      int    `json:"output_tokens,omitempty"`
	TotalTokens       int    `json:"total_tokens,omitempty"`
	CachedTokens      int    `json:"cached_tokens,omitempty"`
	ToolExecTimeMS    int64  `json:"tool_exec_time_ms,omitempty"`
	Model             string `json:"model,omitempty"`
	Provider          string `json:"provider,omitempty"`
}

// Step is the atomic, persisted unit: a Step *is* an LLM message plus
// identity, runnable/workflow binding, and tracing metadata. See spec §3.
type Step struct {
	ID       string `json:"id"`
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
	Sequence  int    `json:"sequence"`

	Role             modelclient.Role           `json:"role"`
	Content          string                     `json:"content,omitempty"`
	ReasoningContent *string                    `json:"reasoning_content,omitempty"`
	ToolCalls        []modelclient.ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID       string                     `json:"tool_call_id,omitempty"`
	Name             string                     `json:"name,omitempty"`

	RunnableID   string       `json:"runnable_id"`
	RunnableType RunnableType `json:"runnable_type"`

	WorkflowID string `json:"workflow_id,omitempty"`
	NodeID     string `json:"node_id,omitempty"`
	BranchKey  string `json:"branch_key,omitempty"`
	Iteration  int    `json:"iteration,omitempty"`
	ParentRunID string `json:"parent_run_id,omitempty"`

	ParentSpanID string `json:"parent_span_id,omitempty"`
	Depth        int    `json:"depth"`

	Metrics   Metrics   `json:"metrics"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
	RunStatusPaused    RunStatus = "PAUSED"
)

// RunMetrics is the aggregate performance summary stored on a completed Run.
type RunMetrics struct {
	DurationMS   int64 `json:"duration_ms"`
	StepCount    int   `json:"step_count"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
}

// Run is the aggregate status of one top-level invocation of a Runnable.
type Run struct {
	ID           string       `json:"id"`
	RunnableID   string       `json:"runnable_id"`
	RunnableType RunnableType `json:"runnable_type"`
	SessionID    string       `json:"session_id"`
	InputQuery   string       `json:"input_query"`
	Status       RunStatus    `json:"status"`
	Metrics      RunMetrics   `json:"metrics"`
	WorkflowID   string       `json:"workflow_id,omitempty"`
	ParentRunID  string       `json:"parent_run_id,omitempty"`
	Error        string       `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
