package agents

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/step"
)

// AgentFlowType mirrors step.RunnableType's Agent/Workflow split at the
// catalog level, plus the workflow engine shape (spec §4.J) a Workflow
// definition picks one of.
type AgentFlowType string

const (
	FlowTypeSingle     AgentFlowType = "single"     // a plain Agent (LLM + tool loop)
	FlowTypeSequential AgentFlowType = "sequential" // PipelineWorkflow
	FlowTypeLoop       AgentFlowType = "loop"       // LoopWorkflow
	FlowTypeParallel   AgentFlowType = "parallel"   // ParallelWorkflow
)

// ModelConfig holds model configuration for an agent definition.
type ModelConfig struct {
	Name        string   `json:"name,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// AgentDefinition stores the catalog entry a Runnable (Agent or Workflow) is
// built from: its model/tool configuration and, for workflows, the node
// graph consumed by internal/runtime/workflow. This replaces the teacher's
// two-table Agent/AgentDefinition split (product-manifest config vs.
// scheduled-job bookkeeping) since SPEC_FULL.md's Runnable catalog has no
// separate scheduled-polling concept outside domain/scheduler.
// Table: kb.agent_definitions
type AgentDefinition struct {
	bun.BaseModel `bun:"table:kb.agent_definitions,alias:ad"`

	ID           string            `bun:"id,pk" json:"id"`
	ProjectID    string            `bun:"project_id,type:uuid,notnull" json:"projectId"`
	Name         string            `bun:"name,notnull" json:"name"`
	Description  *string           `bun:"description" json:"description,omitempty"`
	SystemPrompt *string           `bun:"system_prompt" json:"systemPrompt,omitempty"`
	Model        *ModelConfig      `bun:"model,type:jsonb,default:'{}'" json:"model,omitempty"`
	Tools        []string          `bun:"tools,array" json:"tools"`
	FlowType     AgentFlowType     `bun:"flow_type,notnull,default:'single'" json:"flowType"`
	MaxSteps     *int              `bun:"max_steps" json:"maxSteps,omitempty"`
	NodeConfig   map[string]any    `bun:"node_config,type:jsonb,default:'{}'" json:"nodeConfig,omitempty"`
	Config       map[string]any    `bun:"config,type:jsonb,default:'{}'" json:"config,omitempty"`
	CreatedAt    time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// runEntity is the bun projection of step.Run (Table: kb.runs).
type runEntity struct {
	bun.BaseModel `bun:"table:kb.runs,alias:r"`

	ID           string          `bun:"id,pk" json:"id"`
	RunnableID   string          `bun:"runnable_id,notnull" json:"runnableId"`
	RunnableType step.RunnableType `bun:"runnable_type,notnull" json:"runnableType"`
	SessionID    string          `bun:"session_id,notnull" json:"sessionId"`
	InputQuery   string          `bun:"input_query" json:"inputQuery"`
	Status       step.RunStatus  `bun:"status,notnull" json:"status"`
	Metrics      step.RunMetrics `bun:"metrics,type:jsonb,default:'{}'" json:"metrics"`
	WorkflowID   string          `bun:"workflow_id" json:"workflowId,omitempty"`
	ParentRunID  string          `bun:"parent_run_id" json:"parentRunId,omitempty"`
	Error        string          `bun:"error" json:"error,omitempty"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	CompletedAt  *time.Time      `bun:"completed_at" json:"completedAt,omitempty"`
}

func fromRun(r *step.Run) *runEntity {
	return &runEntity{
		ID: r.ID, RunnableID: r.RunnableID, RunnableType: r.RunnableType,
		SessionID: r.SessionID, InputQuery: r.InputQuery, Status: r.Status,
		Metrics: r.Metrics, WorkflowID: r.WorkflowID, ParentRunID: r.ParentRunID,
		Error: r.Error, CreatedAt: r.CreatedAt, CompletedAt: r.CompletedAt,
	}
}

func (e *runEntity) toRun() *step.Run {
	return &step.Run{
		ID: e.ID, RunnableID: e.RunnableID, RunnableType: e.RunnableType,
		SessionID: e.SessionID, InputQuery: e.InputQuery, Status: e.Status,
		Metrics: e.Metrics, WorkflowID: e.WorkflowID, ParentRunID: e.ParentRunID,
		Error: e.Error, CreatedAt: e.CreatedAt, CompletedAt: e.CompletedAt,
	}
}

// stepEntity is the bun projection of step.Step (Table: kb.steps),
// collapsing the teacher's separate AgentRunMessage/AgentRunToolCall tables
// into the single unified Step the runtime core persists (spec §3 — a
// tool-call step IS an assistant Step, a tool-result step IS a Step with
// Role=tool; there is no separate join-table concept to keep).
type stepEntity struct {
	bun.BaseModel `bun:"table:kb.steps,alias:s"`

	ID        string `bun:"id,pk" json:"id"`
	SessionID string `bun:"session_id,notnull" json:"sessionId"`
	RunID     string `bun:"run_id,notnull" json:"runId"`
	Sequence  int    `bun:"sequence,notnull" json:"sequence"`

	Role             modelclient.Role       `bun:"role,notnull" json:"role"`
	Content          string                 `bun:"content" json:"content,omitempty"`
	ReasoningContent *string                `bun:"reasoning_content" json:"reasoningContent,omitempty"`
	ToolCalls        []modelclient.ToolCall `bun:"tool_calls,type:jsonb" json:"toolCalls,omitempty"`
	ToolCallID       string                 `bun:"tool_call_id" json:"toolCallId,omitempty"`
	Name             string                 `bun:"name" json:"name,omitempty"`

	RunnableID   string            `bun:"runnable_id,notnull" json:"runnableId"`
	RunnableType step.RunnableType `bun:"runnable_type,notnull" json:"runnableType"`

	WorkflowID  string `bun:"workflow_id" json:"workflowId,omitempty"`
	NodeID      string `bun:"node_id" json:"nodeId,omitempty"`
	BranchKey   string `bun:"branch_key" json:"branchKey,omitempty"`
	Iteration   int    `bun:"iteration" json:"iteration,omitempty"`
	ParentRunID string `bun:"parent_run_id" json:"parentRunId,omitempty"`

	ParentSpanID string `bun:"parent_span_id" json:"parentSpanId,omitempty"`
	Depth        int    `bun:"depth" json:"depth"`

	Metrics   step.Metrics `bun:"metrics,type:jsonb,default:'{}'" json:"metrics"`
	CreatedAt time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

func fromStep(s *step.Step) *stepEntity {
	return &stepEntity{
		ID: s.ID, SessionID: s.SessionID, RunID: s.RunID, Sequence: s.Sequence,
		Role: s.Role, Content: s.Content, ReasoningContent: s.ReasoningContent,
		ToolCalls: s.ToolCalls, ToolCallID: s.ToolCallID, Name: s.Name,
		RunnableID: s.RunnableID, RunnableType: s.RunnableType,
		WorkflowID: s.WorkflowID, NodeID: s.NodeID, BranchKey: s.BranchKey,
		Iteration: s.Iteration, ParentRunID: s.ParentRunID,
		ParentSpanID: s.ParentSpanID, Depth: s.Depth,
		Metrics: s.Metrics, CreatedAt: s.CreatedAt,
	}
}

func (e *stepEntity) toStep() *step.Step {
	return &step.Step{
		ID: e.ID, SessionID: e.SessionID, RunID: e.RunID, Sequence: e.Sequence,
		Role: e.Role, Content: e.Content, ReasoningContent: e.ReasoningContent,
		ToolCalls: e.ToolCalls, ToolCallID: e.ToolCallID, Name: e.Name,
		RunnableID: e.RunnableID, RunnableType: e.RunnableType,
		WorkflowID: e.WorkflowID, NodeID: e.NodeID, BranchKey: e.BranchKey,
		Iteration: e.Iteration, ParentRunID: e.ParentRunID,
		ParentSpanID: e.ParentSpanID, Depth: e.Depth,
		Metrics: e.Metrics, CreatedAt: e.CreatedAt,
	}
}
