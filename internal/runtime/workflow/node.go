// Package workflow implements the three workflow engines (spec §4.J):
// PipelineWorkflow (ordered, idempotent), LoopWorkflow (repeated with
// iteration snapshots), and ParallelWorkflow (concurrent branches with
// pre-allocated sequences), plus the condition-expression evaluator they
// share. Every engine satisfies runnable.Runnable, so a Workflow can be
// nested as a node inside another Workflow or wrapped by a RunnableTool
// exactly like an Agent.
package workflow

import (
	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/step"
)

// Node is pure configuration for one PipelineWorkflow/LoopWorkflow step
// (spec §4.J "WorkflowNode"). Dependencies between nodes are implicit in
// InputTemplate's references to nodes.*.output / loop.last.* — no
// separate dependency graph is tracked; nodes run in declared order.
type Node struct {
	ID            string
	Runnable      runnable.Runnable
	InputTemplate *Template
	Condition     *Condition
}

// Branch is one concurrent arm of a ParallelWorkflow (spec §4.J.3).
type Branch struct {
	ID            string
	Runnable      runnable.Runnable
	InputTemplate *Template
}

// terminalOutput returns the content of steps' last assistant Step with no
// outstanding tool calls, or "" if none exists — the cached-output check
// PipelineWorkflow uses for idempotency (spec §4.J.1, P5).
func terminalOutput(steps []*step.Step) (string, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.Role == modelclient.RoleAssistant && len(s.ToolCalls) == 0 {
			return s.Content, true
		}
	}
	return "", false
}
