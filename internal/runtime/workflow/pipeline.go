package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/eventfactory"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// PipelineWorkflow executes Nodes in declared order, skipping nodes whose
// condition is false and reusing a node's already-persisted terminal
// output instead of re-invoking its Runnable (spec §4.J.1, P5).
type PipelineWorkflow struct {
	id       string
	nodes    []Node
	store    store.SessionStore
	executor *runnable.Executor
}

// NewPipelineWorkflow constructs a PipelineWorkflow.
func NewPipelineWorkflow(id string, nodes []Node, sessionStore store.SessionStore, executor *runnable.Executor) *PipelineWorkflow {
	return &PipelineWorkflow{id: id, nodes: nodes, store: sessionStore, executor: executor}
}

func (w *PipelineWorkflow) ID() string                      { return w.id }
func (w *PipelineWorkflow) RunnableType() step.RunnableType { return step.RunnableTypeWorkflow }

// Run executes every node in order, rendering InputTemplate against
// {input, nodes.*.output}, and returns the last executed node's response.
func (w *PipelineWorkflow) Run(ctx context.Context, input string, ec *execctx.Context) (runnable.RunOutput, error) {
	f := eventfactory.New(ec)
	nodesOut := map[string]any{}
	vars := map[string]any{"input": input, "nodes": nodesOut}

	var lastResponse string
	for _, node := range w.nodes {
		existing, err := w.store.GetSteps(ctx, ec.SessionID, store.StepFilter{WorkflowID: ec.WorkflowID, NodeID: node.ID})
		if err != nil {
			return runnable.RunOutput{}, err
		}
		if cached, ok := terminalOutput(existing); ok {
			nodesOut[node.ID] = map[string]any{"output": cached}
			lastResponse = cached
			continue
		}

		if node.Condition != nil && !node.Condition.Evaluate(vars) {
			ec.Wire.Write(f.StageSkipped(node.ID, "condition evaluated false"))
			continue
		}

		ec.Wire.Write(f.StageStarted(node.ID))
		rendered, err := node.InputTemplate.Render(vars)
		if err != nil {
			return runnable.RunOutput{}, err
		}

		childCtx := ec.Child(uuid.NewString(), execctx.ChildParams{
			RunnableType: node.Runnable.RunnableType(),
			RunnableID:   node.Runnable.ID(),
			NestingType:  execctx.NestingWorkflowNode,
			NodeID:       node.ID,
		})
		out, err := w.executor.Execute(ctx, node.Runnable, rendered, childCtx)
		if err != nil {
			return runnable.RunOutput{}, err
		}

		nodesOut[node.ID] = map[string]any{"output": out.Response}
		lastResponse = out.Response
		ec.Wire.Write(f.StageCompleted(node.ID))
	}

	return runnable.RunOutput{Response: lastResponse, TerminationReason: "normal", WorkflowID: ec.WorkflowID}, nil
}
