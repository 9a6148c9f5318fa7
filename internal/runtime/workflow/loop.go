package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/eventfactory"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/step"
)

// LoopWorkflow repeats its Node list, snapshotting each iteration's
// outputs into loop.last/loop.history and incrementing loop.iteration,
// until Condition evaluates false or MaxIterations is reached (spec
// §4.J.2, S4).
type LoopWorkflow struct {
	id            string
	nodes         []Node
	condition     *Condition
	maxIterations int
	executor      *runnable.Executor
}

// NewLoopWorkflow constructs a LoopWorkflow. A nil condition loops until
// MaxIterations unconditionally.
func NewLoopWorkflow(id string, nodes []Node, condition *Condition, maxIterations int, executor *runnable.Executor) *LoopWorkflow {
	if maxIterations <= 0 {
		maxIterations = 1
	}
	return &LoopWorkflow{id: id, nodes: nodes, condition: condition, maxIterations: maxIterations, executor: executor}
}

func (w *LoopWorkflow) ID() string                      { return w.id }
func (w *LoopWorkflow) RunnableType() step.RunnableType { return step.RunnableTypeWorkflow }

func (w *LoopWorkflow) Run(ctx context.Context, input string, ec *execctx.Context) (runnable.RunOutput, error) {
	f := eventfactory.New(ec)

	history := []any{}
	last := map[string]any{}
	var lastResponse string

	iterationsDone := 0
	for iterationsDone < w.maxIterations {
		iteration := iterationsDone
		ec.Wire.Write(f.IterationStarted(iteration))

		nodesOut := map[string]any{}
		vars := map[string]any{
			"input": input,
			"nodes": nodesOut,
			"loop":  map[string]any{"iteration": iteration, "last": last, "history": history},
		}

		for _, node := range w.nodes {
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
				Iteration:    iteration,
			})
			out, err := w.executor.Execute(ctx, node.Runnable, rendered, childCtx)
			if err != nil {
				return runnable.RunOutput{}, err
			}

			nodesOut[node.ID] = map[string]any{"output": out.Response}
			lastResponse = out.Response
			ec.Wire.Write(f.StageCompleted(node.ID))
		}

		last = nodesOut
		history = append(history, nodesOut)
		iterationsDone++

		if w.condition != nil {
			evalVars := map[string]any{
				"input": input,
				"nodes": nodesOut,
				"loop":  map[string]any{"iteration": iterationsDone, "last": last, "history": history},
			}
			if !w.condition.Evaluate(evalVars) {
				break
			}
		}
	}

	return runnable.RunOutput{Response: lastResponse, TerminationReason: "normal", WorkflowID: ec.WorkflowID}, nil
}
