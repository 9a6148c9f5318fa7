// Package runnabletool adapts a Runnable into a toolexec.Tool, the
// mechanism that lets an agent's tool registry include other agents or
// whole workflows as callable capabilities (spec §4.K). The resulting
// nested run shares the parent's Wire and emits its own RUN_STARTED/
// RUN_COMPLETED events into it (spec P4 "nested composition").
package runnabletool

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/toolexec"
	"github.com/runloom/orchestra/pkg/apperror"
)

// DefaultMaxDepth bounds RunnableTool nesting when Deps.MaxDepth is unset.
const DefaultMaxDepth = 8

// Deps bundles what a RunnableTool needs to invoke its wrapped Runnable
// through the standard Run lifecycle.
type Deps struct {
	Target   runnable.Runnable
	Executor *runnable.Executor
	MaxDepth int
}

// New builds the toolexec.Tool wrapping deps.Target. The tool takes a
// single "input" string argument and returns the nested run's response as
// its content.
func New(deps Deps) toolexec.Tool {
	if deps.MaxDepth <= 0 {
		deps.MaxDepth = DefaultMaxDepth
	}
	name := fmt.Sprintf("invoke_%s", deps.Target.ID())
	return toolexec.Tool{
		Name:        name,
		Description: fmt.Sprintf("Invoke %q as a nested run and return its response.", deps.Target.ID()),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{
					"type":        "string",
					"description": "Input passed to the nested run.",
				},
			},
			"required": []string{"input"},
		},
		Execute: func(args map[string]any, ec *execctx.Context, abort *execctx.AbortSignal) (string, any, error) {
			input, _ := args["input"].(string)
			child, err := guard(ec, deps.Target, deps.MaxDepth)
			if err != nil {
				return "", nil, err
			}
			out, err := deps.Executor.Execute(context.Background(), deps.Target, input, child)
			if err != nil {
				return "", nil, err
			}
			return out.Response, out, nil
		},
	}
}

// guard applies the cycle and depth guards (spec §4.K steps 1-3) and
// returns the derived child context the nested run executes under.
func guard(ec *execctx.Context, target runnable.Runnable, maxDepth int) (*execctx.Context, error) {
	targetID := target.ID()
	if ec.RunnableID == targetID {
		return nil, apperror.NewCircularReference(targetID)
	}
	for _, ancestor := range ec.ParentChain() {
		if ancestor == targetID {
			return nil, apperror.NewCircularReference(targetID)
		}
	}
	if ec.Depth >= maxDepth {
		return nil, apperror.NewMaxDepthExceeded(ec.Depth, maxDepth)
	}

	return ec.Child(uuid.NewString(), execctx.ChildParams{
		RunnableType: target.RunnableType(),
		RunnableID:   targetID,
		NestingType:  execctx.NestingToolCall,
	}), nil
}
