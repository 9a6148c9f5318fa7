// Package runnable defines the stable Runnable contract (spec §6) and
// RunnableExecutor, which wraps any Runnable with Run lifecycle and
// persistence (spec §4.I) without inspecting its internals — the property
// that makes Agents and Workflows truly interchangeable.
package runnable

import (
	"context"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/step"
)

// RunOutput is what every Runnable.Run returns (spec §6).
type RunOutput struct {
	Response          string
	RunID             string
	SessionID         string
	Metrics           *step.RunMetrics
	TerminationReason string
	Error             string
	WorkflowID        string
}

// Runnable is the uniform contract implemented by Agents and Workflows.
type Runnable interface {
	ID() string
	RunnableType() step.RunnableType
	Run(ctx context.Context, input string, ec *execctx.Context) (RunOutput, error)
}
