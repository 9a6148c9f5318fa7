// Package store defines the narrow persistence contract the runtime core
// depends on (spec §6). Production implementations live in domain/agents;
// runtimetest provides an in-memory implementation for tests.
package store

import (
	"context"

	"github.com/runloom/orchestra/internal/runtime/step"
)

// StepFilter narrows GetSteps to a subset of a session's Steps.
type StepFilter struct {
	RunID      string
	RunnableID string
	WorkflowID string
	NodeID     string
	StartSeq   *int
	EndSeq     *int
	Limit      int
}

// RunListFilter narrows ListRuns.
type RunListFilter struct {
	UserID string
	Limit  int
	Offset int
}

// SessionStore is the narrow persistence contract for Steps and Runs (spec
// §6). AllocateSequence must be atomic across concurrent callers for the
// same sessionID — it is the one strongly-shared mutable resource in the
// whole system (spec §5).
type SessionStore interface {
	SaveStep(ctx context.Context, s *step.Step) error
	SaveStepsBatch(ctx context.Context, steps []*step.Step) error
	GetSteps(ctx context.Context, sessionID string, filter StepFilter) ([]*step.Step, error)
	GetLastStep(ctx context.Context, sessionID string) (*step.Step, error)
	DeleteSteps(ctx context.Context, sessionID string, startSeq int) error
	AllocateSequence(ctx context.Context, sessionID string) (int, error)

	SaveRun(ctx context.Context, r *step.Run) error
	GetRun(ctx context.Context, runID string) (*step.Run, error)
	ListRuns(ctx context.Context, filter RunListFilter) ([]*step.Run, error)
}
