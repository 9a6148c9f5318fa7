package agents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// BunSessionStore is the bun-backed store.SessionStore implementation
// (spec §6), adapted from the teacher's Repository — the Step/Run tables
// replace the teacher's AgentRunMessage/AgentRunToolCall/AgentRun split,
// and AllocateSequence is a per-session atomic upsert/increment the way
// internal/database.database.go's transaction helpers do counters.
type BunSessionStore struct {
	db bun.IDB
}

// NewBunSessionStore constructs a BunSessionStore. It satisfies
// store.SessionStore so it can be wired directly into agentexec/resume/etc.
func NewBunSessionStore(db bun.IDB) *BunSessionStore {
	return &BunSessionStore{db: db}
}

var _ store.SessionStore = (*BunSessionStore)(nil)

func (r *BunSessionStore) SaveStep(ctx context.Context, s *step.Step) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.NewInsert().Model(fromStep(s)).Exec(ctx)
	return err
}

func (r *BunSessionStore) SaveStepsBatch(ctx context.Context, steps []*step.Step) error {
	if len(steps) == 0 {
		return nil
	}
	entities := make([]*stepEntity, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		entities[i] = fromStep(s)
	}
	_, err := r.db.NewInsert().Model(&entities).Exec(ctx)
	return err
}

func (r *BunSessionStore) GetSteps(ctx context.Context, sessionID string, filter store.StepFilter) ([]*step.Step, error) {
	var entities []*stepEntity
	q := r.db.NewSelect().Model(&entities).
		Where("session_id = ?", sessionID).
		Order("sequence ASC")
	if filter.RunID != "" {
		q = q.Where("run_id = ?", filter.RunID)
	}
	if filter.RunnableID != "" {
		q = q.Where("runnable_id = ?", filter.RunnableID)
	}
	if filter.WorkflowID != "" {
		q = q.Where("workflow_id = ?", filter.WorkflowID)
	}
	if filter.NodeID != "" {
		q = q.Where("node_id = ?", filter.NodeID)
	}
	if filter.StartSeq != nil {
		q = q.Where("sequence >= ?", *filter.StartSeq)
	}
	if filter.EndSeq != nil {
		q = q.Where("sequence <= ?", *filter.EndSeq)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*step.Step, len(entities))
	for i, e := range entities {
		out[i] = e.toStep()
	}
	return out, nil
}

func (r *BunSessionStore) GetLastStep(ctx context.Context, sessionID string) (*step.Step, error) {
	var e stepEntity
	err := r.db.NewSelect().Model(&e).
		Where("session_id = ?", sessionID).
		Order("sequence DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e.toStep(), nil
}

func (r *BunSessionStore) DeleteSteps(ctx context.Context, sessionID string, startSeq int) error {
	_, err := r.db.NewDelete().
		Model((*stepEntity)(nil)).
		Where("session_id = ?", sessionID).
		Where("sequence >= ?", startSeq).
		Exec(ctx)
	return err
}

// AllocateSequence atomically increments and returns the per-session
// sequence counter via an upsert, so concurrent callers (e.g. a
// ParallelWorkflow's branches) never observe the same number twice.
func (r *BunSessionStore) AllocateSequence(ctx context.Context, sessionID string) (int, error) {
	var next int
	_, err := r.db.NewRaw(`
		INSERT INTO kb.session_sequences (session_id, counter)
		VALUES (?, 1)
		ON CONFLICT (session_id) DO UPDATE SET counter = kb.session_sequences.counter + 1
		RETURNING counter
	`, sessionID).Exec(ctx, &next)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence: %w", err)
	}
	return next, nil
}

func (r *BunSessionStore) SaveRun(ctx context.Context, run *step.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	e := fromRun(run)
	_, err := r.db.NewInsert().Model(e).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("metrics = EXCLUDED.metrics").
		Set("error = EXCLUDED.error").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	return err
}

func (r *BunSessionStore) GetRun(ctx context.Context, runID string) (*step.Run, error) {
	var e runEntity
	err := r.db.NewSelect().Model(&e).Where("id = ?", runID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, err
	}
	return e.toRun(), nil
}

func (r *BunSessionStore) ListRuns(ctx context.Context, filter store.RunListFilter) ([]*step.Run, error) {
	var entities []*runEntity
	q := r.db.NewSelect().Model(&entities).Order("created_at ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*step.Run, len(entities))
	for i, e := range entities {
		out[i] = e.toRun()
	}
	return out, nil
}
