// Package steprepo implements the buffering persistence facade over a
// SessionStore (spec §4.D), plus the checkpoint policy that generalises its
// flush threshold.
package steprepo

import (
	"context"
	"sync"

	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// Repository is a thin buffering facade: Save writes through immediately;
// Queue appends to an in-memory batch that Flush persists in one batch
// call when the store supports it. A Step is durable — per spec §9's
// resolved open question — iff its STEP_COMPLETED has been emitted on the
// Wire, and callers must flush before emitting; Repository itself does not
// emit, it only guarantees the buffer reaches the store.
type Repository struct {
	store  store.SessionStore
	policy Policy

	mu     sync.Mutex
	buffer []*step.Step
}

// New constructs a Repository with the given flush policy.
func New(sessionStore store.SessionStore, policy Policy) *Repository {
	return &Repository{store: sessionStore, policy: policy}
}

// Save writes a single Step through to the store immediately.
func (r *Repository) Save(ctx context.Context, s *step.Step) error {
	return r.store.SaveStep(ctx, s)
}

// Queue appends s to the in-memory batch, flushing immediately if the
// policy so decides for the given flush context.
func (r *Repository) Queue(ctx context.Context, s *step.Step, fc FlushContext) error {
	r.mu.Lock()
	r.buffer = append(r.buffer, s)
	fc.BufferSize = len(r.buffer)
	shouldFlush := r.policy.ShouldFlush(fc)
	r.mu.Unlock()

	if shouldFlush {
		return r.Flush(ctx)
	}
	return nil
}

// Flush persists the buffered batch via SaveStepsBatch and clears it.
func (r *Repository) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return r.store.SaveStepsBatch(ctx, batch)
}

// Discard clears the buffer without persisting — used by the scope guard
// on an exceptional exit.
func (r *Repository) Discard() {
	r.mu.Lock()
	r.buffer = nil
	r.mu.Unlock()
}

// Scope runs fn with a fresh sub-buffer semantics: on success it flushes,
// on error it discards, mirroring the scope-guard behaviour spec §4.D
// describes and the SafeTx commit/rollback idiom this is grounded on.
func (r *Repository) Scope(ctx context.Context, fn func() error) error {
	if err := fn(); err != nil {
		r.Discard()
		return err
	}
	return r.Flush(ctx)
}
