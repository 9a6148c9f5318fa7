// Package sequence implements the atomic per-session monotonic sequence
// allocator (spec §4.C).
package sequence

import (
	"context"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// seqStartKey is the metadata key ParallelWorkflow stamps on each branch's
// context during pre-allocation (spec §4.C.a, §4.J.3).
const seqStartKey = "seq_start"

// Manager allocates sequence numbers. It must be atomic across concurrent
// branches within one session; that atomicity is delegated to the
// SessionStore, except for the pre-allocation handshake which is resolved
// purely from context metadata.
type Manager struct {
	store store.SessionStore
}

// New constructs a Manager backed by store.
func New(sessionStore store.SessionStore) *Manager {
	return &Manager{store: sessionStore}
}

// Allocate returns the next sequence number for sessionID. If ctx carries a
// pre-allocated seq_start (stamped by ParallelWorkflow, spec §4.J.3), it is
// consumed and returned instead of calling the store — this is strictly a
// one-shot handshake: the metadata entry is removed after being read so a
// second call in the same context falls through to the normal atomic path,
// per the open question resolved in spec §9 ("the pre-allocation is used
// only to stamp the first Step of each branch").
func (m *Manager) Allocate(ctx context.Context, sessionID string, ec *execctx.Context) (int, error) {
	if ec != nil && ec.Metadata != nil {
		if v, ok := ec.Metadata[seqStartKey]; ok {
			delete(ec.Metadata, seqStartKey)
			if n, ok := v.(int); ok {
				return n, nil
			}
		}
	}
	return m.store.AllocateSequence(ctx, sessionID)
}

// StampSeqStart writes the pre-allocation handshake value into metadata,
// for use by ParallelWorkflow before launching a branch.
func StampSeqStart(metadata map[string]any, value int) {
	metadata[seqStartKey] = value
}
