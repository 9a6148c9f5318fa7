package resume

import (
	"context"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// Fork copies every Step with sequence <= upToSeq from sourceSessionID into
// newSessionID, preserving sequence numbers, so the new session can be
// continued independently (spec §4.M "Fork"). It is implemented purely
// against store.SessionStore so it works the same way whether the
// backing store is the in-memory test fake or a production database.
func Fork(ctx context.Context, sessionStore store.SessionStore, sourceSessionID, newSessionID string, upToSeq int) error {
	end := upToSeq
	steps, err := sessionStore.GetSteps(ctx, sourceSessionID, store.StepFilter{EndSeq: &end})
	if err != nil {
		return err
	}

	forked := make([]*step.Step, len(steps))
	for i, s := range steps {
		copied := *s
		copied.ID = uuid.NewString()
		copied.SessionID = newSessionID
		forked[i] = &copied
	}
	return sessionStore.SaveStepsBatch(ctx, forked)
}
