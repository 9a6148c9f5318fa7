package resume

import (
	"context"

	"github.com/runloom/orchestra/internal/runtime/agentexec"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// RetryAgent deletes every Step with sequence >= fromSeq and then resumes
// from the truncated log as Agent would (spec §4.M "Retry from sequence
// N"): the new last Step after deletion decides the outcome exactly as in
// a normal Resume.
func RetryAgent(ctx context.Context, sessionStore store.SessionStore, exec *agentexec.Executor, sessionID, runnableID string, fromSeq int, ec *execctx.Context) (runnable.RunOutput, error) {
	if err := sessionStore.DeleteSteps(ctx, sessionID, fromSeq); err != nil {
		return runnable.RunOutput{}, err
	}
	return Agent(ctx, sessionStore, exec, sessionID, runnableID, ec)
}
