package execctx

import "sync"

// AbortSignal is a cooperative, single-shot cancellation flag (spec §4.N).
// Unlike context.Context cancellation, raising it does not itself stop any
// goroutine — every long-running path must check IsAborted before and
// after suspension points and react by unwinding to a Cancelled error,
// still giving a termination summary the chance to run (spec §9).
type AbortSignal struct {
	mu     sync.Mutex
	raised bool
	reason string
}

// NewAbortSignal returns a fresh, unraised signal.
func NewAbortSignal() *AbortSignal { return &AbortSignal{} }

// Abort raises the signal with reason, if not already raised. Subsequent
// calls are no-ops (single-shot).
func (a *AbortSignal) Abort(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.raised {
		return
	}
	a.raised = true
	a.reason = reason
}

// IsAborted reports whether Abort has been called.
func (a *AbortSignal) IsAborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raised
}

// Reason returns the reason passed to Abort, or "" if not raised.
func (a *AbortSignal) Reason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reason
}
