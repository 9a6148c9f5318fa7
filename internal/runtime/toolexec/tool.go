// Package toolexec implements batched, parallel tool invocation with a
// per-session memoisation cache, abort/timeout propagation, and lenient
// argument parsing (spec §4.G).
package toolexec

import (
	"time"

	"github.com/runloom/orchestra/internal/runtime/execctx"
)

// ExecuteFunc is the concrete capability behind a Tool. Implementations
// must never panic to signal failure — return an error instead — but
// Executor recovers panics defensively anyway, per the "tool exceptions
// become unsuccessful ToolResult" error policy.
type ExecuteFunc func(args map[string]any, ctx *execctx.Context, abort *execctx.AbortSignal) (content string, output any, err error)

// Tool is the named, schema-described, invocable capability the model may
// call (spec §6 "Tool interface").
type Tool struct {
	Name            string
	Description     string
	Schema          map[string]any
	Cacheable       bool
	ConcurrencySafe bool
	Timeout         time.Duration
	Execute         ExecuteFunc
}
