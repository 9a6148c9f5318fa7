// Package wire implements the multi-producer, single-consumer event
// channel that carries fine-grained events from arbitrary depths of
// nesting to a single consumer (spec §4.A).
package wire

import "github.com/runloom/orchestra/internal/runtime/step"

// EventType enumerates every StepEvent variant (spec §3).
type EventType string

const (
	EventRunStarted       EventType = "RUN_STARTED"
	EventRunCompleted     EventType = "RUN_COMPLETED"
	EventRunFailed        EventType = "RUN_FAILED"
	EventStepDelta        EventType = "STEP_DELTA"
	EventStepCompleted    EventType = "STEP_COMPLETED"
	EventStageStarted     EventType = "STAGE_STARTED"
	EventStageCompleted   EventType = "STAGE_COMPLETED"
	EventStageSkipped     EventType = "STAGE_SKIPPED"
	EventIterationStarted EventType = "ITERATION_STARTED"
	EventBranchStarted    EventType = "BRANCH_STARTED"
	EventBranchCompleted  EventType = "BRANCH_COMPLETED"
	EventError            EventType = "ERROR"
)

// Delta is the partial content carried by a STEP_DELTA event.
type Delta struct {
	Content          string                 `json:"content,omitempty"`
	ReasoningContent string                 `json:"reasoning_content,omitempty"`
	ToolCallsPartial bool                   `json:"tool_calls_partial,omitempty"`
}

// Event is one item carried on the Wire. Every event carries identity and
// tracing fields; exactly one of Delta, Snapshot, or Data is populated,
// matching spec §3's "Event (StepEvent)" description.
type Event struct {
	Type EventType `json:"type"`

	RunID        string `json:"run_id"`
	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	Depth        int    `json:"depth"`

	NodeID    string `json:"node_id,omitempty"`
	BranchID  string `json:"branch_id,omitempty"`
	Iteration int    `json:"iteration,omitempty"`

	Delta    *Delta     `json:"delta,omitempty"`
	Snapshot *step.Step `json:"snapshot,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// sentinel marks stream termination; Read stops after observing it and
// re-posts it so additional readers also observe termination (spec §4.A).
var sentinel = Event{Type: "__wire_closed__"}

// IsSentinel reports whether e is the internal termination marker. External
// consumers never see it directly — Read filters it out of the channel it
// returns — but it is exported so a custom consumer built directly against
// the raw channel (see ReadRaw) can recognise it.
func (e Event) IsSentinel() bool { return e.Type == sentinel.Type }
