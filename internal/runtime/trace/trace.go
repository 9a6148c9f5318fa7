// Package trace implements the TraceCollector, a middleware over the Wire
// event stream that reconstructs a Trace/Span tree as Runs and Steps
// complete (spec §4.L). It is the one runtime-core component that reads
// the event stream rather than writing it.
package trace

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/wire"
)

// SpanKind enumerates the five span shapes a Trace can contain.
type SpanKind string

const (
	SpanAgent    SpanKind = "AGENT"
	SpanWorkflow SpanKind = "WORKFLOW"
	SpanStage    SpanKind = "STAGE"
	SpanLLMCall  SpanKind = "LLM_CALL"
	SpanToolCall SpanKind = "TOOL_CALL"
)

// SpanStatus mirrors OTel's coarse span status vocabulary.
type SpanStatus string

const (
	StatusUnset SpanStatus = "UNSET"
	StatusOK    SpanStatus = "OK"
	StatusError SpanStatus = "ERROR"
)

// Span is one node in a Trace's call tree.
type Span struct {
	ID           string         `json:"id"`
	TraceID      string         `json:"trace_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Kind         SpanKind       `json:"kind"`
	Name         string         `json:"name"`
	Depth        int            `json:"depth"`
	Nested       bool           `json:"nested"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time,omitempty"`
	Status       SpanStatus     `json:"status"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// Trace is the aggregate summary of one top-level run and everything it
// spawned, kept current as events arrive.
type Trace struct {
	ID             string    `json:"id"`
	RootSpanID     string    `json:"root_span_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time,omitempty"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	TotalTokens    int       `json:"total_tokens"`
	LLMCallCount   int       `json:"llm_call_count"`
	ToolCallCount  int       `json:"tool_call_count"`
	MaxDepth       int       `json:"max_depth"`
	Spans          []*Span   `json:"spans"`
}

// Store persists traces and spans. Defined locally (rather than alongside
// store.SessionStore) so this package never imports internal/runtime/store,
// keeping trace a leaf consumer of the event stream, not a peer of the
// Step/Run persistence contract.
type Store interface {
	SaveTrace(ctx context.Context, t *Trace) error
	SaveSpan(ctx context.Context, s *Span) error
}

// Exporter ships a completed span to an external sink (e.g. OTLP). Export
// is called asynchronously by Collector; a returned error is logged by the
// caller, never propagated into the event-handling path (spec §4.L
// "export failures are logged, never raised").
type Exporter interface {
	Export(ctx context.Context, s *Span) error
}

// ExportFailureHandler receives an export error. Collector calls this
// instead of panicking or blocking event handling on exporter failures.
type ExportFailureHandler func(span *Span, err error)

// Collector maintains one Trace per top-level run_id and an in-flight
// span stack, mutating both as RUN_STARTED/STEP_COMPLETED/RUN_COMPLETED/
// RUN_FAILED events arrive on a Wire (spec §4.L).
type Collector struct {
	store    Store
	exporter Exporter
	onFail   ExportFailureHandler

	traces map[string]*Trace        // trace_id -> Trace
	spans  map[string]*Span         // span_id -> Span, across all traces
	byRun  map[string]*Span         // run_id -> its AGENT/WORKFLOW span
	calls  map[string]toolCallCache // session-less cache keyed by run_id, since tool_call_id is only unique within a run
}

type toolCallCache map[string]toolCallArgs

type toolCallArgs struct {
	name string
	args string
}

// New constructs a Collector. exporter may be nil to disable OTLP export;
// onFail may be nil to discard export failures silently (logging is the
// caller's business when Export itself already logs).
func New(store Store, exporter Exporter, onFail ExportFailureHandler) *Collector {
	return &Collector{
		store:    store,
		exporter: exporter,
		onFail:   onFail,
		traces:   make(map[string]*Trace),
		spans:    make(map[string]*Span),
		byRun:    make(map[string]*Span),
		calls:    make(map[string]toolCallCache),
	}
}

// Handle processes one Wire event, updating the in-memory Trace/Span tree
// and persisting incrementally. It never returns an error: persistence and
// export failures are logged by the caller's Store/Exporter implementation
// per spec, not surfaced to the event-driving loop.
func (c *Collector) Handle(ctx context.Context, e wire.Event) {
	switch e.Type {
	case wire.EventRunStarted:
		c.onRunStarted(ctx, e)
	case wire.EventStepCompleted:
		c.onStepCompleted(ctx, e)
	case wire.EventRunCompleted:
		c.onRunTerminal(ctx, e, StatusOK, e.Data["response"])
	case wire.EventRunFailed:
		c.onRunTerminal(ctx, e, StatusError, e.Data["error"])
	}
}

func (c *Collector) onRunStarted(ctx context.Context, e wire.Event) {
	traceID := e.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	nestingType, _ := e.Data["nesting_type"].(string)
	runnableID, _ := e.Data["runnable_id"].(string)
	runnableType, _ := e.Data["runnable_type"].(step.RunnableType)
	parentRunID, _ := e.Data["parent_run_id"].(string)

	kind := SpanAgent
	if runnableType == step.RunnableTypeWorkflow {
		kind = SpanWorkflow
	}

	sp := &Span{
		ID:        uuid.NewString(),
		TraceID:   traceID,
		Kind:      kind,
		Name:      runnableID,
		Depth:     e.Depth,
		Nested:    nestingType != "" && nestingType != "none",
		StartTime: time.Now(),
		Status:    StatusUnset,
	}

	if parent, ok := c.byRun[parentRunID]; ok {
		sp.ParentSpanID = parent.ID
	}

	c.byRun[e.RunID] = sp
	c.spans[sp.ID] = sp
	c.calls[e.RunID] = make(toolCallCache)

	tr, ok := c.traces[traceID]
	if !ok {
		tr = &Trace{ID: traceID, RootSpanID: sp.ID, StartTime: sp.StartTime, MaxDepth: sp.Depth}
		c.traces[traceID] = tr
	}
	tr.Spans = append(tr.Spans, sp)
	if sp.Depth > tr.MaxDepth {
		tr.MaxDepth = sp.Depth
	}

	c.persistSpan(ctx, sp)
	c.persistTrace(ctx, tr)
}

func (c *Collector) onStepCompleted(ctx context.Context, e wire.Event) {
	st := e.Snapshot
	if st == nil {
		return
	}
	parent, ok := c.byRun[e.RunID]
	if !ok {
		return
	}

	switch st.Role {
	case "assistant":
		c.onAssistantStep(ctx, e, parent, st)
	case "tool":
		c.onToolStep(ctx, e, parent, st)
	}
}

func (c *Collector) onAssistantStep(ctx context.Context, e wire.Event, parent *Span, st *step.Step) {
	if cache, ok := c.calls[e.RunID]; ok {
		for _, tc := range st.ToolCalls {
			cache[tc.ID] = toolCallArgs{name: tc.Function.Name, args: tc.Function.Arguments}
		}
	}

	start := st.CreatedAt
	end := start.Add(time.Duration(st.Metrics.DurationMS) * time.Millisecond)
	sp := &Span{
		ID:           uuid.NewString(),
		TraceID:      parent.TraceID,
		ParentSpanID: parent.ID,
		Kind:         SpanLLMCall,
		Name:         st.Metrics.Model,
		Depth:        parent.Depth,
		StartTime:    start,
		EndTime:      end,
		Status:       StatusOK,
		Attributes: map[string]any{
			"model":         st.Metrics.Model,
			"provider":      st.Metrics.Provider,
			"input_tokens":  st.Metrics.InputTokens,
			"output_tokens": st.Metrics.OutputTokens,
			"total_tokens":  st.Metrics.TotalTokens,
		},
	}
	c.appendSpan(sp)

	if tr, ok := c.traces[parent.TraceID]; ok {
		tr.LLMCallCount++
		tr.InputTokens += st.Metrics.InputTokens
		tr.OutputTokens += st.Metrics.OutputTokens
		tr.TotalTokens += st.Metrics.TotalTokens
	}

	c.persistSpan(ctx, sp)
	c.exportAsync(ctx, sp)
}

func (c *Collector) onToolStep(ctx context.Context, e wire.Event, parent *Span, st *step.Step) {
	start := st.CreatedAt
	end := start.Add(time.Duration(st.Metrics.ToolExecTimeMS) * time.Millisecond)

	status := StatusOK
	if strings.HasPrefix(st.Content, "Error:") {
		status = StatusError
	}

	name := st.Name
	var inputArgs string
	if cache, ok := c.calls[e.RunID]; ok {
		if call, ok := cache[st.ToolCallID]; ok {
			if name == "" {
				name = call.name
			}
			inputArgs = call.args
		}
	}

	sp := &Span{
		ID:           uuid.NewString(),
		TraceID:      parent.TraceID,
		ParentSpanID: parent.ID,
		Kind:         SpanToolCall,
		Name:         name,
		Depth:        parent.Depth,
		StartTime:    start,
		EndTime:      end,
		Status:       status,
		Attributes: map[string]any{
			"tool_call_id": st.ToolCallID,
			"input_args":   inputArgs,
		},
	}
	c.appendSpan(sp)

	if tr, ok := c.traces[parent.TraceID]; ok {
		tr.ToolCallCount++
	}

	c.persistSpan(ctx, sp)
	c.exportAsync(ctx, sp)
}

func (c *Collector) onRunTerminal(ctx context.Context, e wire.Event, status SpanStatus, preview any) {
	sp, ok := c.byRun[e.RunID]
	if !ok {
		return
	}
	sp.EndTime = time.Now()
	sp.Status = status
	if sp.Attributes == nil {
		sp.Attributes = map[string]any{}
	}
	sp.Attributes["output_preview"] = preview

	if tr, ok := c.traces[sp.TraceID]; ok && sp.ID == tr.RootSpanID {
		tr.EndTime = sp.EndTime
	}

	c.persistSpan(ctx, sp)
	if tr, ok := c.traces[sp.TraceID]; ok {
		c.persistTrace(ctx, tr)
	}
	c.exportAsync(ctx, sp)

	delete(c.calls, e.RunID)
}

func (c *Collector) appendSpan(sp *Span) {
	c.spans[sp.ID] = sp
	if tr, ok := c.traces[sp.TraceID]; ok {
		tr.Spans = append(tr.Spans, sp)
	}
}

func (c *Collector) persistSpan(ctx context.Context, sp *Span) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveSpan(ctx, sp); err != nil && c.onFail != nil {
		c.onFail(sp, err)
	}
}

func (c *Collector) persistTrace(ctx context.Context, tr *Trace) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveTrace(ctx, tr); err != nil && c.onFail != nil {
		c.onFail(nil, err)
	}
}

// exportAsync ships sp to the OTLP exporter without blocking event
// handling; failures go to onFail, never back to the caller (spec §4.L).
func (c *Collector) exportAsync(ctx context.Context, sp *Span) {
	if c.exporter == nil {
		return
	}
	go func() {
		if err := c.exporter.Export(ctx, sp); err != nil && c.onFail != nil {
			c.onFail(sp, err)
		}
	}()
}

// Trace returns the reconstructed trace for traceID, or nil if unknown.
func (c *Collector) Trace(traceID string) *Trace {
	return c.traces[traceID]
}
