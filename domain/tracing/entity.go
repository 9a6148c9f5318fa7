package tracing

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/runloom/orchestra/internal/runtime/trace"
)

// traceEntity is the bun projection of trace.Trace (Table: kb.traces).
type traceEntity struct {
	bun.BaseModel `bun:"table:kb.traces,alias:tr"`

	ID            string    `bun:"id,pk"`
	RootSpanID    string    `bun:"root_span_id"`
	StartTime     time.Time `bun:"start_time,notnull"`
	EndTime       time.Time `bun:"end_time"`
	InputTokens   int       `bun:"input_tokens"`
	OutputTokens  int       `bun:"output_tokens"`
	TotalTokens   int       `bun:"total_tokens"`
	LLMCallCount  int       `bun:"llm_call_count"`
	ToolCallCount int       `bun:"tool_call_count"`
	MaxDepth      int       `bun:"max_depth"`
}

func fromTrace(t *trace.Trace) *traceEntity {
	return &traceEntity{
		ID: t.ID, RootSpanID: t.RootSpanID, StartTime: t.StartTime, EndTime: t.EndTime,
		InputTokens: t.InputTokens, OutputTokens: t.OutputTokens, TotalTokens: t.TotalTokens,
		LLMCallCount: t.LLMCallCount, ToolCallCount: t.ToolCallCount, MaxDepth: t.MaxDepth,
	}
}

// spanEntity is the bun projection of trace.Span (Table: kb.spans).
type spanEntity struct {
	bun.BaseModel `bun:"table:kb.spans,alias:sp"`

	ID           string         `bun:"id,pk"`
	TraceID      string         `bun:"trace_id,notnull"`
	ParentSpanID string         `bun:"parent_span_id"`
	Kind         trace.SpanKind `bun:"kind,notnull"`
	Name         string         `bun:"name"`
	Depth        int            `bun:"depth"`
	Nested       bool           `bun:"nested"`
	StartTime    time.Time      `bun:"start_time,notnull"`
	EndTime      time.Time      `bun:"end_time"`
	Status       trace.SpanStatus `bun:"status,notnull"`
	Attributes   map[string]any `bun:"attributes,type:jsonb"`
}

func fromSpan(s *trace.Span) *spanEntity {
	return &spanEntity{
		ID: s.ID, TraceID: s.TraceID, ParentSpanID: s.ParentSpanID, Kind: s.Kind,
		Name: s.Name, Depth: s.Depth, Nested: s.Nested, StartTime: s.StartTime,
		EndTime: s.EndTime, Status: s.Status, Attributes: s.Attributes,
	}
}

// ModelCallLog is a denormalized, queryable record of one ModelClient call,
// supplementing the Span tree with a table shaped for direct filtering by
// model/provider/run without walking spans (SPEC_FULL.md's LLM call log
// addition). Populated by Store.SaveSpan whenever it sees a SpanLLMCall —
// the same TraceCollector checkpoint path that persists spans, rather than
// a second event subscription.
// Table: kb.model_call_logs
type ModelCallLog struct {
	bun.BaseModel `bun:"table:kb.model_call_logs,alias:mcl"`

	ID           string    `bun:"id,pk"`
	TraceID      string    `bun:"trace_id,notnull"`
	SpanID       string    `bun:"span_id,notnull"`
	Model        string    `bun:"model"`
	Provider     string    `bun:"provider"`
	InputTokens  int       `bun:"input_tokens"`
	OutputTokens int       `bun:"output_tokens"`
	TotalTokens  int       `bun:"total_tokens"`
	LatencyMS    int64     `bun:"latency_ms"`
	Status       string    `bun:"status"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
