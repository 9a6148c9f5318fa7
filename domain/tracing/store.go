package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/runloom/orchestra/internal/runtime/trace"
)

// BunTraceStore is the bun-backed trace.Store implementation: every
// SaveTrace/SaveSpan call is an upsert, since TraceCollector persists a
// Trace/Span incrementally as the events that grow it arrive (spec §4.L —
// a Trace's token counters and a Span's end time/status are only known in
// full once later events land).
type BunTraceStore struct {
	db bun.IDB
}

// NewBunTraceStore constructs a BunTraceStore.
func NewBunTraceStore(db bun.IDB) *BunTraceStore {
	return &BunTraceStore{db: db}
}

var _ trace.Store = (*BunTraceStore)(nil)

func (s *BunTraceStore) SaveTrace(ctx context.Context, t *trace.Trace) error {
	_, err := s.db.NewInsert().Model(fromTrace(t)).
		On("CONFLICT (id) DO UPDATE").
		Set("end_time = EXCLUDED.end_time").
		Set("input_tokens = EXCLUDED.input_tokens").
		Set("output_tokens = EXCLUDED.output_tokens").
		Set("total_tokens = EXCLUDED.total_tokens").
		Set("llm_call_count = EXCLUDED.llm_call_count").
		Set("tool_call_count = EXCLUDED.tool_call_count").
		Set("max_depth = EXCLUDED.max_depth").
		Exec(ctx)
	return err
}

// SaveSpan upserts the span, then — for an LLM_CALL span — also inserts a new
// ModelCallLog row extracted from its Attributes, the denormalized record
// SPEC_FULL.md's LLM call log addition names.
func (s *BunTraceStore) SaveSpan(ctx context.Context, sp *trace.Span) error {
	_, err := s.db.NewInsert().Model(fromSpan(sp)).
		On("CONFLICT (id) DO UPDATE").
		Set("end_time = EXCLUDED.end_time").
		Set("status = EXCLUDED.status").
		Set("attributes = EXCLUDED.attributes").
		Exec(ctx)
	if err != nil {
		return err
	}

	if sp.Kind != trace.SpanLLMCall {
		return nil
	}
	return s.saveModelCallLog(ctx, sp)
}

func (s *BunTraceStore) saveModelCallLog(ctx context.Context, sp *trace.Span) error {
	log := &ModelCallLog{
		ID:      uuid.NewString(),
		TraceID: sp.TraceID,
		SpanID:  sp.ID,
		Status:  string(sp.Status),
	}
	if !sp.EndTime.IsZero() {
		log.LatencyMS = sp.EndTime.Sub(sp.StartTime).Milliseconds()
	}
	if v, ok := sp.Attributes["model"].(string); ok {
		log.Model = v
	}
	if v, ok := sp.Attributes["provider"].(string); ok {
		log.Provider = v
	}
	if v, ok := sp.Attributes["input_tokens"].(int); ok {
		log.InputTokens = v
	}
	if v, ok := sp.Attributes["output_tokens"].(int); ok {
		log.OutputTokens = v
	}
	if v, ok := sp.Attributes["total_tokens"].(int); ok {
		log.TotalTokens = v
	}

	_, err := s.db.NewInsert().Model(log).Exec(ctx)
	return err
}
