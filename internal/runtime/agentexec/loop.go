package agentexec

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/eventfactory"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/wire"
	"github.com/runloom/orchestra/pkg/apperror"
)

// Request is the input to one Run invocation: the mutable Conversation the
// loop appends to, and any tool calls left outstanding by a prior run
// (the resume path, spec §4.H "pending_tool_calls").
type Request struct {
	SessionID        string
	Conversation     *step.Conversation
	PendingToolCalls []modelclient.ToolCall
}

// Run drives the LLM↔tool loop (spec §4.H) to one of its termination
// reasons: normal, max_steps, timeout, cancelled, or error.
func (e *Executor) Run(ctx context.Context, req Request, ec *execctx.Context) (runnable.RunOutput, error) {
	f := eventfactory.New(ec)
	conv := req.Conversation
	pending := req.PendingToolCalls

	var metrics step.RunMetrics
	var lastAssistant *step.Step

	stepCount := 0
	for stepCount < e.cfg.MaxSteps {
		if ec.Abort != nil && ec.Abort.IsAborted() {
			return e.onCancelled(ctx, req.SessionID, conv, ec, f, &metrics, ec.Abort.Reason())
		}
		stepCount++

		if len(pending) > 0 {
			calls := pending
			pending = nil
			if err := e.runToolBatch(ctx, req.SessionID, calls, conv, ec, f); err != nil {
				return runnable.RunOutput{}, err
			}
			continue
		}

		assistantStep, err := e.stream(ctx, req.SessionID, conv, ec, f, &metrics, e.cfg.ToolDefs)
		if err != nil {
			if ec.Abort != nil && ec.Abort.IsAborted() {
				return e.onCancelled(ctx, req.SessionID, conv, ec, f, &metrics, ec.Abort.Reason())
			}
			return runnable.RunOutput{}, err
		}
		lastAssistant = assistantStep
		conv.AppendAssistant(assistantStep.ToMessage())

		if len(assistantStep.ToolCalls) == 0 {
			metrics.StepCount = stepCount
			return runnable.RunOutput{
				Response:          assistantStep.Content,
				Metrics:           &metrics,
				TerminationReason: "normal",
			}, nil
		}

		if err := e.runToolBatch(ctx, req.SessionID, assistantStep.ToolCalls, conv, ec, f); err != nil {
			return runnable.RunOutput{}, err
		}
	}

	metrics.StepCount = stepCount
	if lastAssistant == nil || len(lastAssistant.ToolCalls) == 0 {
		return runnable.RunOutput{Metrics: &metrics, TerminationReason: "normal"}, nil
	}

	if e.cfg.EnableTerminationSummary {
		summary, err := e.stream(ctx, req.SessionID, conv, ec, f, &metrics, nil)
		if err == nil {
			return runnable.RunOutput{
				Response:          summary.Content,
				Metrics:           &metrics,
				TerminationReason: "max_steps",
			}, nil
		}
		e.cfg.Logger.Warn("termination summary turn failed", "error", err)
	}
	return runnable.RunOutput{Metrics: &metrics, TerminationReason: "max_steps"}, nil
}

// onCancelled implements the cancellation-respects-summary behaviour (spec
// §4.N, P8): if a termination summary is enabled and succeeds, the run
// completes normally with a non-empty response; otherwise it surfaces as
// Cancelled, which RunnableExecutor turns into RUN_FAILED.
func (e *Executor) onCancelled(ctx context.Context, sessionID string, conv *step.Conversation, ec *execctx.Context, f *eventfactory.Factory, metrics *step.RunMetrics, reason string) (runnable.RunOutput, error) {
	termination := "cancelled"
	if reason == "timeout" {
		termination = "timeout"
	}
	if e.cfg.EnableTerminationSummary {
		summary, err := e.stream(ctx, sessionID, conv, ec, f, metrics, nil)
		if err == nil {
			return runnable.RunOutput{
				Response:          summary.Content,
				Metrics:           metrics,
				TerminationReason: termination,
			}, nil
		}
	}
	return runnable.RunOutput{}, apperror.ErrCancelled.WithMessage(reason)
}

// runToolBatch executes calls concurrently via the tool executor, persists
// one tool Step per result (each with its own allocated sequence, in the
// order the model emitted them), and appends each result's projection to
// conv (spec §4.H "Tool fan-out").
func (e *Executor) runToolBatch(ctx context.Context, sessionID string, calls []modelclient.ToolCall, conv *step.Conversation, ec *execctx.Context, f *eventfactory.Factory) error {
	results := e.cfg.Tools.ExecuteBatch(ctx, sessionID, calls, ec, ec.Abort)
	for _, res := range results {
		seq, err := e.cfg.Seq.Allocate(ctx, sessionID, ec)
		if err != nil {
			return apperror.NewInternal("allocate sequence", err)
		}
		s := &step.Step{
			ID:           uuid.NewString(),
			SessionID:    sessionID,
			RunID:        ec.RunID,
			Sequence:     seq,
			Role:         modelclient.RoleTool,
			Content:      res.Content,
			ToolCallID:   res.ToolCallID,
			Name:         res.ToolName,
			RunnableID:   ec.RunnableID,
			RunnableType: ec.RunnableType,
			WorkflowID:   ec.WorkflowID,
			NodeID:       ec.NodeID,
			Iteration:    ec.Iteration,
			ParentRunID:  ec.ParentRunID,
			ParentSpanID: ec.SpanID,
			Depth:        ec.Depth,
			CreatedAt:    res.StartTime,
		}
		s.Metrics.ToolExecTimeMS = res.Duration.Milliseconds()
		if err := e.cfg.Repo.Save(ctx, s); err != nil {
			return apperror.NewInternal("persist tool step", err)
		}
		ec.Wire.Write(f.StepCompleted(s))
		conv.AppendToolResult(s.ToMessage())
	}
	return nil
}

// stream runs one assistant turn: allocate a fresh Step, stream chunks from
// the model accumulating content/reasoning/tool-calls, emit STEP_DELTA per
// chunk, finalise and persist the Step, emit STEP_COMPLETED, and aggregate
// its metrics into the run-level total. tools == nil drives a
// tools-disabled call (used for the termination summary turn).
func (e *Executor) stream(ctx context.Context, sessionID string, conv *step.Conversation, ec *execctx.Context, f *eventfactory.Factory, metrics *step.RunMetrics, tools []modelclient.ToolDef) (*step.Step, error) {
	seq, err := e.cfg.Seq.Allocate(ctx, sessionID, ec)
	if err != nil {
		return nil, apperror.NewInternal("allocate sequence", err)
	}

	runCtx := ctx
	if d, ok := ec.EffectiveTimeout(0, time.Now()); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	req := modelclient.StreamRequest{Messages: conv.ToLLMMessages(), Tools: tools}
	chunkCh, errCh, err := e.cfg.Model.Stream(runCtx, req)
	if err != nil {
		return nil, apperror.NewProviderError("model stream failed to start", err)
	}

	start := time.Now()
	var firstTokenMS int64
	var gotFirstToken bool
	var content, reasoning strings.Builder
	acc := modelclient.NewToolCallAccumulator()
	var usage *modelclient.Usage

	for chunk := range chunkCh {
		if chunk.Content != "" {
			if !gotFirstToken {
				firstTokenMS = time.Since(start).Milliseconds()
				gotFirstToken = true
			}
			content.WriteString(chunk.Content)
		}
		if chunk.ReasoningContent != "" {
			reasoning.WriteString(chunk.ReasoningContent)
		}
		for _, tc := range chunk.ToolCalls {
			acc.Add(tc)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		ec.Wire.Write(f.StepDelta(wire.Delta{
			Content:          chunk.Content,
			ReasoningContent: chunk.ReasoningContent,
			ToolCallsPartial: len(chunk.ToolCalls) > 0,
		}))
	}
	if streamErr := drainErr(errCh); streamErr != nil {
		return nil, apperror.NewProviderError("model stream failed", streamErr)
	}

	var reasoningPtr *string
	if reasoning.Len() > 0 {
		rc := reasoning.String()
		reasoningPtr = &rc
	}

	s := &step.Step{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		RunID:            ec.RunID,
		Sequence:         seq,
		Role:             modelclient.RoleAssistant,
		Content:          content.String(),
		ReasoningContent: reasoningPtr,
		ToolCalls:        acc.Finalize(),
		RunnableID:       ec.RunnableID,
		RunnableType:     ec.RunnableType,
		WorkflowID:       ec.WorkflowID,
		NodeID:           ec.NodeID,
		Iteration:        ec.Iteration,
		ParentRunID:      ec.ParentRunID,
		ParentSpanID:     ec.SpanID,
		Depth:            ec.Depth,
		CreatedAt:        start,
	}
	s.Metrics = step.Metrics{
		DurationMS:   time.Since(start).Milliseconds(),
		FirstTokenMS: firstTokenMS,
		Model:        e.cfg.Model.Model(),
		Provider:     e.cfg.Model.Name(),
	}
	if usage != nil {
		s.Metrics.InputTokens = usage.InputTokens
		s.Metrics.OutputTokens = usage.OutputTokens
		s.Metrics.TotalTokens = usage.TotalTokens
		s.Metrics.CachedTokens = usage.CachedTokens
	}

	if err := e.cfg.Repo.Save(ctx, s); err != nil {
		return nil, apperror.NewInternal("persist assistant step", err)
	}
	ec.Wire.Write(f.StepCompleted(s))

	metrics.DurationMS += s.Metrics.DurationMS
	metrics.InputTokens += s.Metrics.InputTokens
	metrics.OutputTokens += s.Metrics.OutputTokens
	metrics.TotalTokens += s.Metrics.TotalTokens

	return s, nil
}

func drainErr(errCh <-chan error) error {
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
	default:
	}
	return nil
}
