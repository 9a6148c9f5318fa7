package toolexec

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/modelclient"
)

// Executor is the batched parallel tool invocation engine (spec §4.G). The
// cache is keyed by (session, tool name, normalised args) and is read and
// written concurrently from parallel tool calls, hence the mutex-guarded
// map rather than a plain map (spec §5 "the tool result cache ... use a
// concurrent map").
type Executor struct {
	tools map[string]*Tool

	cacheMu sync.Mutex
	cache   map[string]Result
}

// New constructs an Executor over the given tool registry.
func New(tools map[string]*Tool) *Executor {
	return &Executor{tools: tools, cache: make(map[string]Result)}
}

func cacheKey(sessionID, name string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(sessionID)
	b.WriteByte('|')
	b.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, args[k])
	}
	return b.String()
}

// Execute runs one tool call, injecting identity/tracing fields into its
// argument map, consulting the cache when the tool is cacheable, and
// bounding execution by min(tool.Timeout, ctx.timeout_at-now).
func (e *Executor) Execute(ctx context.Context, sessionID string, call modelclient.ToolCall, ec *execctx.Context, abort *execctx.AbortSignal) Result {
	start := time.Now()

	tool, ok := e.tools[call.Function.Name]
	if !ok {
		return Result{
			ToolName: call.Function.Name, ToolCallID: call.ID,
			Content: fmt.Sprintf("Error: unknown tool %q", call.Function.Name),
			Error:   "unknown tool", StartTime: start, EndTime: start, IsSuccess: false,
		}
	}

	args := ParseArguments(call.Function.Arguments)

	if abort != nil && abort.IsAborted() {
		return Result{
			ToolName: tool.Name, ToolCallID: call.ID, InputArgs: args,
			Content: "Error: Aborted", Error: "Aborted",
			StartTime: start, EndTime: time.Now(), IsSuccess: false,
		}
	}

	if tool.Cacheable {
		key := cacheKey(sessionID, tool.Name, args)
		e.cacheMu.Lock()
		hit, found := e.cache[key]
		e.cacheMu.Unlock()
		if found {
			hit.ToolCallID = call.ID
			hit.Duration = 0
			return hit
		}
		res := e.invoke(ctx, tool, args, call.ID, ec, abort, start)
		if res.IsSuccess {
			e.cacheMu.Lock()
			e.cache[key] = res
			e.cacheMu.Unlock()
		}
		return res
	}

	return e.invoke(ctx, tool, args, call.ID, ec, abort, start)
}

func (e *Executor) invoke(ctx context.Context, tool *Tool, args map[string]any, callID string, ec *execctx.Context, abort *execctx.AbortSignal, start time.Time) (result Result) {
	injected := make(map[string]any, len(args)+6)
	for k, v := range args {
		injected[k] = v
	}
	injected["_tool_call_id"] = callID
	if ec != nil {
		injected["_wire"] = ec.Wire
		injected["_trace_id"] = ec.TraceID
		injected["_parent_span_id"] = ec.ParentSpanID
		injected["_parent_run_id"] = ec.ParentRunID
		injected["_depth"] = ec.Depth
		injected["_ctx"] = ec
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if ec != nil {
		if d, ok := ec.EffectiveTimeout(tool.Timeout, time.Now()); ok {
			runCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	} else if tool.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, tool.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result{
				ToolName: tool.Name, ToolCallID: callID, InputArgs: args,
				Content: fmt.Sprintf("Error: %v", r), Error: fmt.Sprintf("%v", r),
				StartTime: start, EndTime: time.Now(), IsSuccess: false,
			}
		}
	}()

	done := make(chan struct{})
	var content string
	var output any
	var execErr error
	go func() {
		content, output, execErr = tool.Execute(injected, ec, abort)
		close(done)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		return Result{
			ToolName: tool.Name, ToolCallID: callID, InputArgs: args,
			Content: "Error: timeout", Error: "timeout",
			StartTime: start, EndTime: time.Now(), IsSuccess: false,
		}
	}

	end := time.Now()
	if execErr != nil {
		return Result{
			ToolName: tool.Name, ToolCallID: callID, InputArgs: args,
			Content: fmt.Sprintf("Error: %v", execErr), Error: execErr.Error(),
			StartTime: start, EndTime: end, Duration: end.Sub(start), IsSuccess: false,
		}
	}
	return Result{
		ToolName: tool.Name, ToolCallID: callID, InputArgs: args,
		Content: content, Output: output,
		StartTime: start, EndTime: end, Duration: end.Sub(start), IsSuccess: true,
	}
}

// ExecuteBatch runs every call concurrently, preserving input order in the
// returned slice (spec §4.G).
func (e *Executor) ExecuteBatch(ctx context.Context, sessionID string, calls []modelclient.ToolCall, ec *execctx.Context, abort *execctx.AbortSignal) []Result {
	results := make([]Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.Execute(gctx, sessionID, call, ec, abort)
			return nil
		})
	}
	_ = g.Wait() // Execute never returns an error value itself; failures are encoded in Result.
	return results
}

// ToolDefs projects the registered tools into the provider-neutral
// definitions a ModelClient.Stream call advertises to the model.
func (e *Executor) ToolDefs() []modelclient.ToolDef {
	defs := make([]modelclient.ToolDef, 0, len(e.tools))
	for _, t := range e.tools {
		defs = append(defs, modelclient.ToolDef{Name: t.Name, Description: t.Description, Schema: t.Schema})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
