package runnabletool

import (
	"context"
	"fmt"
	"sync"

	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/toolexec"
)

// SpawnRequest is a single nested-run request within a spawn_runnables call.
type SpawnRequest struct {
	RunnableID string `json:"runnable_id"`
	Input      string `json:"input"`
}

// SpawnResult is the outcome of one SpawnRequest.
type SpawnResult struct {
	RunnableID string `json:"runnable_id"`
	RunID      string `json:"run_id,omitempty"`
	Response   string `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Registry resolves a runnable by id for the spawn tool's lookup step.
type Registry interface {
	Find(id string) (runnable.Runnable, bool)
}

// BuildSpawnTool creates a tool that fans out to several Runnables
// concurrently, one run_id namespace per request, mirroring the
// multi-spawn coordination capability of an agent catalog (spec §4.K
// generalised to a named-registry lookup rather than a single fixed
// target). Each request is guarded independently: one invalid or cyclic
// request fails only that entry, not the batch.
func BuildSpawnTool(reg Registry, executor *runnable.Executor, maxDepth int) toolexec.Tool {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return toolexec.Tool{
		Name:        "spawn_runnables",
		Description: "Spawn one or more runnables (agents or workflows) in parallel by id, each with its own input. Returns a result per request.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"requests": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"runnable_id": map[string]any{"type": "string"},
							"input":       map[string]any{"type": "string"},
						},
						"required": []string{"runnable_id", "input"},
					},
				},
			},
			"required": []string{"requests"},
		},
		Execute: func(args map[string]any, ec *execctx.Context, abort *execctx.AbortSignal) (string, any, error) {
			requests := parseSpawnRequests(args)
			results := executeSpawns(reg, executor, ec, maxDepth, requests)

			content := fmt.Sprintf("Spawned %d runnable(s).", len(results))
			return content, map[string]any{"results": results}, nil
		},
	}
}

func parseSpawnRequests(args map[string]any) []SpawnRequest {
	raw, ok := args["requests"].([]any)
	if !ok {
		return nil
	}
	requests := make([]SpawnRequest, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["runnable_id"].(string)
		input, _ := m["input"].(string)
		if id == "" {
			continue
		}
		requests = append(requests, SpawnRequest{RunnableID: id, Input: input})
	}
	return requests
}

// executeSpawns runs every request concurrently; each child context shares
// ec's AbortSignal (through ec.Child in guard), so parent cancellation
// reaches every child, but one request's failure never affects another's
// result slot.
func executeSpawns(reg Registry, executor *runnable.Executor, ec *execctx.Context, maxDepth int, requests []SpawnRequest) []SpawnResult {
	results := make([]SpawnResult, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(idx int, r SpawnRequest) {
			defer wg.Done()
			results[idx] = executeSingleSpawn(reg, executor, ec, maxDepth, r)
		}(i, req)
	}
	wg.Wait()
	return results
}

func executeSingleSpawn(reg Registry, executor *runnable.Executor, ec *execctx.Context, maxDepth int, req SpawnRequest) SpawnResult {
	target, ok := reg.Find(req.RunnableID)
	if !ok {
		return SpawnResult{RunnableID: req.RunnableID, Error: fmt.Sprintf("runnable %q not found in registry", req.RunnableID)}
	}

	child, err := guard(ec, target, maxDepth)
	if err != nil {
		return SpawnResult{RunnableID: req.RunnableID, Error: err.Error()}
	}

	out, err := executor.Execute(context.Background(), target, req.Input, child)
	if err != nil {
		return SpawnResult{RunnableID: req.RunnableID, RunID: child.RunID, Error: err.Error()}
	}
	return SpawnResult{RunnableID: req.RunnableID, RunID: out.RunID, Response: out.Response}
}
