package agents

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/runloom/orchestra/internal/runtime/runnabletool"
	"github.com/runloom/orchestra/internal/runtime/toolexec"
	"github.com/runloom/orchestra/pkg/logger"
)

// ToolNameSpawnRunnables is runnabletool.BuildSpawnTool's fixed tool name;
// invokeToolPrefix matches the per-runnable wrappers runnabletool.New
// generates ("invoke_<id>"). Both are coordination tools restricted for
// sub-agents by default (spec §4.K depth restriction).
const (
	ToolNameSpawnRunnables = "spawn_runnables"
	invokeToolPrefix       = "invoke_"
)

func isCoordinationTool(name string) bool {
	return name == ToolNameSpawnRunnables || strings.HasPrefix(name, invokeToolPrefix)
}

// ToolPoolConfig holds configuration for creating a ToolPool.
type ToolPoolConfig struct {
	// Catalog is the full set of tools known to this process, keyed by name.
	// Populated at startup from built-in Go tool implementations — the
	// external MCP/registry tool sources the teacher pulled from are out of
	// scope (domain/agents/{mcp_tools.go,ratelimit.go} were dropped; see
	// DESIGN.md).
	Catalog map[string]*toolexec.Tool
	Logger  *slog.Logger
}

// ToolPool resolves a per-agent-definition, depth-restricted subset of the
// process-wide tool catalog into a toolexec.Executor, generalizing the
// teacher's per-project MCP/registry cache (domain/agents/toolpool.go) to a
// single static catalog since this module has no external tool source.
type ToolPool struct {
	catalog map[string]*toolexec.Tool
	names   []string
	log     *slog.Logger

	mu    sync.RWMutex
	cache map[string]*toolexec.Executor // cache key: whitelist+depth signature
}

// NewToolPool creates a new ToolPool over a fixed catalog, validating every
// tool's Schema up front so a malformed catalog entry fails fast at startup
// rather than on the first tool call that reaches it.
func NewToolPool(cfg ToolPoolConfig) (*ToolPool, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	names := make([]string, 0, len(cfg.Catalog))
	for name, tool := range cfg.Catalog {
		if err := toolexec.ValidateSchema(name, tool.Schema); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return &ToolPool{
		catalog: cfg.Catalog,
		names:   names,
		log:     log.With(logger.Scope("toolpool")),
		cache:   make(map[string]*toolexec.Executor),
	}, nil
}

// ResolveTools filters the catalog to the tools allowed by the agent
// definition's whitelist and depth restrictions, returning a ready
// toolexec.Executor. Tool filtering happens at the Go level — the model
// never sees a tool definition it isn't allowed to call.
func (tp *ToolPool) ResolveTools(def *AgentDefinition, depth, maxDepth int) *toolexec.Executor {
	if maxDepth <= 0 {
		maxDepth = runnabletool.DefaultMaxDepth
	}

	key := cacheKey(def, depth, maxDepth)
	tp.mu.RLock()
	if exec, ok := tp.cache[key]; ok {
		tp.mu.RUnlock()
		return exec
	}
	tp.mu.RUnlock()

	tp.mu.Lock()
	defer tp.mu.Unlock()
	if exec, ok := tp.cache[key]; ok {
		return exec
	}

	resolved := tp.filterTools(def, depth, maxDepth)
	tools := make(map[string]*toolexec.Tool, len(resolved))
	for _, name := range resolved {
		tools[name] = tp.catalog[name]
	}
	exec := toolexec.New(tools)
	tp.cache[key] = exec
	return exec
}

func cacheKey(def *AgentDefinition, depth, maxDepth int) string {
	if def == nil {
		return fmt.Sprintf("*|%d|%d", depth, maxDepth)
	}
	return fmt.Sprintf("%s|%d|%d", def.ID, depth, maxDepth)
}

func (tp *ToolPool) filterTools(def *AgentDefinition, depth, maxDepth int) []string {
	var names []string
	if def == nil || len(def.Tools) == 0 {
		names = append(names, tp.names...)
	} else {
		names = tp.matchByWhitelist(def.Tools)
	}
	return tp.applyDepthRestrictions(names, def, depth, maxDepth)
}

// matchByWhitelist supports exact names, glob patterns, and "*".
func (tp *ToolPool) matchByWhitelist(whitelist []string) []string {
	var result []string
	matched := make(map[string]bool)

	for _, pattern := range whitelist {
		if pattern == "*" {
			result = append(result[:0], tp.names...)
			return result
		}
		if isGlobPattern(pattern) {
			count := 0
			for _, name := range tp.names {
				if matched[name] {
					continue
				}
				ok, err := path.Match(pattern, name)
				if err != nil {
					tp.log.Warn("invalid glob pattern in tools whitelist", slog.String("pattern", pattern), logger.Error(err))
					break
				}
				if ok {
					result = append(result, name)
					matched[name] = true
					count++
				}
			}
			if count == 0 {
				tp.log.Warn("glob pattern matched no tools", slog.String("pattern", pattern))
			}
			continue
		}
		if matched[pattern] {
			continue
		}
		if _, ok := tp.catalog[pattern]; ok {
			result = append(result, pattern)
			matched[pattern] = true
		} else {
			tp.log.Warn("tool not found in catalog, skipping", slog.String("tool", pattern))
		}
	}
	return result
}

// applyDepthRestrictions removes coordination tools from sub-agents unless
// explicitly requested in the whitelist and still within maxDepth.
func (tp *ToolPool) applyDepthRestrictions(names []string, def *AgentDefinition, depth, maxDepth int) []string {
	if depth == 0 {
		return names
	}

	explicit := make(map[string]bool)
	if def != nil {
		for _, t := range def.Tools {
			if isCoordinationTool(t) {
				explicit[t] = true
			}
		}
	}

	var filtered []string
	for _, name := range names {
		if !isCoordinationTool(name) {
			filtered = append(filtered, name)
			continue
		}
		if depth >= maxDepth {
			tp.log.Warn("removing coordination tool at max depth", slog.String("tool", name), slog.Int("depth", depth))
			continue
		}
		if explicit[name] {
			filtered = append(filtered, name)
		}
	}
	return filtered
}

func isGlobPattern(s string) bool {
	for _, c := range s {
		switch c {
		case '*', '?', '[':
			return true
		}
	}
	return false
}

// InvalidateAll clears every cached resolution, e.g. after the catalog changes.
func (tp *ToolPool) InvalidateAll() {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.cache = make(map[string]*toolexec.Executor)
}

// SetCoordinationTools merges the spawn_runnables/invoke_<id> tools built
// from a Registry into the catalog. Registry.build needs a ToolPool to
// construct Agents, so these tools cannot exist until after the Registry
// itself is built — the same setter-injection shape the teacher used to
// break its mcp/registry circular dependency. Must be called once, before
// any concurrent ResolveTools call.
func (tp *ToolPool) SetCoordinationTools(tools map[string]*toolexec.Tool) error {
	for name, t := range tools {
		if err := toolexec.ValidateSchema(name, t.Schema); err != nil {
			return err
		}
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()
	for name, t := range tools {
		if _, exists := tp.catalog[name]; !exists {
			tp.names = append(tp.names, name)
		}
		tp.catalog[name] = t
	}
	tp.cache = make(map[string]*toolexec.Executor)
	return nil
}
