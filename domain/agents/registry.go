package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/uptrace/bun"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/runnabletool"
	"github.com/runloom/orchestra/internal/runtime/sequence"
	"github.com/runloom/orchestra/internal/runtime/steprepo"
	"github.com/runloom/orchestra/internal/runtime/store"
	"github.com/runloom/orchestra/internal/runtime/toolexec"
	"github.com/runloom/orchestra/internal/runtime/workflow"
)

// Registry is the catalog of AgentDefinitions, lazily compiled into
// runnable.Runnable instances (Agents or Workflow engines) and satisfying
// runnabletool.Registry so the spawn/invoke coordination tools can resolve
// any catalog entry by id. There is no equivalent in the teacher, which
// only ever executes the one AgentDefinition a webhook names — this
// generalises that lookup into the named-registry shape spec §4.K already
// assumes for RunnableTool/spawn_runnables.
type Registry struct {
	db    bun.IDB
	model modelclient.Client
	pool  *ToolPool

	store store.SessionStore
	repo  *steprepo.Repository
	seq   *sequence.Manager
	exec  *runnable.Executor

	maxDepth int
	log      *slog.Logger

	mu    sync.RWMutex
	built map[string]runnable.Runnable
}

// RegistryConfig bundles a Registry's collaborators.
type RegistryConfig struct {
	DB           bun.IDB
	Model        modelclient.Client
	ToolPool     *ToolPool
	SessionStore store.SessionStore
	Repo         *steprepo.Repository
	Seq          *sequence.Manager
	Executor     *runnable.Executor
	MaxDepth     int
	Logger       *slog.Logger
}

// NewRegistry constructs a Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = runnabletool.DefaultMaxDepth
	}
	return &Registry{
		db: cfg.DB, model: cfg.Model, pool: cfg.ToolPool,
		store: cfg.SessionStore, repo: cfg.Repo, seq: cfg.Seq, exec: cfg.Executor,
		maxDepth: maxDepth, log: log, built: make(map[string]runnable.Runnable),
	}
}

var _ runnabletool.Registry = (*Registry)(nil)

// Find implements runnabletool.Registry, compiling the catalog entry
// lazily on first lookup and caching the result for the process lifetime.
func (r *Registry) Find(id string) (runnable.Runnable, bool) {
	r.mu.RLock()
	if rn, ok := r.built[id]; ok {
		r.mu.RUnlock()
		return rn, true
	}
	r.mu.RUnlock()

	def, err := r.fetchDefinition(id)
	if err != nil {
		r.log.Warn("registry: definition lookup failed", slog.String("id", id), slog.String("error", err.Error()))
		return nil, false
	}

	rn, err := r.build(def)
	if err != nil {
		r.log.Warn("registry: failed to compile runnable", slog.String("id", id), slog.String("error", err.Error()))
		return nil, false
	}

	r.mu.Lock()
	r.built[id] = rn
	r.mu.Unlock()
	return rn, true
}

// Invalidate drops a cached compilation, forcing the next Find to rebuild
// it from the current AgentDefinition row — used after a definition edit.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	delete(r.built, id)
	r.mu.Unlock()
}

// CoordinationTools builds the spawn_runnables tool plus one invoke_<id>
// tool per catalog entry, for ToolPool.SetCoordinationTools. Building
// every definition eagerly means one bad definition surfaces at startup
// rather than silently disabling another agent's ability to invoke it.
func (r *Registry) CoordinationTools(ctx context.Context) (map[string]*toolexec.Tool, error) {
	var ids []string
	if err := r.db.NewSelect().Model((*AgentDefinition)(nil)).Column("id").Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("registry: list definition ids: %w", err)
	}

	tools := make(map[string]*toolexec.Tool, len(ids)+1)
	spawn := runnabletool.BuildSpawnTool(r, r.exec, r.maxDepth)
	tools[spawn.Name] = &spawn

	for _, id := range ids {
		target, ok := r.Find(id)
		if !ok {
			r.log.Warn("registry: skipping invoke tool for uncompilable definition", slog.String("id", id))
			continue
		}
		t := runnabletool.New(runnabletool.Deps{Target: target, Executor: r.exec, MaxDepth: r.maxDepth})
		tools[t.Name] = &t
	}
	return tools, nil
}

func (r *Registry) fetchDefinition(id string) (*AgentDefinition, error) {
	var def AgentDefinition
	err := r.db.NewSelect().Model(&def).Where("id = ?", id).Scan(context.Background())
	if err != nil {
		return nil, fmt.Errorf("agent definition %q: %w", id, err)
	}
	return &def, nil
}

// build compiles one AgentDefinition into its Runnable. Workflow flow
// types resolve their node/branch Runnable references back through
// r.Find, so a workflow node may itself be a nested workflow or a plain
// agent without either needing to know which.
func (r *Registry) build(def *AgentDefinition) (runnable.Runnable, error) {
	switch def.FlowType {
	case FlowTypeSingle, "":
		return NewAgent(AgentConfig{
			Definition: def, Model: r.model, ToolPool: r.pool,
			SessionStore: r.store, Repo: r.repo, Seq: r.seq,
			MaxDepth: r.maxDepth, Logger: r.log,
		}), nil
	case FlowTypeSequential:
		nodes, err := r.compileNodes(def)
		if err != nil {
			return nil, err
		}
		return workflow.NewPipelineWorkflow(def.ID, nodes, r.store, r.exec), nil
	case FlowTypeLoop:
		nodes, err := r.compileNodes(def)
		if err != nil {
			return nil, err
		}
		cond, maxIter, err := loopConfig(def)
		if err != nil {
			return nil, err
		}
		return workflow.NewLoopWorkflow(def.ID, nodes, cond, maxIter, r.exec), nil
	case FlowTypeParallel:
		branches, err := r.compileBranches(def)
		if err != nil {
			return nil, err
		}
		merge, err := mergeTemplate(def)
		if err != nil {
			return nil, err
		}
		return workflow.NewParallelWorkflow(def.ID, branches, merge, r.seq, r.exec), nil
	default:
		return nil, fmt.Errorf("agent definition %q: unknown flow_type %q", def.ID, def.FlowType)
	}
}

// nodeSpec is the JSON shape of one entry in AgentDefinition.NodeConfig["nodes"].
type nodeSpec struct {
	ID            string `json:"id"`
	RunnableID    string `json:"runnableId"`
	InputTemplate string `json:"inputTemplate"`
	Condition     string `json:"condition"`
}

func (r *Registry) compileNodes(def *AgentDefinition) ([]workflow.Node, error) {
	specs, err := nodeSpecs(def)
	if err != nil {
		return nil, err
	}
	nodes := make([]workflow.Node, 0, len(specs))
	for _, spec := range specs {
		target, ok := r.Find(spec.RunnableID)
		if !ok {
			return nil, fmt.Errorf("agent definition %q: node %q references unknown runnable %q", def.ID, spec.ID, spec.RunnableID)
		}
		tmpl, err := workflow.ParseTemplate(spec.InputTemplate)
		if err != nil {
			return nil, fmt.Errorf("agent definition %q: node %q: %w", def.ID, spec.ID, err)
		}
		var cond *workflow.Condition
		if spec.Condition != "" {
			cond, err = workflow.ParseCondition(spec.Condition)
			if err != nil {
				return nil, fmt.Errorf("agent definition %q: node %q: %w", def.ID, spec.ID, err)
			}
		}
		nodes = append(nodes, workflow.Node{ID: spec.ID, Runnable: target, InputTemplate: tmpl, Condition: cond})
	}
	return nodes, nil
}

func (r *Registry) compileBranches(def *AgentDefinition) ([]workflow.Branch, error) {
	specs, err := nodeSpecs(def)
	if err != nil {
		return nil, err
	}
	branches := make([]workflow.Branch, 0, len(specs))
	for _, spec := range specs {
		target, ok := r.Find(spec.RunnableID)
		if !ok {
			return nil, fmt.Errorf("agent definition %q: branch %q references unknown runnable %q", def.ID, spec.ID, spec.RunnableID)
		}
		tmpl, err := workflow.ParseTemplate(spec.InputTemplate)
		if err != nil {
			return nil, fmt.Errorf("agent definition %q: branch %q: %w", def.ID, spec.ID, err)
		}
		branches = append(branches, workflow.Branch{ID: spec.ID, Runnable: target, InputTemplate: tmpl})
	}
	return branches, nil
}

func nodeSpecs(def *AgentDefinition) ([]nodeSpec, error) {
	raw, ok := def.NodeConfig["nodes"]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("agent definition %q: node_config.nodes must be an array", def.ID)
	}
	specs := make([]nodeSpec, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		specs = append(specs, nodeSpec{
			ID:            asString(m["id"]),
			RunnableID:    asString(m["runnableId"]),
			InputTemplate: asString(m["inputTemplate"]),
			Condition:     asString(m["condition"]),
		})
	}
	return specs, nil
}

func loopConfig(def *AgentDefinition) (*workflow.Condition, int, error) {
	expr := asString(def.NodeConfig["condition"])
	cond, err := workflow.ParseCondition(expr)
	if err != nil {
		return nil, 0, fmt.Errorf("agent definition %q: %w", def.ID, err)
	}
	if expr == "" {
		cond = nil
	}
	maxIter := 1
	if v, ok := def.NodeConfig["maxIterations"].(float64); ok && v > 0 {
		maxIter = int(v)
	}
	return cond, maxIter, nil
}

func mergeTemplate(def *AgentDefinition) (*workflow.Template, error) {
	raw := asString(def.NodeConfig["mergeTemplate"])
	if raw == "" {
		return nil, nil
	}
	tmpl, err := workflow.ParseTemplate(raw)
	if err != nil {
		return nil, fmt.Errorf("agent definition %q: merge_template: %w", def.ID, err)
	}
	return tmpl, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
