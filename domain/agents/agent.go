package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/runloom/orchestra/internal/runtime/agentexec"
	"github.com/runloom/orchestra/internal/runtime/execctx"
	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/resume"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/runnabletool"
	"github.com/runloom/orchestra/internal/runtime/sequence"
	"github.com/runloom/orchestra/internal/runtime/step"
	"github.com/runloom/orchestra/internal/runtime/steprepo"
	"github.com/runloom/orchestra/internal/runtime/store"
)

// Agent is the runnable.Runnable implementation of a single AgentDefinition
// (spec §4.H): an LLM + tool loop over a session's Step log. There is no
// such type in the teacher, which executes agents directly from its HTTP
// handler rather than through a reusable interface — this wraps
// agentexec.Executor and resume.Agent the way the teacher's handler used to
// call its own agent runner, but behind the Runnable contract so
// runnable.Executor, runnabletool, and the workflow engines can all invoke
// it identically. Tool resolution is deferred to Run time: the set of
// tools a definition's whitelist resolves to depends on ec.Depth (spec
// §4.K coordination-tool restriction), which is only known per-invocation.
type Agent struct {
	def      *AgentDefinition
	model    modelclient.Client
	pool     *ToolPool
	store    store.SessionStore
	repo     *steprepo.Repository
	seq      *sequence.Manager
	maxDepth int
	log      *slog.Logger
}

// AgentConfig bundles an Agent's collaborators.
type AgentConfig struct {
	Definition   *AgentDefinition
	Model        modelclient.Client
	ToolPool     *ToolPool
	SessionStore store.SessionStore
	Repo         *steprepo.Repository
	Seq          *sequence.Manager
	Logger       *slog.Logger
	MaxDepth     int
}

// NewAgent constructs an Agent from cfg.
func NewAgent(cfg AgentConfig) *Agent {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = runnabletool.DefaultMaxDepth
	}
	return &Agent{
		def:      cfg.Definition,
		model:    cfg.Model,
		pool:     cfg.ToolPool,
		store:    cfg.SessionStore,
		repo:     cfg.Repo,
		seq:      cfg.Seq,
		maxDepth: maxDepth,
		log:      log,
	}
}

func (a *Agent) ID() string                      { return a.def.ID }
func (a *Agent) RunnableType() step.RunnableType { return step.RunnableTypeAgent }

// Run appends input as a new user Step to the session and drives it
// through the loop. A session with no prior Steps for this runnable starts
// fresh; one that already has history is resumed via resume.Agent so a
// dangling assistant tool_calls Step (interrupted mid-loop by a crash or a
// prior abort) picks up exactly where it left off instead of replaying.
func (a *Agent) Run(ctx context.Context, input string, ec *execctx.Context) (runnable.RunOutput, error) {
	if a.def.SystemPrompt != nil && *a.def.SystemPrompt != "" {
		if err := a.ensureSystemStep(ctx, ec); err != nil {
			return runnable.RunOutput{}, err
		}
	}

	if err := a.appendUserStep(ctx, ec, input); err != nil {
		return runnable.RunOutput{}, fmt.Errorf("agent %s: append user step: %w", a.def.ID, err)
	}

	tools := a.pool.ResolveTools(a.def, ec.Depth, a.maxDepth)
	maxSteps := 0
	if a.def.MaxSteps != nil {
		maxSteps = *a.def.MaxSteps
	}
	exec := agentexec.New(agentexec.Config{
		Model:                    a.model,
		ToolDefs:                 tools.ToolDefs(),
		Tools:                    tools,
		Repo:                     a.repo,
		Seq:                      a.seq,
		Logger:                   a.log,
		MaxSteps:                 maxSteps,
		EnableTerminationSummary: true,
	})

	out, err := resume.Agent(ctx, a.store, exec, ec.SessionID, a.def.ID, ec)
	if err != nil {
		return runnable.RunOutput{}, err
	}
	out.SessionID = ec.SessionID
	out.RunID = ec.RunID
	return out, nil
}

// ensureSystemStep writes the definition's system prompt as the session's
// first Step, once. A session already carrying any Step (for this
// runnable) has necessarily already seen it.
func (a *Agent) ensureSystemStep(ctx context.Context, ec *execctx.Context) error {
	existing, err := a.store.GetSteps(ctx, ec.SessionID, store.StepFilter{RunnableID: a.def.ID, Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	seq, err := a.seq.Allocate(ctx, ec.SessionID, ec)
	if err != nil {
		return err
	}
	return a.repo.Save(ctx, &step.Step{
		ID:           uuid.NewString(),
		SessionID:    ec.SessionID,
		RunID:        ec.RunID,
		Sequence:     seq,
		Role:         modelclient.RoleSystem,
		Content:      *a.def.SystemPrompt,
		RunnableID:   ec.RunnableID,
		RunnableType: ec.RunnableType,
		WorkflowID:   ec.WorkflowID,
		NodeID:       ec.NodeID,
		ParentRunID:  ec.ParentRunID,
		ParentSpanID: ec.SpanID,
		Depth:        ec.Depth,
	})
}

func (a *Agent) appendUserStep(ctx context.Context, ec *execctx.Context, input string) error {
	seq, err := a.seq.Allocate(ctx, ec.SessionID, ec)
	if err != nil {
		return err
	}
	return a.repo.Save(ctx, &step.Step{
		ID:           uuid.NewString(),
		SessionID:    ec.SessionID,
		RunID:        ec.RunID,
		Sequence:     seq,
		Role:         modelclient.RoleUser,
		Content:      input,
		RunnableID:   ec.RunnableID,
		RunnableType: ec.RunnableType,
		WorkflowID:   ec.WorkflowID,
		NodeID:       ec.NodeID,
		Iteration:    ec.Iteration,
		ParentRunID:  ec.ParentRunID,
		ParentSpanID: ec.SpanID,
		Depth:        ec.Depth,
	})
}

var _ runnable.Runnable = (*Agent)(nil)
