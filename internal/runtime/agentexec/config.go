// Package agentexec implements the LLM↔tool loop (spec §4.H): the heart of
// an Agent, producing Steps and writing events to the Wire.
package agentexec

import (
	"log/slog"

	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/sequence"
	"github.com/runloom/orchestra/internal/runtime/steprepo"
	"github.com/runloom/orchestra/internal/runtime/toolexec"
)

// Config bundles everything one AgentExecutor invocation needs. Model,
// Tools, Repo, and Seq are the narrow external collaborators (spec §1);
// Executor drives them but owns none of their lifecycles.
type Config struct {
	Model    modelclient.Client
	ToolDefs []modelclient.ToolDef
	Tools    *toolexec.Executor
	Repo     *steprepo.Repository
	Seq      *sequence.Manager
	Logger   *slog.Logger

	MaxSteps                 int
	EnableTerminationSummary bool
}

// Executor drives the agent loop described in spec §4.H.
type Executor struct {
	cfg Config
}

// New constructs an Executor. cfg.Logger defaults to slog.Default() if nil.
func New(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 20
	}
	return &Executor{cfg: cfg}
}
