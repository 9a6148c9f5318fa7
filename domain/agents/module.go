package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/runloom/orchestra/internal/config"
	"github.com/runloom/orchestra/internal/runtime/metrics"
	"github.com/runloom/orchestra/internal/runtime/modelclient"
	"github.com/runloom/orchestra/internal/runtime/modelclient/anthropic"
	"github.com/runloom/orchestra/internal/runtime/modelclient/vertex"
	"github.com/runloom/orchestra/internal/runtime/runnable"
	"github.com/runloom/orchestra/internal/runtime/runnabletool"
	"github.com/runloom/orchestra/internal/runtime/sequence"
	"github.com/runloom/orchestra/internal/runtime/steprepo"
	"github.com/runloom/orchestra/internal/runtime/store"
	"github.com/runloom/orchestra/internal/runtime/toolexec"
	"github.com/runloom/orchestra/pkg/logger"
)

// Module provides the agents domain: the catalog (Registry), the runtime
// core collaborators it's built from, and the HTTP trigger surface. This
// replaces the teacher's domain/{agents,mcp,mcpregistry} three-module
// split — see DESIGN.md for what was dropped and why.
var Module = fx.Module("agents",
	fx.Provide(
		provideSessionStore,
		provideModelClient,
		provideToolPool,
		provideStepRepository,
		sequence.New,
		metrics.NewRecorder,
		provideRunnableExecutor,
		provideRegistry,
		provideRunnableRegistry,
		NewHandler,
	),
	fx.Invoke(
		wireCoordinationTools,
		RegisterRoutes,
	),
)

// provideSessionStore constructs the bun-backed store.SessionStore. Exposed
// as the interface (rather than *BunSessionStore) so every other provider
// in this module depends on the contract, not the bun implementation.
func provideSessionStore(db bun.IDB) store.SessionStore {
	return NewBunSessionStore(db)
}

// provideModelClient builds the ModelClient backend LLMConfig selects:
// Anthropic when AnthropicAPIKey is set, otherwise Gemini through
// modelclient/vertex (the Gemini Developer API whenever GoogleAPIKey is set,
// Vertex AI through GCPProjectID/VertexAILocation otherwise), following the
// AnthropicAPIKey-overrides-Vertex precedence documented on LLMConfig itself.
func provideModelClient(cfg *config.Config, log *slog.Logger) (modelclient.Client, error) {
	llm := cfg.LLM
	if llm.AnthropicAPIKey != "" {
		client, err := anthropic.New(anthropic.Config{
			APIKey:  llm.AnthropicAPIKey,
			BaseURL: llm.AnthropicBaseURL,
			Model:   llm.AnthropicModel,
		})
		if err != nil {
			return nil, fmt.Errorf("agents: construct anthropic model client: %w", err)
		}
		return client, nil
	}

	client, err := vertex.NewClient(context.Background(), vertex.Config{
		ProjectID:       llm.GCPProjectID,
		Location:        llm.VertexAILocation,
		GoogleAPIKey:    llm.GoogleAPIKey,
		Model:           llm.Model,
		Temperature:     llm.Temperature,
		MaxOutputTokens: llm.MaxOutputTokens,
	}, vertex.WithLogger(log.With(logger.Scope("agents.model_client"))))
	if err != nil {
		return nil, fmt.Errorf("agents: construct vertex model client: %w", err)
	}
	return client, nil
}

// provideToolPool seeds a ToolPool with an empty catalog. No built-in tool
// implementations ship with this module — only the spawn_runnables/invoke_*
// coordination tools wireCoordinationTools adds once the Registry exists.
// Domain-specific tools register into the catalog map before NewToolPool is
// called in a deployment that needs them.
func provideToolPool(log *slog.Logger) (*ToolPool, error) {
	return NewToolPool(ToolPoolConfig{
		Catalog: make(map[string]*toolexec.Tool),
		Logger:  log,
	})
}

// provideStepRepository builds a steprepo.Repository with the default
// every-2-steps checkpoint policy.
func provideStepRepository(sessionStore store.SessionStore) *steprepo.Repository {
	return steprepo.New(sessionStore, steprepo.NewPolicy(0))
}

func provideRunnableExecutor(sessionStore store.SessionStore, rec *metrics.Recorder) *runnable.Executor {
	return runnable.New(sessionStore, rec)
}

// provideRegistry builds the Registry the agents/workflows catalog compiles
// through. Its ToolPool doesn't yet carry coordination tools at this point
// in the provider graph — wireCoordinationTools fills that in once both
// exist, via the setter-injection documented on ToolPool.SetCoordinationTools.
func provideRegistry(
	db bun.IDB,
	model modelclient.Client,
	pool *ToolPool,
	sessionStore store.SessionStore,
	repo *steprepo.Repository,
	seq *sequence.Manager,
	exec *runnable.Executor,
	log *slog.Logger,
) *Registry {
	return NewRegistry(RegistryConfig{
		DB: db, Model: model, ToolPool: pool,
		SessionStore: sessionStore, Repo: repo, Seq: seq, Executor: exec,
		Logger: log.With(logger.Scope("agents.registry")),
	})
}

// provideRunnableRegistry exposes the Registry as runnabletool.Registry, so
// other domains (domain/scheduler's cron-triggered runs) can resolve catalog
// entries without importing this package's concrete types.
func provideRunnableRegistry(reg *Registry) runnabletool.Registry {
	return reg
}

// wireCoordinationTools closes the ToolPool<->Registry circular dependency
// on startup: the coordination tools a Registry can build need its own
// fully-constructed self to resolve invoke_<id> targets, and every Agent
// the Registry compiles needs the ToolPool to already carry them.
func wireCoordinationTools(lc fx.Lifecycle, reg *Registry, pool *ToolPool, log *slog.Logger) {
	log = log.With(logger.Scope("agents.module"))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			tools, err := reg.CoordinationTools(ctx)
			if err != nil {
				return fmt.Errorf("agents: build coordination tools: %w", err)
			}
			if err := pool.SetCoordinationTools(tools); err != nil {
				return fmt.Errorf("agents: wire coordination tools: %w", err)
			}
			log.Info("coordination tools wired", slog.Int("count", len(tools)))
			return nil
		},
	})
}
