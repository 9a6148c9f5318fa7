// Package main provides the entry point for the orchestration engine server.
//
// @title Orchestra API
// @version 0.1.0
// @description Streaming agent orchestration engine: Runnables, Workflows, and their execution trace.
// @license.name Proprietary
// @host localhost:5300
// @BasePath /
// @schemes http https
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/runloom/orchestra/domain/agents"
	"github.com/runloom/orchestra/domain/scheduler"
	"github.com/runloom/orchestra/domain/tracing"
	"github.com/runloom/orchestra/internal/config"
	"github.com/runloom/orchestra/internal/database"
	"github.com/runloom/orchestra/internal/migrate"
	"github.com/runloom/orchestra/internal/server"
	"github.com/runloom/orchestra/internal/version"
	"github.com/runloom/orchestra/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	info := version.Info()
	slog.Default().Info("starting orchestra server",
		slog.String("version", info.Version),
		slog.String("git_commit", info.GitCommit),
		slog.String("build_time", info.BuildTime),
	)

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,
		tracing.Module,

		// Runtime core surface
		agents.Module,
		scheduler.Module,
	).Run()
}
