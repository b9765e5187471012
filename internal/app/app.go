// Package app provides application-level wiring for the SQL sandbox: it turns
// a loaded configuration into a ready sandbox service.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"sql-sandbox/internal/config"
	"sql-sandbox/internal/engine"
	"sql-sandbox/internal/gatekeeper"
	"sql-sandbox/internal/sandbox"
	"sql-sandbox/internal/seed"
	"sql-sandbox/internal/session"
)

// App holds the fully-wired application.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Service *sandbox.Service
}

// NewLogger builds the slog logger described by cfg, writing to w.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewGatekeeper builds the statement classifier described by cfg.
func NewGatekeeper(cfg *config.Config) *gatekeeper.Gatekeeper {
	return gatekeeper.New(cfg.MaxQueryLength, gatekeeper.WithStrictCTE(cfg.StrictCTE))
}

// New loads the seed script and wires the registry, executor and service.
// Config warnings are logged once the logger exists.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	for _, w := range cfg.Warnings {
		logger.Warn("config", "warning", w)
	}

	script, err := seed.Load(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load seed script: %w", err)
	}
	logger.Info("seed script loaded", "source", script.Source, "statements", script.Len())

	registry := session.NewRegistry(script, logger, session.WithLockdown(cfg.SandboxLockdown))
	if err := registry.StartSweeper(cfg.SessionSweepSchedule, cfg.SessionIdleTTL); err != nil {
		_ = registry.Close()
		return nil, err
	}

	exec := engine.NewExecutor(NewGatekeeper(cfg), logger, engine.WithTimeout(cfg.QueryTimeout))
	svc := sandbox.New(registry, exec, logger,
		sandbox.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.SessionIdleTTL))

	return &App{Config: cfg, Logger: logger, Service: svc}, nil
}

// Close shuts the service down.
func (a *App) Close() error {
	return a.Service.Close()
}
