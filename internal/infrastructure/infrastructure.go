// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, metrics, database, storage, the
// model factory and guardrails) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cleverhoods/sagecompass-sub001/internal/config"
	"github.com/cleverhoods/sagecompass-sub001/internal/events"
	"github.com/cleverhoods/sagecompass-sub001/internal/llm"
	"github.com/cleverhoods/sagecompass-sub001/internal/observability"
	"github.com/cleverhoods/sagecompass-sub001/internal/phases"
	"github.com/cleverhoods/sagecompass-sub001/internal/tools"
	"github.com/cleverhoods/sagecompass-sub001/pkg/database"
	"github.com/cleverhoods/sagecompass-sub001/pkg/lifecycle"
	"github.com/cleverhoods/sagecompass-sub001/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, metrics, database access, file storage, and agent resolution.
type Infrastructure struct {
	Lifecycle  *lifecycle.Coordinator
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Database   database.System
	Storage    storage.System
	Models     *llm.Factory
	Schemas    map[string]*phases.Schema
	Guardrails *config.Guardrails
	Tools      *tools.Registry
	Recorder   *events.Recorder
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := observability.NewLogger(&cfg.Logging, os.Stderr)
	metrics := observability.NewMetrics()

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	catalog, err := config.LoadCatalog(cfg.Agents.ModelsFile)
	if err != nil {
		return nil, fmt.Errorf("model catalog load failed: %w", err)
	}

	models, err := llm.NewFactory(
		*catalog,
		observability.Component(logger, "llm"),
		llm.WithResolveHook(metrics.ResolveHook()),
	)
	if err != nil {
		return nil, fmt.Errorf("model factory init failed: %w", err)
	}

	schemas, err := config.LoadSchemas(catalog, filepath.Dir(cfg.Agents.ModelsFile))
	if err != nil {
		return nil, fmt.Errorf("output schema load failed: %w", err)
	}

	guard, err := config.LoadGuardrails(ctx, cfg.Agents.GuardrailsFile)
	if err != nil {
		return nil, fmt.Errorf("guardrails load failed: %w", err)
	}

	recorder := events.NewRecorder(
		cfg.Agents.Owner,
		events.LogObserver(logger),
		metrics,
	)

	logger.Info(
		"agents configured",
		"agents", models.Agents(),
		"schemas", len(schemas),
		"guardrails", cfg.Agents.GuardrailsFile,
		"policy", guard.Policy != nil,
	)

	return &Infrastructure{
		Lifecycle:  lc,
		Logger:     logger,
		Metrics:    metrics,
		Database:   db,
		Storage:    store,
		Models:     models,
		Schemas:    schemas,
		Guardrails: guard,
		Tools:      tools.Builtins(),
		Recorder:   recorder,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown coordination.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}
