package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prayerwall/api/internal/config"
	"github.com/prayerwall/api/internal/ingest"
	"github.com/prayerwall/api/internal/platform/postgres"
	"github.com/prayerwall/api/internal/platform/storage"
	"github.com/prayerwall/api/internal/platform/telemetry"
	"github.com/prayerwall/api/internal/service"
	"github.com/prayerwall/api/internal/service/auth"
	"github.com/prayerwall/api/internal/store"
	"github.com/prayerwall/api/internal/store/memory"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore    store.TaskStore
	profileStore store.ProfileStore

	// Service interfaces
	jwtService    auth.JWTService
	avatarService *service.AvatarService

	// Background processing
	workerPool *ingest.WorkerPool

	// Telemetry
	shutdownMetrics func(context.Context) error
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized")

	app.shutdownMetrics, err = telemetry.SetupMeterProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to set up meter provider: %w", err)
	}
	metrics, err := telemetry.NewIngestMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}

	// Task state is process-local; the database only holds profiles.
	app.taskStore = memory.NewTaskStore(memory.Config{
		RetentionTTL: cfg.Ingest.RetentionTTL,
		MaxTasks:     cfg.Ingest.MaxTasks,
	}, logger)
	app.profileStore = postgres.NewProfileStore(db, logger)

	fetcher := ingest.NewHTTPFetcher(ingest.HTTPFetcherConfig{
		Timeout:      cfg.Ingest.FetchTimeout,
		MaxBodyBytes: cfg.Ingest.MaxBodyBytes,
	})
	objectStorage := storage.NewClient(cfg.Storage)

	pipeline := ingest.NewPipeline(
		fetcher,
		objectStorage,
		app.profileStore,
		ingest.PipelineConfig{
			AllowedHosts: cfg.Ingest.AllowedHosts,
		},
		logger,
	)

	app.workerPool = ingest.NewWorkerPool(
		app.taskStore,
		pipeline,
		ingest.BackoffPolicy{
			Base: cfg.Ingest.BackoffBase,
			Max:  cfg.Ingest.BackoffMax,
		},
		ingest.WorkerPoolConfig{
			WorkerCount:  cfg.Ingest.WorkerCount,
			PollInterval: cfg.Ingest.PollInterval,
		},
		metrics,
		logger,
	)
	app.workerPool.Start()

	app.avatarService = service.NewAvatarService(
		app.taskStore,
		cfg.Ingest.MaxAttempts,
		metrics,
		logger,
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.shutdownMetrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.shutdownMetrics(ctx); err != nil {
			app.logger.Error("Error shutting down meter provider", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
