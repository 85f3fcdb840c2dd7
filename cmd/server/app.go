package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/insurdesk/autoreg/internal/automation"
	"github.com/insurdesk/autoreg/internal/config"
	"github.com/insurdesk/autoreg/internal/platform/memory"
	"github.com/insurdesk/autoreg/internal/platform/postgres"
	"github.com/insurdesk/autoreg/internal/service"
	"github.com/insurdesk/autoreg/internal/store"
	"github.com/insurdesk/autoreg/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when the in-memory store is selected.
	db *sql.DB

	taskStore store.TaskStore
	queue     *task.Queue
	worker    *task.Worker

	taskService *service.TaskService
}

// newApplication creates a new application instance with all dependencies
// initialized and the background worker started.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	// Select the task store: Postgres when a database URL is configured,
	// otherwise the in-memory store for local development.
	if cfg.Database.URL != "" {
		db, err := setupAppDatabase(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up database: %w", err)
		}
		app.db = db

		if err := runMigrations(db, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		app.taskStore = postgres.NewTaskStore(db)
		logger.Info("Using PostgreSQL task store")
	} else {
		app.taskStore = memory.NewTaskStore()
		logger.Warn("No database URL configured, using in-memory task store; tasks will not survive restarts")
	}

	app.queue = task.NewQueue(logger)

	executor := automation.NewSimulator(
		time.Duration(cfg.Automation.ItemDelayMillis)*time.Millisecond,
		logger,
	)

	notifier := task.NewWebhookNotifier(
		time.Duration(cfg.Notifier.TimeoutSeconds)*time.Second,
		logger,
	)

	app.worker = task.NewWorker(app.taskStore, app.queue, executor, notifier, task.WorkerConfig{
		PollInterval:   time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
		ShutdownGrace:  time.Duration(cfg.Worker.ShutdownGraceSeconds) * time.Second,
		RecoverOnStart: cfg.Worker.RecoverOnStart,
		LogDir:         cfg.Worker.LogDir,
	}, logger)

	if err := app.worker.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	taskService, err := service.NewTaskService(
		app.taskStore, app.queue, app.worker, cfg.Worker.LogDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}
	app.taskService = taskService

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.worker != nil {
		app.worker.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
