// Package main implements the entry point for the autoreg server, which
// accepts batches of registration items, queues them as durable tasks, and
// executes them through the automation layer in the background.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/insurdesk/autoreg/internal/config"
	"github.com/insurdesk/autoreg/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// run loads configuration, sets up logging and the database, wires the
// application, and runs the HTTP server until shutdown.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_configured", cfg.Database.URL != "")

	ctx := context.Background()

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
