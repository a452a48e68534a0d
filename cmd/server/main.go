// Package main is the entry point for the movieshelf server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (env vars, .env, optional YAML file)
// 2. Create dependencies (logger, store, services) via internal/app
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, ...).
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/movieshelf/internal/app"
	"github.com/sakif/movieshelf/internal/config"
	"github.com/sakif/movieshelf/internal/server"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $CONFIG_FILE)")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	// Defaults < YAML file < environment (.env included). See internal/config.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL debug|info|warn|error, LOG_FORMAT text|json.
	logger, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		slog.Error("invalid logging configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}
	slog.SetDefault(logger)

	// === 3. WIRE DEPENDENCIES ===
	// Store (sqlite or appwrite), event bus, services, catalog, library, auth.
	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. SERVE ===
	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM).
	srvErr := server.New(a).Start()

	if err := a.Close(); err != nil {
		logger.Error("failed to close", slog.String("error", err.Error()))
	}
	if srvErr != nil {
		logger.Error("server error", slog.String("error", srvErr.Error()))
		os.Exit(1)
	}
}
