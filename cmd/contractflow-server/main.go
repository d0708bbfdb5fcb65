// Package main provides the HTTP server for contractflow.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/contractflow/internal/app"
	"github.com/raphaelgruber/contractflow/internal/config"
	"github.com/raphaelgruber/contractflow/internal/server"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	a, err := app.New(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("startup failed", "event", "startup_config_invalid", "error", err)
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("CONTRACTFLOW_WIPE_DB") == "true" {
		if err := a.WipeData(ctx); err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}

	srv := server.New(server.Options{
		Pipeline:       a.Executor,
		Reviews:        a.Reviews,
		Metrics:        a.Metrics,
		Logger:         logger,
		WebhookSecret:  cfg.WebhookSecret,
		AdminKey:       cfg.ResolvedAdminKey(),
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadSizeBytes,
		WriteTimeout:   cfg.SyncWaitTimeout + 30*time.Second,
	})

	logger.Info("API startup complete", "event", "api_startup_complete", "port", cfg.ServerPort)
	runErr := srv.Run(ctx, ":"+cfg.ServerPort, shutdownTimeout)
	if runErr != nil {
		logger.Error("server error", "error", runErr)
	}

	// Stop accepting pipeline work and let in-flight runs finish.
	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}

	logger.Info("server stopped")
	if runErr != nil {
		os.Exit(1)
	}
}
