package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/api"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/config"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/factory"
	"github.com/hasirciogluhq/canned-responder/cmd/responder/internal/logger"
)

func main() {
	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	logger.Info("Starting canned-responder...",
		"mode", cfg.ServerMode,
		"addr", cfg.ListenAddr,
		"chunk_size", cfg.ChunkSize)

	// run returns before exiting so its deferred cleanup always happens
	if err := run(context.Background(), cfg); err != nil {
		logger.Fatal("Server error", "error", err)
	}
	logger.Info("Shutting down...")
}

// run serves until ctx is cancelled, SIGINT/SIGTERM arrives or the listener
// fails.
func run(ctx context.Context, cfg *config.Config) error {
	// Stop on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start health server
	var healthServer *api.HealthServer
	if cfg.HealthServerPort != "" {
		healthServer = api.NewHealthServer(":" + cfg.HealthServerPort)
		healthServer.Start()
		logger.Info("Health server started", "port", cfg.HealthServerPort)
		defer stopHealthServer(healthServer)
	}

	// Bind the listener for the selected mode
	runner, err := factory.NewServerFactory(cfg).Create()
	if err != nil {
		return fmt.Errorf("failed to create %s server: %w", cfg.ServerMode, err)
	}
	logger.Info("Responder listening", "addr", runner.Addr(), "mode", cfg.ServerMode)

	// Mark as ready
	if healthServer != nil {
		healthServer.SetStats(runner.Stats())
		healthServer.SetReady(true)
	}

	// Start serving (blocking)
	return runner.Run(ctx)
}

func stopHealthServer(healthServer *api.HealthServer) {
	healthServer.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Warn("Health server shutdown error", "error", err)
	}
}
