package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skypro1111/live-summary-service/internal/config"
	"github.com/skypro1111/live-summary-service/internal/metrics"
	"github.com/skypro1111/live-summary-service/internal/registry"
	"github.com/skypro1111/live-summary-service/internal/server"
	"github.com/skypro1111/live-summary-service/internal/store"
	"github.com/skypro1111/live-summary-service/internal/summary"
	"github.com/skypro1111/live-summary-service/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "live-summary-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.Float64("tick_interval", cfg.Session.TickInterval),
		slog.Int("failure_threshold", cfg.Session.FailureThreshold),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("store_path", cfg.Store.Path),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Open the snapshot store; an empty path means in-memory only
	var snapshotStore store.Store
	if cfg.Store.Path != "" {
		sqliteStore, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			logger.Error("Failed to open snapshot store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		snapshotStore = sqliteStore
		logger.Info("Snapshot store opened", slog.String("path", cfg.Store.Path))
	} else {
		snapshotStore = store.NewMemory()
		logger.Info("Snapshot store is in-memory, session state is not durable")
	}

	// Initialize transcription client
	transcriptionClient, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
		Language:      cfg.Transcription.Language,
		Model:         cfg.Transcription.Model,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription client initialized",
		slog.String("endpoint", cfg.Transcription.Endpoint),
		slog.Int("max_concurrent", cfg.Transcription.MaxConcurrent),
	)

	// Initialize the session registry with the built-in summary fallbacks.
	// LLM-backed cleaner/segmenter implementations plug in here when wired.
	sessionRegistry, err := registry.New(logger, registry.Config{
		TickInterval:        cfg.Session.GetTickInterval(),
		FailureThreshold:    cfg.Session.FailureThreshold,
		TranscribeTimeout:   cfg.Transcription.GetTimeoutDuration(),
		CleanupTimeout:      cfg.Summary.GetCleanupTimeout(),
		SegmentationTimeout: cfg.Summary.GetSegmentationTimeout(),
		SubscriberBuffer:    cfg.Bus.SubscriberBuffer,
	}, transcriptionClient, summary.PassthroughCleaner{}, summary.HeadlineSegmenter{}, snapshotStore, appMetrics)
	if err != nil {
		logger.Error("Failed to create session registry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session registry initialized",
		slog.Duration("tick_interval", cfg.Session.GetTickInterval()),
	)

	// Initialize and start the HTTP API server
	httpServer := server.NewHTTPServer(cfg.HTTP, logger, cfg, sessionRegistry, transcriptionClient, appMetrics)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Stop the registry (ends all sessions, waits for driver loops)
	sessionRegistry.Shutdown()

	// Drain the transcription client and close the store
	if err := transcriptionClient.Close(); err != nil {
		logger.Error("Error closing transcription client", slog.String("error", err.Error()))
	}
	if err := snapshotStore.Close(); err != nil {
		logger.Error("Error closing snapshot store", slog.String("error", err.Error()))
	}

	// Final statistics
	stats := transcriptionClient.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
