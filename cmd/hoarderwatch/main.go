package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shapedtime/hoarderwatch/internal/api"
	"github.com/shapedtime/hoarderwatch/internal/cache"
	"github.com/shapedtime/hoarderwatch/internal/config"
	"github.com/shapedtime/hoarderwatch/internal/history"
	"github.com/shapedtime/hoarderwatch/internal/metrics"
	"github.com/shapedtime/hoarderwatch/internal/probe"
	"github.com/shapedtime/hoarderwatch/internal/pvr"
	"github.com/shapedtime/hoarderwatch/internal/verify"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting hoarderwatch", "config", *configPath)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Ensure required directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	// Initialize probe history database
	db, err := history.NewDB(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	historyRepo := history.NewRepository(db)
	slog.Info("Probe history initialized", "path", cfg.Database.Path)

	// Initialize duration cache
	store, err := cache.NewBadgerStore(cfg.Cache.Path)
	if err != nil {
		slog.Error("Failed to open duration cache", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Duration cache initialized", "path", cfg.Cache.Path)

	// Initialize PVR catalog client
	pvrClient := pvr.NewClient(cfg.PVR.BaseURL, cfg.PVR.PIN, time.Duration(cfg.PVR.Timeout)*time.Second)
	slog.Info("PVR client initialized", "base_url", cfg.PVR.BaseURL)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Initialize probing and verification
	fetcher := probe.NewFetcher(cfg.Verify.FetchTimeoutDuration())
	fetcher.OnFetched = func(n int64) {
		m.FetchedBytes.Add(float64(n))
	}

	verifier := verify.NewService(pvrClient, fetcher, store, cfg.Verify,
		verify.WithHistory(historyRepo),
		verify.WithMetrics(m),
	)
	registry.MustRegister(metrics.NewVerifierCollector(verifier))

	runner := verify.NewRunner(pvrClient, verifier, cfg.Verify.PassIntervalDuration())

	// Initialize servers
	apiServer := api.NewServer(verifier, runner)
	apiServer.SetHistoryRepository(historyRepo)
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, registry)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: apiServer.Handler(),
	}

	// Start servers and the background runner
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	go func() {
		slog.Info("Starting REST API server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("REST API server error", "error", err)
		}
	}()

	go func() {
		if err := metricsServer.Start(); err != nil {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	runner.Start(runCtx)

	slog.Info("hoarderwatch is ready",
		"api_url", fmt.Sprintf("http://localhost:%d/api", cfg.Server.HTTPPort),
		"metrics_url", fmt.Sprintf("http://localhost:%d/metrics", cfg.Server.MetricsPort),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)

	// Cancel in-flight probes before closing the stores they write to
	cancelRun()
	runner.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("REST API server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	slog.Info("hoarderwatch stopped")
}
