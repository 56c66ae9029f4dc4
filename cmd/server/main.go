// Command server exposes the public read path: the HTML home page,
// Atom/RSS/OPML feed outputs, and semantic search, backed by the
// Relational and Vector Stores the worker populates.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pgRepo "planetcf/internal/infra/adapter/persistence/postgres"
	"planetcf/internal/infra/db"
	"planetcf/internal/observability/logging"
	"planetcf/internal/observability/slo"
	"planetcf/internal/pkg/config"
	"planetcf/internal/resilience/circuitbreaker"
	"planetcf/internal/usecase/embed"
	"planetcf/internal/usecase/render"
)

func main() {
	logger := logging.NewFromEnv()
	slog.SetDefault(logger)

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	dcb := circuitbreaker.NewDBCircuitBreaker(database)
	feeds := pgRepo.NewFeedRepo(dcb)
	entries := pgRepo.NewEntryRepo(dcb)
	vectors := pgRepo.NewVectorRepo(dcb)
	embedder := embed.LoadProviderFromEnv(logger)

	renderCfg := render.LoadConfigFromEnv()
	renderer, err := render.New(feeds, entries, vectors, embedder, renderCfg)
	if err != nil {
		logger.Error("failed to build renderer", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sloRecorder := slo.NewRecorder()
	go sloRecorder.Run(ctx, 30*time.Second)

	httpAddr := config.LoadEnvString("HTTP_LISTEN_ADDR", ":8080")
	metricsAddr := config.LoadEnvString("METRICS_LISTEN_ADDR", ":9090")

	httpServer := &http.Server{
		Addr:         httpAddr,
		Handler:      newRouter(renderer, logger, sloRecorder),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	metricsServer := newMetricsServer(metricsAddr, database)

	go func() {
		logger.Info("http server starting", slog.String("addr", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", slog.Any("error", err))
		}
	}()
	go func() {
		logger.Info("metrics server starting", slog.String("addr", metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", slog.Any("error", err))
	}
}
