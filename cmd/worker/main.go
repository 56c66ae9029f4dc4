// Command worker runs the two background processes that keep entries
// flowing: the Scheduler's fan-out/retention cron jobs and the Fetcher
// Worker that consumes Feed Jobs off the Queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	pgRepo "planetcf/internal/infra/adapter/persistence/postgres"
	"planetcf/internal/infra/db"
	workerPkg "planetcf/internal/infra/worker"
	"planetcf/internal/observability/logging"
	"planetcf/internal/pkg/config"
	"planetcf/internal/queue"
	"planetcf/internal/resilience/circuitbreaker"
	"planetcf/internal/usecase/embed"
	"planetcf/internal/usecase/fetch"
	"planetcf/internal/usecase/scheduler"
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
	embedHook := embed.NewHook(embedder, vectors, true)

	fetchCfg := fetch.LoadConfigFromEnv()
	logger.Info("fetcher configuration loaded",
		slog.Duration("http_timeout", fetchCfg.HTTPTimeout),
		slog.Duration("feed_timeout", fetchCfg.FeedTimeout),
		slog.Int("max_entries_per_feed", fetchCfg.MaxEntriesPerFeed),
		slog.Int("concurrency", fetchCfg.Concurrency))

	maxAttemptsResult := config.LoadEnvInt("QUEUE_MAX_ATTEMPTS", 5, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})
	q, closeQueue := setupQueue(logger, maxAttemptsResult.Value.(int))
	defer closeQueue()

	schedulerMetrics := workerPkg.NewSchedulerMetrics()
	schedulerMetrics.MustRegister()
	schedulerCfg, err := workerPkg.LoadSchedulerConfigFromEnv(logger, schedulerMetrics)
	if err != nil {
		logger.Error("failed to load scheduler configuration", slog.Any("error", err))
		os.Exit(1)
	}

	fetcher := fetch.New(feeds, entries, embedHook, logger, fetchCfg)
	sched := scheduler.New(feeds, entries, vectors, q, logger, *schedulerCfg, schedulerMetrics)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	healthAddr := fmt.Sprintf(":%d", schedulerCfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	metricsAddr := config.LoadEnvString("METRICS_LISTEN_ADDR", ":9090")
	startMetricsServer(ctx, logger, metricsAddr)

	deliveries, err := q.Consume(ctx)
	if err != nil {
		logger.Error("failed to start consuming queue", slog.Any("error", err))
		os.Exit(1)
	}

	fetchErrCh := make(chan error, 1)
	go func() {
		fetchErrCh <- fetcher.Run(ctx, deliveries)
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer sched.Stop()

	healthServer.SetReady(true)
	logger.Info("worker started")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-fetchErrCh:
		if err != nil {
			logger.Error("fetcher stopped unexpectedly", slog.Any("error", err))
		}
	}
}

// setupQueue builds the Queue backend named by QUEUE_BACKEND ("memory" |
// "amqp", default "memory"). maxAttempts bounds retries before a job is
// dead-lettered.
func setupQueue(logger *slog.Logger, maxAttempts int) (queue.Queue, func()) {
	backend := config.LoadEnvString("QUEUE_BACKEND", "memory")
	switch backend {
	case "amqp":
		amqpURL := config.LoadEnvString("AMQP_URL", "")
		if amqpURL == "" {
			logger.Error("QUEUE_BACKEND=amqp but AMQP_URL is unset")
			os.Exit(1)
		}
		q, err := queue.NewAMQPQueue(amqpURL, "planetcf.feed_jobs", maxAttempts, logger)
		if err != nil {
			logger.Error("failed to connect to amqp", slog.Any("error", err))
			os.Exit(1)
		}
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Error("failed to close amqp queue", slog.Any("error", err))
			}
		}
	case "memory":
		q := queue.NewMemoryQueue(maxAttempts, 256)
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Error("failed to close memory queue", slog.Any("error", err))
			}
		}
	default:
		logger.Error("unrecognized QUEUE_BACKEND", slog.String("value", backend))
		os.Exit(1)
		return nil, func() {}
	}
}
