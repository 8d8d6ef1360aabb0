// Package main provides the entry point for the profile refresh Temporal worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/backend"
	"github.com/helixir/profile-service/internal/config"
	"github.com/helixir/profile-service/internal/database"
	"github.com/helixir/profile-service/internal/observability"
	"github.com/helixir/profile-service/internal/outbox"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/repository"
	"github.com/helixir/profile-service/internal/session"
	"github.com/helixir/profile-service/internal/temporal"
	"github.com/helixir/profile-service/internal/temporal/activities"
	"github.com/helixir/profile-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("profile-service worker starting")

	if !cfg.Temporal.Enabled {
		return errors.New("temporal is disabled; set temporal.enabled to run the worker")
	}
	if !cfg.Kafka.Enabled {
		return errors.New("kafka is disabled; durable refreshes publish their signals to kafka")
	}

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// The worker reads the token the server stored, so a shared store is expected.
	tokens, err := session.NewTokenStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	if closer, ok := tokens.(io.Closer); ok {
		defer closer.Close()
	}
	if cfg.Session.Store != config.SessionStoreRedis {
		logger.Warn().Msg("session store is in-memory; the worker only sees its bootstrap token")
		if err := session.Bootstrap(ctx, tokens, cfg.Session); err != nil {
			return err
		}
	}

	backendClient := backend.New(backend.Config{
		APIURLPrefix: cfg.Backend.APIURLPrefix,
		Timeout:      cfg.Backend.Timeout,
		RateLimit:    cfg.Backend.RateLimit,
		BurstSize:    cfg.Backend.BurstSize,
		UserAgent:    cfg.Backend.UserAgent,
	}, metrics)

	publisher := outbox.NewPublisher(
		outbox.NewEmitter(outbox.EmitterConfig{ServiceName: "profile-service-worker"}),
		outbox.NewKafkaWriter(outbox.WriterConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}),
		cfg.Session.ID, metrics, logger,
	)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close signal publisher")
		}
	}()

	var outcomes profile.OutcomeRecorder
	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		outcomes = repository.NewPgOutcomeRepository(db)
		logger.Info().Msg("database connection established")
	}

	// Connect to Temporal.
	temporalClient, err := temporal.NewClient(temporal.ClientConfigFromConfig(cfg.Temporal), logger)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	mgr, err := temporal.NewWorkerManager(temporalClient, temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue))
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	acts := activities.NewProfileActivities(tokens, backendClient, publisher, outcomes, metrics)
	workflows.Register(mgr.Registrar(), acts)

	logWorkerReady(logger, cfg, mgr.TaskQueue())

	if err := mgr.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker: %w", err)
	}

	logger.Info().Msg("profile-service worker shutdown complete")
	return nil
}

func logWorkerReady(logger zerolog.Logger, cfg *config.Config, taskQueue string) {
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Str("task_queue", taskQueue).
		Bool("outcomes", cfg.Database.Enabled).
		Msg("worker registered, polling for tasks")
}
