// Package main provides the entry point for the profile service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/profile-service/internal/backend"
	"github.com/helixir/profile-service/internal/config"
	"github.com/helixir/profile-service/internal/database"
	"github.com/helixir/profile-service/internal/domain"
	"github.com/helixir/profile-service/internal/observability"
	"github.com/helixir/profile-service/internal/outbox"
	"github.com/helixir/profile-service/internal/profile"
	"github.com/helixir/profile-service/internal/repository"
	"github.com/helixir/profile-service/internal/scheduler"
	httpserver "github.com/helixir/profile-service/internal/server/http"
	"github.com/helixir/profile-service/internal/session"
	"github.com/helixir/profile-service/internal/snapshot"
	"github.com/helixir/profile-service/internal/store"
	"github.com/helixir/profile-service/internal/temporal"
	"github.com/helixir/profile-service/internal/trigger"
	"github.com/helixir/profile-service/internal/userdata"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// component is a long-running loop started by run.
type component struct {
	name string
	run  func(ctx context.Context) error
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
	logger = observability.WithSessionContext(logger.With().Str("component", "server").Logger(), cfg.Session.ID)
	logger.Info().Msg("profile-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	// Session credential storage.
	tokens, err := session.NewTokenStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	if closer, ok := tokens.(io.Closer); ok {
		defer closer.Close()
	}
	if err := session.Bootstrap(ctx, tokens, cfg.Session); err != nil {
		return err
	}

	st := store.New(store.WithMetrics(metrics), store.WithLogger(logger))
	defer st.Close()

	// Subscribe before anything can dispatch.
	refreshTriggers, unsubRefresh := st.Subscribe(1, domain.SignalProfileRefreshRequested)
	defer unsubRefresh()
	userDataTriggers, unsubUserData := st.Subscribe(1, domain.SignalUserDataLoadRequest)
	defer unsubUserData()
	expirySignals, unsubExpiry := st.Subscribe(4, domain.SignalSessionExpired)
	defer unsubExpiry()

	backendClient := backend.New(backend.Config{
		APIURLPrefix: cfg.Backend.APIURLPrefix,
		Timeout:      cfg.Backend.Timeout,
		RateLimit:    cfg.Backend.RateLimit,
		BurstSize:    cfg.Backend.BurstSize,
		UserAgent:    cfg.Backend.UserAgent,
	}, metrics)
	credentials := session.NewProvider(tokens, cfg.Session.ID)
	retry := profile.RetryPolicyFromConfig(cfg.Refresh.Retry)

	refresherOpts := []profile.Option{
		profile.WithRetryPolicy(retry),
		profile.WithMetrics(metrics),
		profile.WithLogger(logger),
		profile.WithSessionID(cfg.Session.ID),
	}

	components := []component{
		{name: "session expiry", run: func(ctx context.Context) error {
			return session.NewExpiryHandler(tokens, cfg.Session.ID, logger).Run(ctx, expirySignals)
		}},
		{name: "user data watcher", run: func(ctx context.Context) error {
			return userdata.NewLoader(credentials, backendClient, st, metrics, logger).Watch(ctx, userDataTriggers)
		}},
	}
	checks := map[string]httpserver.Check{}
	if pinger, ok := tokens.(session.Pinger); ok {
		checks["session_store"] = pinger.Ping
	}

	// PostgreSQL persistence of snapshots and outcomes.
	var outcomes httpserver.OutcomeLister
	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info().Msg("database connection established")

		if cfg.Database.MigrationAutoRun {
			if err := migrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
				return err
			}
		}

		outcomeRepo := repository.NewPgOutcomeRepository(db)
		outcomes = outcomeRepo
		refresherOpts = append(refresherOpts, profile.WithOutcomeRecorder(outcomeRepo))
		checks["database"] = db.Ping

		recorder := snapshot.NewRecorder(repository.NewPgSnapshotRepository(db), cfg.Session.ID, snapshot.DefaultKeep, logger,
			snapshot.WithTransactor(db))
		if _, err := recorder.Restore(ctx, st); err != nil {
			logger.Warn().Err(err).Msg("failed to restore profile snapshot")
		}
		snapshotSignals, unsubSnapshot := st.Subscribe(4, domain.SignalProfileLoadSuccess, domain.SignalSessionExpired)
		defer unsubSnapshot()
		components = append(components, component{name: "snapshot recorder", run: func(ctx context.Context) error {
			return recorder.Run(ctx, snapshotSignals)
		}})
	}

	refresher := profile.NewRefresher(credentials, backendClient, st, refresherOpts...)
	components = append(components, component{name: "profile refresher", run: func(ctx context.Context) error {
		return refresher.Watch(ctx, refreshTriggers)
	}})

	// Temporal client for durable refreshes.
	var durable *temporal.ProfileWorkflowClient
	if cfg.Temporal.Enabled {
		clientCfg := temporal.ClientConfigFromConfig(cfg.Temporal)
		temporalClient, err := temporal.NewClient(clientCfg, logger)
		if err != nil {
			return err
		}
		durable = temporal.NewProfileWorkflowClient(temporalClient, clientCfg)
		defer durable.Close()
		checks["temporal"] = durable.Health
		logger.Info().
			Str("host_port", cfg.Temporal.HostPort).
			Str("namespace", cfg.Temporal.Namespace).
			Msg("temporal client connected")
	}

	// Kafka: publish every signal, consume commands and durable results.
	if cfg.Kafka.Enabled {
		writer := outbox.NewKafkaWriter(outbox.WriterConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		publisher := outbox.NewPublisher(outbox.NewEmitter(outbox.EmitterConfig{ServiceName: "profile-service"}), writer, cfg.Session.ID, metrics, logger)
		defer publisher.Close()
		published, unsubPublished := st.Subscribe(64)
		defer unsubPublished()
		components = append(components, component{name: "signal publisher", run: func(ctx context.Context) error {
			return publisher.Run(ctx, published)
		}})

		if cfg.Kafka.CommandTopic != "" {
			var opts []trigger.Option
			if durable != nil {
				opts = append(opts, trigger.WithDurableStarter(durable, retry))
			}
			listener := trigger.NewListener(trigger.NewKafkaReader(trigger.ReaderConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.CommandTopic,
				GroupID: cfg.Kafka.GroupID,
			}), st, cfg.Session.ID, logger, opts...)
			defer listener.Close()
			components = append(components, component{name: "command listener", run: listener.Run})
		}

		if durable != nil {
			replicator := trigger.NewReplicator(trigger.NewKafkaReader(trigger.ReaderConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				GroupID: cfg.Kafka.GroupID + "." + cfg.Session.ID,
			}), st, cfg.Session.ID, logger)
			defer replicator.Close()
			components = append(components, component{name: "event replicator", run: replicator.Run})
		}
	}

	if cfg.Refresh.Schedule != "" {
		sched, err := scheduler.New(cfg.Refresh.Schedule, st, logger)
		if err != nil {
			return err
		}
		components = append(components, component{name: "refresh scheduler", run: sched.Run})
	}

	deps := httpserver.Dependencies{
		Store:      st,
		Sessions:   tokens,
		SessionID:  cfg.Session.ID,
		SessionTTL: cfg.Session.TTL,
		Retry:      retry,
		Outcomes:   outcomes,
		Checks:     checks,
	}
	if durable != nil {
		deps.Durable = durable
	}
	httpSrv := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, deps, logger)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(components)+2)
	var wg sync.WaitGroup
	for _, c := range components {
		wg.Add(1)
		go func(c component) {
			defer wg.Done()
			if err := c.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", c.name, err)
			}
		}(c)
	}

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	if cfg.Refresh.OnStart {
		st.Dispatch(runCtx, domain.ProfileRefreshRequested(1, domain.RefreshReasonUser))
		st.Dispatch(runCtx, domain.UserDataLoadRequest(domain.UserDataProcessingDelete))
	}

	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Int("components", len(components)).
		Bool("durable", durable != nil).
		Msg("profile-service is ready")

	// Wait for shutdown signal or component error.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server error")
	}

	logger.Info().Msg("shutting down profile-service")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	wg.Wait()
	logger.Info().Msg("profile-service shutdown complete")
	return runErr
}

// migrateUp applies every pending migration.
func migrateUp(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
