// Package main provides the entry point for the researcher lookup service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/researcher-lookup-service/internal/cache"
	"github.com/helixir/researcher-lookup-service/internal/config"
	"github.com/helixir/researcher-lookup-service/internal/database"
	"github.com/helixir/researcher-lookup-service/internal/events"
	"github.com/helixir/researcher-lookup-service/internal/lookup"
	"github.com/helixir/researcher-lookup-service/internal/observability"
	"github.com/helixir/researcher-lookup-service/internal/repository"
	"github.com/helixir/researcher-lookup-service/internal/researchsources"
	"github.com/helixir/researcher-lookup-service/internal/researchsources/scholar"
	"github.com/helixir/researcher-lookup-service/internal/researchsources/serpapi"
	"github.com/helixir/researcher-lookup-service/internal/resilience"
	httpserver "github.com/helixir/researcher-lookup-service/internal/server/http"
)

// cachePurgeInterval is how often expired cache entries are swept.
const cachePurgeInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("researcher-lookup-service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	opts := []lookup.Option{
		lookup.WithLogger(logger),
		lookup.WithServerAPIKey(cfg.Sources.SerpAPI.APIKey),
	}
	if metrics != nil {
		opts = append(opts, lookup.WithMetrics(metrics))
	}

	// Optional search audit log.
	var health httpserver.HealthChecker
	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info().Msg("database connection established")

		if cfg.Database.MigrationAutoRun {
			if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
				return err
			}
		}
		opts = append(opts, lookup.WithRepository(repository.NewPgSearchRepository(db)))
		health = db
	}

	// Optional search.completed events.
	if cfg.Kafka.Enabled {
		writer := events.NewWriter(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		publisher := events.NewKafkaPublisher(writer, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close event publisher")
			}
		}()
		opts = append(opts, lookup.WithPublisher(publisher, events.NewEmitter(events.EmitterConfig{})))
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("event publishing enabled")
	}

	if cfg.Cache.Enabled {
		resultCache, err := cache.New(cache.Config{TTL: cfg.Cache.TTL, MaxEntries: cfg.Cache.MaxEntries})
		if err != nil {
			return fmt.Errorf("create result cache: %w", err)
		}
		opts = append(opts, lookup.WithCache(resultCache))
		go purgeCache(ctx, resultCache, logger)
	}

	registry, err := buildRegistry(cfg, metrics)
	if err != nil {
		return err
	}
	for _, src := range registry.AllSources() {
		logger.Info().Str("source", src.Name()).Bool("enabled", src.IsEnabled()).Msg("source registered")
	}

	service := lookup.NewService(registry, opts...)

	httpCfg := httpserver.Config{
		Address:           cfg.Server.HTTPAddress(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		DefaultUseProxies: cfg.Sources.Scholar.UseProxies,
	}
	httpSrv := httpserver.NewServer(httpCfg, service, health, logger)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.ReadTimeout,
		}
	}

	errCh := make(chan error, 2)

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

	readyLog := logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("server_api_key", service.HasServerAPIKey()).
		Bool("database", cfg.Database.Enabled).
		Bool("cache", cfg.Cache.Enabled)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("researcher-lookup-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down researcher-lookup-service")

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

	logger.Info().Msg("researcher-lookup-service shutdown complete")
	return nil
}

// buildRegistry registers both adapters; disabled ones stay registered so
// that a fetch pinned to them reports them as unavailable.
func buildRegistry(cfg *config.Config, metrics *observability.Metrics) (*researchsources.Registry, error) {
	registry := researchsources.NewRegistry()

	serpCfg := cfg.Sources.SerpAPI
	registry.Register(serpapi.NewClient(serpapi.Config{
		BaseURL:   serpCfg.BaseURL,
		Engine:    serpCfg.Engine,
		Timeout:   serpCfg.Timeout,
		RateLimit: serpCfg.RateLimit,
		Enabled:   serpCfg.Enabled,
		Metrics:   metrics,
	}, nil))

	scholarClient, err := scholar.NewClient(scholarConfig(cfg), scholar.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("create scholar client: %w", err)
	}
	registry.Register(scholarClient)

	return registry, nil
}

func scholarConfig(cfg *config.Config) scholar.Config {
	sc := cfg.Sources.Scholar
	rc := cfg.Retry
	return scholar.Config{
		BaseURL:    sc.BaseURL,
		Timeout:    sc.Timeout,
		RateLimit:  sc.RateLimit,
		Proxies:    sc.Proxies,
		UserAgents: sc.UserAgents,
		Retry: resilience.RetryConfig{
			MaxAttempts: rc.MaxAttempts,
			Base:        rc.Base,
			MaxJitter:   rc.MaxJitter,
		},
		AbandonThreshold: rc.AbandonThreshold,
		FailureBackoff:   resilience.CappedBackoff{Factor: rc.FailureFactor, Ceiling: rc.FailureCeiling},
		Pace:             resilience.Pacer{Min: rc.PaceMin, Max: rc.PaceMax},
		Enabled:          sc.Enabled,
	}
}

func migrate(db *database.DB, path string, logger zerolog.Logger) error {
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

// purgeCache sweeps expired entries until ctx is done.
func purgeCache(ctx context.Context, c *cache.ResultCache, logger zerolog.Logger) {
	ticker := time.NewTicker(cachePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Purge(); n > 0 {
				logger.Debug().Int("evicted", n).Msg("purged expired cache entries")
			}
		}
	}
}
