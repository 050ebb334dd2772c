package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"posada/internal/api"
	"posada/internal/authority"
	"posada/internal/availability"
	"posada/internal/clock"
	"posada/internal/config"
	"posada/internal/database"
	"posada/internal/events"
	"posada/internal/holds"
	"posada/internal/logging"
	"posada/internal/metrics"
	"posada/internal/orchestrator"
	"posada/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	holdStore := initHoldStore(cfg, &logger)

	publisher, err := initPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	holdManager := holds.NewManager(holdStore, clock.NewSystem(), publisher, logger)
	aggregator := availability.NewAggregator(db, logger)
	authorityClient := authority.NewClient(cfg.Authority, logger)
	confirmer := orchestrator.NewConfirmer(holdManager, authorityClient, db, publisher, cfg.Payments, logger)
	canceller := orchestrator.NewCanceller(db, publisher, logger)

	httpServer := api.NewHTTPServer(*cfg, db, holdManager, aggregator, confirmer, canceller, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	sweeper := worker.NewSweeper(holdManager, cfg.Holds.SweepInterval(), logger)
	go sweeper.Run(ctx)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initHoldStore prefers redis with an in-memory fallback behind the failover
// wrapper; with no redis configured, holds live in process memory only.
func initHoldStore(cfg *config.Config, logger *zerolog.Logger) holds.Store {
	memory := holds.NewMemoryStore()
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("no redis configured, holds are kept in process memory")
		return memory
	}

	client := holds.NewRedisClient(cfg.Redis)
	if err := holds.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup, failover will retry")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	return holds.NewFailoverStore(holds.NewRedisStore(client), memory, logger)
}

func initPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return events.NoopPublisher{}, nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	if err != nil {
		return nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).
		Msg("kafka publisher connected")
	return publisher, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("reservation service started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("reservation service stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
