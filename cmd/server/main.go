package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/estateledger/internal/adapter/http"
	"github.com/iho/estateledger/internal/adapter/http/handler"
	"github.com/iho/estateledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/estateledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/estateledger/internal/adapter/repository/redis"
	"github.com/iho/estateledger/internal/aggregation"
	"github.com/iho/estateledger/internal/infrastructure/config"
	"github.com/iho/estateledger/internal/infrastructure/eventpublisher"
	"github.com/iho/estateledger/internal/infrastructure/logger"
	"github.com/iho/estateledger/internal/infrastructure/metrics"
	"github.com/iho/estateledger/internal/infrastructure/postgres"
	"github.com/iho/estateledger/internal/infrastructure/redis"
	"github.com/iho/estateledger/internal/usecase"
)

const limiterCleanupInterval = time.Hour

type publisher interface {
	usecase.EventPublisher
	io.Closer
}

func main() {
	// A missing .env file is fine; the environment wins anyway.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "estateledger"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.DatabaseAutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	events := newPublisher(cfg, log)
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	caseRepo := postgresRepo.NewCaseRepository(pool)
	planRepo := postgresRepo.NewPlanRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	counterpartyRepo := postgresRepo.NewCounterpartyRepository(pool)
	accountRepo := postgresRepo.NewBankAccountRepository(pool)
	stateRepo := postgresRepo.NewAggregationStateRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	retryCfg := postgresRepo.DefaultRetrierConfig()
	retryCfg.MaxRetries = cfg.DatabaseMaxRetries
	retrier := postgresRepo.NewRetrierWithConfig(retryCfg, log)
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Use cases
	loader := usecase.NewSnapshotLoader(caseRepo, planRepo, entryRepo, counterpartyRepo, accountRepo, cfg.DatabaseTimeout)
	aggregationUC := usecase.NewAggregationUseCase(loader, stateRepo, txManager, auditRepo, cache, events, m,
		usecase.AggregationSettings{Options: aggregationOptions(cfg), CacheTTL: cfg.AggregationCacheTTL}, log)
	bankBalanceUC := usecase.NewBankBalanceUseCase(loader)
	classificationUC := usecase.NewClassificationUseCase(txManager, entryRepo, counterpartyRepo, stateRepo, auditRepo, retrier, events, m, log)
	reviewUC := usecase.NewReviewUseCase(txManager, entryRepo, stateRepo, auditRepo, retrier, events, log)
	splitUC := usecase.NewSplitUseCase(txManager, entryRepo, stateRepo, auditRepo, retrier, idGen, events, log)
	entryUC := usecase.NewEntryUseCase(entryRepo, auditRepo)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m.RateLimitHits)
	go cleanupLimiters(ctx, limiter)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AggregationHandler:    handler.NewAggregationHandler(aggregationUC),
		BankBalanceHandler:    handler.NewBankBalanceHandler(bankBalanceUC),
		ClassificationHandler: handler.NewClassificationHandler(classificationUC),
		EntryHandler:          handler.NewEntryHandler(entryUC, reviewUC, splitUC),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           limiter,
		Metrics:               m,
		MetricsHandler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:                log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func aggregationOptions(cfg *config.Config) aggregation.Options {
	return aggregation.Options{
		UnklarThresholdCents: cfg.UnklarThresholdCents(),
		CentralCostPatterns:  cfg.CentralCostPatterns,
	}
}

// newPublisher writes events to Kafka when brokers are configured and to the
// log otherwise.
func newPublisher(cfg *config.Config, log zerolog.Logger) publisher {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info().Msg("no kafka brokers configured, logging aggregation events")
		return eventpublisher.NewLogPublisher(log)
	}
	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing aggregation events to kafka")
	return eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
}

func cleanupLimiters(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.CleanupLimiters(limiterCleanupInterval)
		}
	}
}
