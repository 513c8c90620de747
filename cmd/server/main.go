package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/cashtrail/cashtrail/internal/adapter/http"
	"github.com/cashtrail/cashtrail/internal/adapter/http/handler"
	postgresRepo "github.com/cashtrail/cashtrail/internal/adapter/repository/postgres"
	redisRepo "github.com/cashtrail/cashtrail/internal/adapter/repository/redis"
	"github.com/cashtrail/cashtrail/internal/infrastructure/config"
	"github.com/cashtrail/cashtrail/internal/infrastructure/logger"
	"github.com/cashtrail/cashtrail/internal/infrastructure/metrics"
	"github.com/cashtrail/cashtrail/internal/infrastructure/postgres"
	"github.com/cashtrail/cashtrail/internal/infrastructure/redis"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	log.Logger = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	zerolog.DefaultContextLogger = &log.Logger

	snapshotLoc, err := cfg.SnapshotLocation()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.SnapshotTimezone).Msg("invalid snapshot timezone")
	}

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Run migrations
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	snapshotRepo := postgresRepo.NewSnapshotRepository(pool)
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier()

	// Initialize use cases
	m := metrics.New(prometheus.DefaultRegisterer)
	locks := usecase.NewAccountLocks()
	recomputer := usecase.NewBalanceRecomputer(txManager, entryRepo, locks, cache, m).WithRetrier(retrier)
	recorder := usecase.NewEntryRecorder(txManager, entryRepo, recomputer, idGen, locks, m).WithRetrier(retrier)
	builder := usecase.NewDailySnapshotBuilder(entryRepo, snapshotRepo, cache, snapshotLoc, cfg.SnapshotCacheTTL, m)
	reconciliation := usecase.NewReconciliationUseCase(entryRepo, m)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		LedgerHandler:         handler.NewLedgerHandler(recorder, recomputer, entryRepo),
		SnapshotHandler:       handler.NewSnapshotHandler(builder),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliation),
		HealthHandler:         handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		Logger:                log.Logger,
		RateLimitRPS:          cfg.RateLimitRPS,
		RateLimitBurst:        cfg.RateLimitBurst,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
