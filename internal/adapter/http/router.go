package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cashtrail/cashtrail/internal/adapter/http/handler"
	"github.com/cashtrail/cashtrail/internal/adapter/http/middleware"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler         *handler.LedgerHandler
	SnapshotHandler       *handler.SnapshotHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler
	IdempotencyStore      usecase.IdempotencyStore
	IdempotencyTTL        time.Duration
	Logger                zerolog.Logger
	RateLimitRPS          float64
	RateLimitBurst        int
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(limiter.Limit)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Recording
		r.Post("/entries", cfg.LedgerHandler.AppendEntries)
		r.Post("/deposits", cfg.LedgerHandler.Deposit)
		r.Post("/withdrawals", cfg.LedgerHandler.Withdraw)
		r.Post("/transfers", cfg.LedgerHandler.Transfer)
		r.Post("/trades", cfg.LedgerHandler.TradeSettlement)

		// Accounts
		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Post("/recompute", cfg.LedgerHandler.Recompute)
			r.Get("/entries", cfg.LedgerHandler.ListEntries)
			r.Put("/snapshots/{date}", cfg.SnapshotHandler.Rebuild)
			r.Get("/snapshots/{date}", cfg.SnapshotHandler.Get)
		})

		// Ledger health
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/consistency", cfg.ReconciliationHandler.CheckConsistency)
			r.Get("/transfers/unmatched", cfg.ReconciliationHandler.UnmatchedTransfers)
		})
	})

	return r
}
