package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/estateledger/internal/adapter/http/handler"
	"github.com/iho/estateledger/internal/adapter/http/middleware"
	"github.com/iho/estateledger/internal/infrastructure/metrics"
	"github.com/iho/estateledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AggregationHandler    *handler.AggregationHandler
	BankBalanceHandler    *handler.BankBalanceHandler
	ClassificationHandler *handler.ClassificationHandler
	EntryHandler          *handler.EntryHandler
	HealthHandler         *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Post("/preview/aggregate", cfg.AggregationHandler.Preview)

		r.Route("/cases/{caseID}", func(r chi.Router) {
			r.Get("/aggregation", cfg.AggregationHandler.Get)
			r.Get("/aggregation/status", cfg.AggregationHandler.Status)
			r.Post("/aggregation/rebuild", cfg.AggregationHandler.Rebuild)
			r.Get("/estate-summary", cfg.AggregationHandler.EstateSummary)
			r.Get("/bank-balances", cfg.BankBalanceHandler.Get)
			r.Post("/classification/run", cfg.ClassificationHandler.Run)
			r.Get("/audit", cfg.EntryHandler.ListAudit)

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", cfg.EntryHandler.List)
				r.Get("/{entryID}", cfg.EntryHandler.Get)
				r.Post("/{entryID}/review", cfg.EntryHandler.Review)
				r.Post("/{entryID}/split", cfg.EntryHandler.Split)
				r.Delete("/{entryID}/split", cfg.EntryHandler.Unsplit)
			})
		})
	})

	return r
}
