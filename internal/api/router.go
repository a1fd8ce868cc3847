// Package api provides the HTTP API for Nimbus.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nimbuswx/nimbus/internal/api/handler"
	"github.com/nimbuswx/nimbus/internal/api/middleware"
	"github.com/nimbuswx/nimbus/internal/provider/resilience"
	"github.com/nimbuswx/nimbus/internal/weather"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// WeatherService serves observations and manages the cache. Required.
	WeatherService *weather.Service
	// Registry reports upstream provider health on /v1/ops/status.
	Registry *resilience.Registry
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// RetryAfterSeconds is sent with 503 no-data responses.
	RetryAfterSeconds int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "nimbus-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))      // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))    // Panic recovery
	r.Use(chimiddleware.RealIP)               // Real IP extraction
	r.Use(middleware.SecurityHeaders)         // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.WeatherService)
	weatherHandler := handler.NewWeatherHandler(cfg.WeatherService, cfg.Logger, cfg.RetryAfterSeconds)
	cacheHandler := handler.NewCacheHandler(cfg.WeatherService, cfg.Logger)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	adminRateLimit := middleware.RateLimitByIP(middleware.AdminRateLimit)         // 10 req/min

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/weather", func(r chi.Router) {
			r.With(standardRateLimit).Get("/current", weatherHandler.GetCurrent)
			r.With(standardRateLimit).Get("/cached", weatherHandler.GetCached)
			r.With(expensiveRateLimit).Get("/forecast", weatherHandler.GetForecast)
			r.With(expensiveRateLimit, middleware.RequireJSON).Post("/batch", weatherHandler.Batch)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", cacheHandler.Stats)
			r.Get("/fallback", cacheHandler.GetFallback)

			r.Group(func(r chi.Router) {
				r.Use(adminRateLimit)
				r.Use(middleware.RequireJSON)
				r.Delete("/", cacheHandler.Clear)
				r.Post("/sweep", cacheHandler.Sweep)
				r.Put("/fallback", cacheHandler.SetFallback)
			})
		})
	})

	return r
}
