// Package main provides the entrypoint for the Nimbus API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nimbuswx/nimbus/internal/api"
	"github.com/nimbuswx/nimbus/internal/api/middleware"
	"github.com/nimbuswx/nimbus/internal/config"
	"github.com/nimbuswx/nimbus/internal/provider/resilience"
	"github.com/nimbuswx/nimbus/internal/telemetry"
	"github.com/nimbuswx/nimbus/internal/weather"
	"github.com/nimbuswx/nimbus/internal/weather/openweathermap"
	"github.com/nimbuswx/nimbus/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	serviceName       = "nimbus-api"
	retryAfterSeconds = 60
)

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log = log.Level(cfg.App.Level())

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting Nimbus API")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}
	weatherMetrics, err := weather.NewMetrics()
	if err != nil {
		return err
	}

	// Upstream client: one request per call, breaker and health registry.
	registry := resilience.NewRegistry()
	clientCfg := resilience.ClientConfig{
		Name:      openweathermap.ProviderName,
		Timeout:   cfg.Upstream.Timeout,
		Registry:  registry,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	if cfg.Upstream.BreakerEnabled {
		cb := resilience.DefaultCircuitBreakerConfig(openweathermap.ProviderName)
		cb.Logger = &log
		clientCfg.CircuitBreaker = &cb
	}
	upstream := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.Upstream.APIKey,
		BaseURL:    cfg.Upstream.BaseURL,
		HTTPClient: resilience.NewClient(clientCfg),
		Logger:     log,
	})
	if !upstream.Configured() {
		log.Warn().Msg("OPENWEATHER_API_KEY not set - every fetch will fail and only cached data is served")
	}

	fetcher := weather.NewFetcher(weather.FetcherConfig{
		Upstream:       upstream,
		Logger:         log,
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		BaseDelay:      cfg.Fetch.BaseDelay,
		MaxConcurrency: cfg.Fetch.MaxConcurrency,
		Metrics:        weatherMetrics,
	})

	cache := weather.NewObservationCache(weather.CacheConfig{
		TTL:    cfg.Cache.TTL(),
		Logger: log,
	})
	if err := tp.Register(weather.NewCacheCollector("nimbus", cache)); err != nil {
		return err
	}

	service := weather.NewService(weather.ServiceConfig{
		Source:          fetcher,
		Cache:           cache,
		Logger:          log,
		DisableFallback: !cfg.Cache.FallbackEnabled,
		Metrics:         weatherMetrics,
	})
	log.Info().
		Dur("cache_ttl", cfg.Cache.TTL()).
		Bool("fallback", service.FallbackEnabled()).
		Int("max_attempts", fetcher.MaxAttempts()).
		Msg("weather service initialized")

	router := api.NewRouter(api.RouterConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Logger:            log,
		ServiceName:       serviceName,
		Metrics:           httpMetrics,
		RequireTLS:        cfg.App.RequireTLS,
		WeatherService:    service,
		Registry:          registry,
		MetricsHandler:    tp.MetricsHandler(),
		RetryAfterSeconds: retryAfterSeconds,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Locations:     cfg.Refresh.Locations,
			Interval:      cfg.Refresh.Interval,
			Timeout:       cfg.Refresh.Timeout,
			SweepInterval: cfg.Cache.SweepInterval,
		},
		Service: service,
		Logger:  log,
	})

	if cfg.Refresh.Enabled {
		scheduler := worker.NewScheduler(job, log)
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.PubSub.Enabled() {
		handler, err := worker.NewPubSubHandler(gctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if err != nil {
			stop()
			_ = g.Wait() //nolint:errcheck // reporting the pubsub error instead
			return err
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()
		g.Go(func() error {
			return handler.Start(gctx)
		})
	}

	return g.Wait()
}
