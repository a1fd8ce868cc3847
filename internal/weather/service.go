package weather

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Outcome names how FetchWithFallback answered a request.
type Outcome string

const (
	// OutcomeFresh means the observation came from the upstream just now.
	OutcomeFresh Outcome = "fresh"
	// OutcomeStale means the fresh fetch failed and a cached value was served.
	OutcomeStale Outcome = "stale"
	// OutcomeMiss means there is nothing to serve.
	OutcomeMiss Outcome = "miss"
)

// errSourcePanic wraps a panic recovered from a Source call.
var errSourcePanic = errors.New("observation source panicked")

// Source produces observations. *Fetcher implements it.
type Source interface {
	FetchOne(ctx context.Context, loc Location) (*Observation, error)
	FetchMany(ctx context.Context, locs []Location) []*Observation
	FetchForecast(ctx context.Context, loc Location) (*Forecast, error)
}

// ServiceConfig holds configuration for the weather service.
type ServiceConfig struct {
	// Source fetches fresh observations.
	Source Source

	// Cache holds the last good observation per location. Nil creates one
	// with DefaultCacheConfig.
	Cache *ObservationCache

	// Logger for service operations.
	Logger zerolog.Logger

	// DisableFallback starts the service with stale reads switched off.
	DisableFallback bool

	// Metrics is optional.
	Metrics *Metrics
}

// RefreshResult summarizes a Refresh run.
type RefreshResult struct {
	Requested int `json:"requested"`
	Refreshed int `json:"refreshed"`
}

// Failed returns the number of locations that were not refreshed.
func (r RefreshResult) Failed() int {
	return r.Requested - r.Refreshed
}

// Service serves observations, preferring a fresh fetch and falling back to
// the cache when the fetch fails. It never returns an error for upstream
// unavailability; absence is reported as OutcomeMiss.
type Service struct {
	source   Source
	cache    *ObservationCache
	logger   zerolog.Logger
	fallback atomic.Bool
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewService creates a new weather service.
func NewService(cfg ServiceConfig) *Service {
	cache := cfg.Cache
	if cache == nil {
		cache = NewObservationCache(DefaultCacheConfig())
	}

	s := &Service{
		source:  cfg.Source,
		cache:   cache,
		logger:  cfg.Logger.With().Str("component", "weather_service").Logger(),
		metrics: cfg.Metrics,
		tracer:  otel.Tracer(instrumentationName),
	}
	s.fallback.Store(!cfg.DisableFallback)
	return s
}

// FetchWithFallback tries a fresh fetch for loc. On success the cache is
// updated and the observation returned as OutcomeFresh. On failure, and only
// when both useCacheFallback and the global fallback switch are on, the cached
// observation is returned as OutcomeStale. Otherwise it returns nil, OutcomeMiss.
func (s *Service) FetchWithFallback(ctx context.Context, loc Location, useCacheFallback bool) (*Observation, Outcome) {
	ctx, span := s.tracer.Start(ctx, "weather.FetchWithFallback", trace.WithAttributes(
		attribute.String("weather.location", loc.Key()),
		attribute.Bool("weather.use_cache_fallback", useCacheFallback),
	))
	defer span.End()

	obs, outcome := s.fetchWithFallback(ctx, loc, useCacheFallback)
	span.SetAttributes(attribute.String("weather.outcome", string(outcome)))
	s.metrics.outcome(ctx, outcome)
	return obs, outcome
}

func (s *Service) fetchWithFallback(ctx context.Context, loc Location, useCacheFallback bool) (*Observation, Outcome) {
	obs, err := s.fetchFresh(ctx, loc)
	if err == nil {
		s.cache.Set(loc, obs)
		return obs, OutcomeFresh
	}

	if !useCacheFallback || !s.fallback.Load() {
		s.logger.Info().
			Err(err).
			Str("location", loc.Key()).
			Bool("use_cache_fallback", useCacheFallback).
			Bool("fallback_enabled", s.fallback.Load()).
			Msg("fresh fetch failed, fallback not permitted")
		return nil, OutcomeMiss
	}

	cached, cachedAt, ok := s.cache.Lookup(loc)
	if !ok {
		s.logger.Warn().Err(err).Str("location", loc.Key()).Msg("fresh fetch failed and cache has no entry")
		return nil, OutcomeMiss
	}

	s.logger.Warn().
		Err(err).
		Str("location", loc.Key()).
		Time("cached_at", cachedAt).
		Msg("serving cached observation after failed fetch")
	return cached, OutcomeStale
}

// fetchFresh calls the source, converting a panic or an empty success into an error.
func (s *Service) fetchFresh(ctx context.Context, loc Location) (obs *Observation, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("location", loc.Key()).Msg("recovered panic from observation source")
			obs, err = nil, fmt.Errorf("%w: %v", errSourcePanic, r)
		}
	}()

	obs, err = s.source.FetchOne(ctx, loc)
	if err == nil && obs == nil {
		err = ErrNoObservation
	}
	return obs, err
}

// GetCachedData returns the cached observation for loc without contacting the
// upstream.
func (s *Service) GetCachedData(loc Location) (*Observation, bool) {
	return s.cache.Get(loc)
}

// FetchForecast returns a fresh forecast window for loc. Forecasts are not cached.
func (s *Service) FetchForecast(ctx context.Context, loc Location) (fc *Forecast, err error) {
	defer func() {
		if r := recover(); r != nil {
			fc, err = nil, fmt.Errorf("%w: %v", errSourcePanic, r)
		}
	}()
	return s.source.FetchForecast(ctx, loc)
}

// FetchMany fetches locs concurrently without touching the cache.
func (s *Service) FetchMany(ctx context.Context, locs []Location) []*Observation {
	return s.source.FetchMany(ctx, locs)
}

// Refresh fetches every location and stores the successes in the cache.
func (s *Service) Refresh(ctx context.Context, locs []Location) RefreshResult {
	observations := s.source.FetchMany(ctx, locs)
	for _, obs := range observations {
		s.cache.Set(obs.Location(), obs)
	}

	result := RefreshResult{Requested: len(locs), Refreshed: len(observations)}
	s.metrics.refresh(ctx, result.Refreshed, result.Failed())
	s.logger.Info().
		Int("requested", result.Requested).
		Int("refreshed", result.Refreshed).
		Msg("cache refresh complete")
	return result
}

// EnableFallback switches stale reads on.
func (s *Service) EnableFallback() {
	s.fallback.Store(true)
	s.logger.Info().Msg("cache fallback enabled")
}

// DisableFallback switches stale reads off for every caller.
func (s *Service) DisableFallback() {
	s.fallback.Store(false)
	s.logger.Info().Msg("cache fallback disabled")
}

// FallbackEnabled reports the global fallback switch.
func (s *Service) FallbackEnabled() bool {
	return s.fallback.Load()
}

// ClearCache removes every cached observation.
func (s *Service) ClearCache() int {
	return s.cache.Clear()
}

// SweepExpired evicts expired cache entries.
func (s *Service) SweepExpired() int {
	return s.cache.ClearExpired()
}

// CacheStats returns a cache snapshot.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// Cache returns the underlying cache.
func (s *Service) Cache() *ObservationCache {
	return s.cache
}
