package weather

import (
	"context"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nimbuswx/nimbus/internal/provider/resilience"
)

// Upstream fetches raw payloads from a weather provider. Each call is exactly
// one network round trip; failures should be *FetchError values.
type Upstream interface {
	FetchCurrent(ctx context.Context, loc Location) (RawPayload, error)
	FetchForecastWindow(ctx context.Context, loc Location) (RawPayload, error)
	Name() string
}

// FetcherConfig holds configuration for the Fetcher.
type FetcherConfig struct {
	// Upstream is the provider client.
	Upstream Upstream

	// Logger for retry and exhaustion events.
	Logger zerolog.Logger

	// MaxAttempts is the attempt budget per fetch (default: 3).
	MaxAttempts int

	// BaseDelay is the delay after the first failed attempt; it doubles
	// after each further failure (default: 1s).
	BaseDelay time.Duration

	// MaxConcurrency bounds FetchMany. Zero starts one goroutine per location.
	MaxConcurrency int

	// NewTimer overrides the backoff timer (tests).
	NewTimer func() backoff.Timer

	// Clock stamps FetchedAt (default: wall clock).
	Clock clock.Clock

	// Metrics is optional.
	Metrics *Metrics
}

// Fetcher turns upstream payloads into validated observations under a
// bounded retry policy. It holds no mutable state and is safe for concurrent use.
type Fetcher struct {
	upstream       Upstream
	logger         zerolog.Logger
	retry          resilience.RetryConfig
	maxConcurrency int
	clock          clock.Clock
	metrics        *Metrics
	validator      PayloadValidator
	tracer         trace.Tracer
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		retry.BaseDelay = cfg.BaseDelay
	}
	retry.NewTimer = cfg.NewTimer

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewClock()
	}

	return &Fetcher{
		upstream:       cfg.Upstream,
		logger:         cfg.Logger.With().Str("component", "fetcher").Str("provider", cfg.Upstream.Name()).Logger(),
		retry:          retry,
		maxConcurrency: cfg.MaxConcurrency,
		clock:          clk,
		metrics:        cfg.Metrics,
		tracer:         otel.Tracer(instrumentationName),
	}
}

// MaxAttempts returns the attempt budget.
func (f *Fetcher) MaxAttempts() int {
	return f.retry.MaxAttempts
}

// FetchOne returns a validated observation for loc. When every attempt fails
// the error wraps ErrNoObservation and the last attempt's failure; this is an
// expected outcome, not a fault.
func (f *Fetcher) FetchOne(ctx context.Context, loc Location) (*Observation, error) {
	ctx, span := f.tracer.Start(ctx, "weather.FetchOne", trace.WithAttributes(
		attribute.String("weather.location", loc.Key()),
	))
	defer span.End()

	var obs *Observation
	attempts, err := f.run(ctx, "current", loc, func(ctx context.Context) error {
		o, err := f.attemptCurrent(ctx, loc)
		if err != nil {
			return err
		}
		obs = o
		return nil
	})
	span.SetAttributes(attribute.Int("weather.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no observation")
		return nil, fmt.Errorf("%w for %s after %d attempt(s): %w", ErrNoObservation, loc.Key(), attempts, err)
	}
	return obs, nil
}

// FetchForecast returns the parsed forecast window for loc under the same
// retry policy as FetchOne. Exhaustion wraps ErrNoForecast.
func (f *Fetcher) FetchForecast(ctx context.Context, loc Location) (*Forecast, error) {
	ctx, span := f.tracer.Start(ctx, "weather.FetchForecast", trace.WithAttributes(
		attribute.String("weather.location", loc.Key()),
	))
	defer span.End()

	var forecast *Forecast
	attempts, err := f.run(ctx, "forecast", loc, func(ctx context.Context) error {
		fc, err := f.attemptForecast(ctx, loc)
		if err != nil {
			return err
		}
		forecast = fc
		return nil
	})
	span.SetAttributes(attribute.Int("weather.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no forecast")
		return nil, fmt.Errorf("%w for %s after %d attempt(s): %w", ErrNoForecast, loc.Key(), attempts, err)
	}
	return forecast, nil
}

// FetchMany fetches every location concurrently and returns the successes in
// input order. Locations whose attempts were exhausted are dropped.
func (f *Fetcher) FetchMany(ctx context.Context, locs []Location) []*Observation {
	results := make([]*Observation, len(locs))

	var g errgroup.Group
	if f.maxConcurrency > 0 {
		g.SetLimit(f.maxConcurrency)
	}
	for i, loc := range locs {
		g.Go(func() error {
			obs, err := f.FetchOne(ctx, loc)
			if err == nil {
				results[i] = obs
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Observation, 0, len(locs))
	for _, obs := range results {
		if obs != nil {
			out = append(out, obs)
		}
	}
	return out
}

// run drives attempt under the retry policy, classifying and logging each failure.
func (f *Fetcher) run(ctx context.Context, op string, loc Location, attempt func(context.Context) error) (int, error) {
	start := f.clock.Now()
	var lastKind FailureKind

	attempts, err := resilience.Retry(ctx, f.retry, func(int) error {
		err := attempt(ctx)
		if err == nil {
			f.metrics.attempt(ctx, f.upstream.Name(), "ok")
			return nil
		}
		lastKind = KindOf(err)
		f.metrics.attempt(ctx, f.upstream.Name(), string(lastKind))
		if !lastKind.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, func(err error, attempt int, next time.Duration) {
		f.logger.Warn().
			Err(err).
			Str("op", op).
			Str("location", loc.Key()).
			Str("failure_kind", string(lastKind)).
			Int("attempt", attempt).
			Int("max_attempts", f.retry.MaxAttempts).
			Dur("delay", next).
			Msg("upstream attempt failed, retrying")
	})

	f.metrics.fetch(ctx, op, f.clock.Since(start), err == nil)
	if err != nil {
		f.logger.Error().
			Err(err).
			Str("op", op).
			Str("location", loc.Key()).
			Str("failure_kind", string(lastKind)).
			Int("attempts", attempts).
			Msg("upstream fetch exhausted")
	}
	return attempts, err
}

func (f *Fetcher) attemptCurrent(ctx context.Context, loc Location) (obs *Observation, err error) {
	defer recoverAttempt("fetch current", &err)

	payload, err := f.upstream.FetchCurrent(ctx, loc)
	if err != nil {
		return nil, err
	}
	if err := f.validator.Validate(payload); err != nil {
		return nil, err
	}
	return observationFromPayload(loc, payload, f.clock.Now())
}

func (f *Fetcher) attemptForecast(ctx context.Context, loc Location) (fc *Forecast, err error) {
	defer recoverAttempt("fetch forecast", &err)

	payload, err := f.upstream.FetchForecastWindow(ctx, loc)
	if err != nil {
		return nil, err
	}
	return forecastFromPayload(loc, payload, f.clock.Now())
}

// recoverAttempt turns a panic inside one attempt into a retryable failure.
func recoverAttempt(op string, err *error) {
	if r := recover(); r != nil {
		*err = NewFetchError(KindUnexpected, op, fmt.Errorf("panic: %v", r))
	}
}
