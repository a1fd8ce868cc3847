package weather

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/nimbuswx/nimbus/internal/weather"

// Metrics holds the OpenTelemetry instruments for the pipeline. A nil
// *Metrics records nothing.
type Metrics struct {
	attempts      metric.Int64Counter
	fetchDuration metric.Float64Histogram
	outcomes      metric.Int64Counter
	refreshed     metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	attempts, err := meter.Int64Counter(
		"weather.upstream.attempts",
		metric.WithDescription("Upstream fetch attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"weather.fetch.duration",
		metric.WithDescription("Duration of a fetch including retries and backoff"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"weather.service.outcomes",
		metric.WithDescription("Service responses by outcome (fresh, stale, miss)"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	refreshed, err := meter.Int64Counter(
		"weather.refresh.locations",
		metric.WithDescription("Locations processed by cache refresh runs"),
		metric.WithUnit("{location}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		attempts:      attempts,
		fetchDuration: fetchDuration,
		outcomes:      outcomes,
		refreshed:     refreshed,
	}, nil
}

// attempt records one upstream attempt. result is "ok" or a FailureKind.
func (m *Metrics) attempt(ctx context.Context, provider, result string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("result", result),
	))
}

func (m *Metrics) fetch(ctx context.Context, op string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.fetchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("ok", ok),
	))
}

func (m *Metrics) outcome(ctx context.Context, o Outcome) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(o))))
}

func (m *Metrics) refresh(ctx context.Context, ok, failed int) {
	if m == nil {
		return
	}
	m.refreshed.Add(ctx, int64(ok), metric.WithAttributes(attribute.Bool("ok", true)))
	m.refreshed.Add(ctx, int64(failed), metric.WithAttributes(attribute.Bool("ok", false)))
}
