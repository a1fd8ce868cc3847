package weather_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/nimbuswx/nimbus/internal/provider/resilience/resiliencetest"
	"github.com/nimbuswx/nimbus/internal/weather"
)

var errTransport = weather.NewFetchError(weather.KindNetwork, "fetch current", errors.New("connection reset"))

func newInstantTimerFactory() func() backoff.Timer {
	return resiliencetest.NewTimer().Factory()
}

func seattle(t *testing.T) weather.Location {
	t.Helper()
	loc, err := weather.NewLocation(47.6062, -122.3321, "Seattle", "US")
	require.NoError(t, err)
	return loc
}

func portland(t *testing.T) weather.Location {
	t.Helper()
	loc, err := weather.NewLocation(45.5152, -122.6784, "Portland", "US")
	require.NoError(t, err)
	return loc
}

// validPayload mirrors the shape of an OpenWeatherMap /weather response after
// JSON decoding.
func validPayload() weather.RawPayload {
	return weather.RawPayload{
		"dt": float64(1767268800),
		"main": map[string]any{
			"temp":     15.5,
			"humidity": float64(65),
			"pressure": float64(1013),
		},
		"wind": map[string]any{
			"speed": 5.2,
			"deg":   float64(180),
		},
		"clouds":  map[string]any{"all": float64(40)},
		"weather": []any{map[string]any{"main": "Cloudy"}},
	}
}

func forecastPayload() weather.RawPayload {
	entry := func(dt float64, temp float64) map[string]any {
		p := validPayload()
		p["dt"] = dt
		p.Object("main")["temp"] = temp
		p["pop"] = 0.4
		return p
	}
	return weather.RawPayload{
		"list": []any{
			entry(1767272400, 14),
			map[string]any{"dt": float64(1767276000)}, // incomplete, skipped
			entry(1767283200, 12.5),
		},
	}
}

func newTestObservation(t *testing.T, loc weather.Location, temp float64) *weather.Observation {
	t.Helper()
	obs, err := weather.NewObservation(weather.ObservationParams{
		Location:      loc,
		ObservedAt:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Temperature:   temp,
		Humidity:      50,
		Pressure:      1010,
		WindSpeed:     3,
		WindDirection: 90,
		CloudCover:    20,
		Condition:     "Clear",
	})
	require.NoError(t, err)
	return obs
}

// scriptedUpstream answers FetchCurrent from a per-location script. The n-th
// call for a key gets script[n]; calls beyond the script repeat the last step.
type scriptedUpstream struct {
	mu       sync.Mutex
	scripts  map[string][]step
	forecast []step
	calls    map[string]int
	fcCalls  int
}

type step struct {
	payload weather.RawPayload
	err     error
	panic   bool
}

func newScriptedUpstream() *scriptedUpstream {
	return &scriptedUpstream{
		scripts: make(map[string][]step),
		calls:   make(map[string]int),
	}
}

func (u *scriptedUpstream) on(loc weather.Location, steps ...step) *scriptedUpstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.scripts[loc.Key()] = steps
	return u
}

func (u *scriptedUpstream) onForecast(steps ...step) *scriptedUpstream {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.forecast = steps
	return u
}

func (u *scriptedUpstream) Name() string { return "scripted" }

func (u *scriptedUpstream) FetchCurrent(_ context.Context, loc weather.Location) (weather.RawPayload, error) {
	u.mu.Lock()
	key := loc.Key()
	n := u.calls[key]
	u.calls[key] = n + 1
	script := u.scripts[key]
	u.mu.Unlock()

	return play(script, n)
}

func (u *scriptedUpstream) FetchForecastWindow(_ context.Context, _ weather.Location) (weather.RawPayload, error) {
	u.mu.Lock()
	n := u.fcCalls
	u.fcCalls++
	script := u.forecast
	u.mu.Unlock()

	return play(script, n)
}

func (u *scriptedUpstream) callsFor(loc weather.Location) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[loc.Key()]
}

func play(script []step, n int) (weather.RawPayload, error) {
	if len(script) == 0 {
		return nil, errTransport
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	s := script[n]
	if s.panic {
		panic("upstream exploded")
	}
	return s.payload, s.err
}

func ok(p weather.RawPayload) step { return step{payload: p} }
func fail(err error) step          { return step{err: err} }

// stubSource is a Source with canned answers for service tests.
type stubSource struct {
	mu       sync.Mutex
	obs      map[string]*weather.Observation
	err      error
	panicMsg string
	calls    int
}

func (s *stubSource) FetchOne(_ context.Context, loc weather.Location) (*weather.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return nil, s.err
	}
	if obs, ok := s.obs[loc.Key()]; ok {
		return obs, nil
	}
	return nil, weather.ErrNoObservation
}

func (s *stubSource) FetchMany(ctx context.Context, locs []weather.Location) []*weather.Observation {
	var out []*weather.Observation
	for _, loc := range locs {
		if obs, err := s.FetchOne(ctx, loc); err == nil {
			out = append(out, obs)
		}
	}
	return out
}

func (s *stubSource) FetchForecast(_ context.Context, loc weather.Location) (*weather.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &weather.Forecast{Location: loc}, nil
}

func (s *stubSource) set(loc weather.Location, obs *weather.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.obs == nil {
		s.obs = make(map[string]*weather.Observation)
	}
	s.obs[loc.Key()] = obs
}

func (s *stubSource) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
