package worker_test

import (
	"context"
	"sync"

	"github.com/nimbuswx/nimbus/internal/weather"
)

// fakeRefresher records calls and refreshes every location whose key is not
// in failing.
type fakeRefresher struct {
	mu       sync.Mutex
	failing  map[string]bool
	calls    [][]weather.Location
	sweeps   int
	sweepHit int
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{failing: make(map[string]bool)}
}

func (f *fakeRefresher) fail(loc weather.Location) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[loc.Key()] = true
}

func (f *fakeRefresher) Refresh(_ context.Context, locs []weather.Location) weather.RefreshResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, append([]weather.Location(nil), locs...))
	refreshed := 0
	for _, loc := range locs {
		if !f.failing[loc.Key()] {
			refreshed++
		}
	}
	return weather.RefreshResult{Requested: len(locs), Refreshed: refreshed}
}

func (f *fakeRefresher) SweepExpired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.sweepHit
}

func (f *fakeRefresher) refreshCalls() [][]weather.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]weather.Location(nil), f.calls...)
}

func (f *fakeRefresher) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

var (
	seattle  = weather.Location{Latitude: 47.6062, Longitude: -122.3321, City: "Seattle", Country: "US"}
	portland = weather.Location{Latitude: 45.5152, Longitude: -122.6784, City: "Portland", Country: "US"}
	boise    = weather.Location{Latitude: 43.6150, Longitude: -116.2023, City: "Boise", Country: "US"}
)
