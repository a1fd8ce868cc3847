package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuswx/nimbus/internal/weather"
	"github.com/nimbuswx/nimbus/internal/worker"
)

func newTestDispatcher(refresher *fakeRefresher, locs ...weather.Location) *worker.Dispatcher {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  worker.RefreshConfig{Locations: locs},
		Service: refresher,
		Logger:  zerolog.Nop(),
	})
	return worker.NewDispatcher(job, zerolog.Nop())
}

func TestDispatcher_ObservationRefresh(t *testing.T) {
	refresher := newFakeRefresher()
	d := newTestDispatcher(refresher, seattle, portland)

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"observation_refresh"}`))

	require.NoError(t, err)
	calls := refresher.refreshCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []weather.Location{seattle, portland}, calls[0])
}

func TestDispatcher_ObservationRefresh_ExplicitLocations(t *testing.T) {
	refresher := newFakeRefresher()
	d := newTestDispatcher(refresher, seattle)

	err := d.Dispatch(context.Background(), []byte(`{
		"job_type": "observation_refresh",
		"locations": [{"lat": 43.615, "lon": -116.2023, "city": "Boise", "country": "US"}]
	}`))

	require.NoError(t, err)
	calls := refresher.refreshCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, "Boise", calls[0][0].City)
}

func TestDispatcher_ObservationRefresh_MostlyFailed(t *testing.T) {
	refresher := newFakeRefresher()
	refresher.fail(seattle)
	refresher.fail(portland)
	d := newTestDispatcher(refresher, seattle, portland, boise)

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"observation_refresh"}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many refresh failures: 2/3")
}

func TestDispatcher_CacheSweep(t *testing.T) {
	refresher := newFakeRefresher()
	d := newTestDispatcher(refresher, seattle)

	require.NoError(t, d.Dispatch(context.Background(), []byte(`{"job_type":"cache_sweep"}`)))
	assert.Equal(t, 1, refresher.sweepCount())
}

func TestDispatcher_HealthCheck(t *testing.T) {
	refresher := newFakeRefresher()
	d := newTestDispatcher(refresher, seattle, portland)

	require.NoError(t, d.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`)))
	calls := refresher.refreshCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []weather.Location{seattle}, calls[0])

	refresher.fail(seattle)
	assert.Error(t, d.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`)))
}

func TestDispatcher_Rejects(t *testing.T) {
	d := newTestDispatcher(newFakeRefresher(), seattle)

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"alert_evaluation"}`))
	assert.ErrorIs(t, err, worker.ErrUnknownJob)

	err = d.Dispatch(context.Background(), []byte(`not json`))
	assert.Error(t, err)

	err = d.Dispatch(context.Background(), []byte(`{"job_type":"observation_refresh","locations":[{"lat":95,"lon":0,"city":"X","country":"Y"}]}`))
	assert.Error(t, err)
}
