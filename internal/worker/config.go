// Package worker runs the background jobs that keep the observation cache
// warm: a periodic refresh of the tracked locations and a sweep of expired
// entries. Jobs are driven by a gocron scheduler and, optionally, by Pub/Sub
// messages.
package worker

import (
	"time"

	"github.com/nimbuswx/nimbus/internal/weather"
)

// RefreshConfig holds configuration for the refresh and sweep jobs.
type RefreshConfig struct {
	// Locations are refreshed on every run.
	// If empty, uses DefaultLocations.
	Locations []weather.Location

	// Interval between refresh runs.
	// Default: 15 minutes
	Interval time.Duration

	// Timeout bounds a single refresh run, retries included.
	// Default: 2 minutes
	Timeout time.Duration

	// SweepInterval between expired-entry sweeps. Zero disables the sweep job.
	// Default: 5 minutes
	SweepInterval time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Locations:     DefaultLocations(),
		Interval:      15 * time.Minute,
		Timeout:       2 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// DefaultLocations returns the locations tracked when none are configured.
func DefaultLocations() []weather.Location {
	return []weather.Location{
		{Latitude: 47.6062, Longitude: -122.3321, City: "Seattle", Country: "US"},
		{Latitude: 45.5152, Longitude: -122.6784, City: "Portland", Country: "US"},
		{Latitude: 37.7749, Longitude: -122.4194, City: "San Francisco", Country: "US"},
		{Latitude: 51.5074, Longitude: -0.1278, City: "London", Country: "GB"},
		{Latitude: 52.3676, Longitude: 4.9041, City: "Amsterdam", Country: "NL"},
	}
}

// withDefaults fills zero fields from DefaultRefreshConfig. SweepInterval is
// left alone so that zero can disable the sweep.
func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if len(c.Locations) == 0 {
		c.Locations = def.Locations
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
