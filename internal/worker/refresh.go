package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nimbuswx/nimbus/internal/weather"
)

// Refresher is the part of *weather.Service the jobs drive.
type Refresher interface {
	Refresh(ctx context.Context, locs []weather.Location) weather.RefreshResult
	SweepExpired() int
}

// RefreshJob refreshes the tracked locations into the observation cache and
// sweeps expired entries.
type RefreshJob struct {
	config  RefreshConfig
	service Refresher
	logger  zerolog.Logger
	now     func() time.Time

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	TotalSweeps       int64
	SweptEntries      int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
	LastSweepAt         time.Time
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Service Refresher
	Logger  zerolog.Logger
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		service: cfg.Service,
		logger:  cfg.Logger.With().Str("component", "refresh_job").Logger(),
		now:     time.Now,
		metrics: &RefreshMetrics{},
	}
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Requested int
	Refreshed int
	Failed    int
}

// Run refreshes every configured location.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunFor(ctx, j.config.Locations)
}

// RunFor refreshes locs within the configured timeout. Failed locations keep
// whatever the cache already holds for them.
func (j *RefreshJob) RunFor(ctx context.Context, locs []weather.Location) *RefreshResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := j.now()
	j.logger.Info().
		Int("locations", len(locs)).
		Dur("timeout", j.config.Timeout).
		Msg("starting observation refresh")

	res := j.service.Refresh(ctx, locs)

	result := &RefreshResult{
		StartTime: start,
		EndTime:   j.now(),
		Requested: res.Requested,
		Refreshed: res.Refreshed,
		Failed:    res.Failed(),
	}
	result.Duration = result.EndTime.Sub(start)

	j.updateMetrics(result)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Dur("duration", result.Duration).
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Msg("observation refresh completed")

	return result
}

// Sweep evicts expired cache entries and returns how many were removed.
func (j *RefreshJob) Sweep() int {
	removed := j.service.SweepExpired()

	j.metrics.mu.Lock()
	j.metrics.TotalSweeps++
	j.metrics.SweptEntries += int64(removed)
	j.metrics.LastSweepAt = j.now()
	j.metrics.mu.Unlock()

	j.logger.Debug().Int("removed", removed).Msg("cache sweep completed")
	return removed
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRefresh += int64(result.Refreshed)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		TotalSweeps:         j.metrics.TotalSweeps,
		SweptEntries:        j.metrics.SweptEntries,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
		LastSweepAt:         j.metrics.LastSweepAt,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"total_sweeps":          m.TotalSweeps,
		"swept_entries":         m.SweptEntries,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
		"last_sweep_at":         m.LastSweepAt,
	}
}
