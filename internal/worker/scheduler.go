package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Job tags, usable with Scheduler.RunNow.
const (
	TagRefresh = "observation_refresh"
	TagSweep   = "cache_sweep"
)

// Scheduler runs the refresh job on its interval and the sweep job on the
// sweep interval. Refresh runs once immediately on Start to warm the cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler for job. Call Start to begin.
func NewScheduler(job *RefreshJob, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		job:       job,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the scheduler without blocking.
func (s *Scheduler) Start() error {
	cfg := s.job.Config()

	_, err := s.scheduler.Every(cfg.Interval).Tag(TagRefresh).Do(func() {
		s.job.Run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling refresh: %w", err)
	}

	if cfg.SweepInterval > 0 {
		_, err = s.scheduler.Every(cfg.SweepInterval).Tag(TagSweep).WaitForSchedule().Do(func() {
			s.job.Sweep()
		})
		if err != nil {
			return fmt.Errorf("scheduling sweep: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info().
		Dur("refresh_interval", cfg.Interval).
		Dur("sweep_interval", cfg.SweepInterval).
		Int("locations", len(cfg.Locations)).
		Msg("scheduler started")
	return nil
}

// RunNow triggers the job with the given tag outside its schedule.
func (s *Scheduler) RunNow(tag string) error {
	return s.scheduler.RunByTag(tag)
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info().Msg("scheduler stopped")
}
