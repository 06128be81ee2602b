// Package scheduler runs the report job on a fixed interval or cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JobFunc is the function signature for scheduled jobs
type JobFunc func(ctx context.Context) error

// Config holds scheduler configuration
type Config struct {
	Interval       string         // Duration (e.g. "1h") or cron expression (e.g. "0 6 * * *")
	Timezone       *time.Location // Timezone for cron expressions (default: UTC)
	RunImmediately bool           // Execute once on start before the schedule kicks in
	Logger         *slog.Logger
}

// Scheduler wraps gocron v2
type Scheduler struct {
	gocronScheduler gocron.Scheduler
	job             gocron.Job
	interval        string
	runImmediately  bool
	logger          *slog.Logger
}

// NewScheduler creates a scheduler for the given job
func NewScheduler(ctx context.Context, cfg Config, jobFunc JobFunc) (*Scheduler, error) {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gocronScheduler, err := gocron.NewScheduler(gocron.WithLocation(cfg.Timezone))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	definition, err := jobDefinition(cfg.Interval)
	if err != nil {
		gocronScheduler.Shutdown()
		return nil, err
	}

	s := &Scheduler{
		gocronScheduler: gocronScheduler,
		interval:        cfg.Interval,
		runImmediately:  cfg.RunImmediately,
		logger:          cfg.Logger,
	}

	job, err := gocronScheduler.NewJob(
		definition,
		gocron.NewTask(func() {
			if err := jobFunc(ctx); err != nil {
				s.logger.Error("Job execution failed", "error", err)
			}
		}),
	)
	if err != nil {
		gocronScheduler.Shutdown()
		return nil, fmt.Errorf("failed to create scheduled job: %w", err)
	}
	s.job = job

	return s, nil
}

// jobDefinition maps an interval string to a gocron job definition.
// Five or six space-separated fields mean cron, anything else is a duration.
func jobDefinition(interval string) (gocron.JobDefinition, error) {
	fields := strings.Fields(interval)
	if len(fields) == 5 || len(fields) == 6 {
		return gocron.CronJob(interval, len(fields) == 6), nil
	}

	duration, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("interval must be a duration or cron expression: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	return gocron.DurationJob(duration), nil
}

// Start begins the scheduler, running the job immediately first if configured
func (s *Scheduler) Start() error {
	if s.runImmediately {
		s.logger.Info("Executing job immediately before starting scheduler")
		if err := s.job.RunNow(); err != nil {
			s.logger.Error("Immediate execution failed", "error", err)
		}
	}

	s.gocronScheduler.Start()

	if nextRun, err := s.NextRun(); err == nil {
		s.logger.Info("Scheduler started", "next_run", nextRun.Format(time.RFC3339))
	} else {
		s.logger.Info("Scheduler started")
	}
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.gocronScheduler.Shutdown()
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() (time.Time, error) {
	nextRun, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return nextRun, nil
}

// LastRun returns the last run time
func (s *Scheduler) LastRun() (time.Time, error) {
	lastRun, err := s.job.LastRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last run: %w", err)
	}
	return lastRun, nil
}

// GetExpectedInterval returns the expected gap between executions, used by
// the health checker. Cron schedules may be irregular, so fall back to a
// conservative estimate.
func (s *Scheduler) GetExpectedInterval() (time.Duration, error) {
	if duration, err := time.ParseDuration(s.interval); err == nil {
		return duration, nil
	}
	return 0, fmt.Errorf("cannot derive a fixed interval from cron expression %q", s.interval)
}
