package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner performs one notification run.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// Scheduler triggers runs on a cron expression. Runs never overlap: a tick
// that fires while the previous run is still going is dropped, not queued.
type Scheduler struct {
	cron   *gocron.Scheduler
	expr   string
	runner Runner
	logger *slog.Logger

	running atomic.Bool
	skipped atomic.Int64
}

// NewScheduler creates a scheduler evaluating expr (standard five-field
// cron) in loc.
func NewScheduler(expr string, loc *time.Location, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   gocron.NewScheduler(loc),
		expr:   expr,
		runner: runner,
		logger: logger,
	}
}

// Start registers the job and starts the scheduler in the background. The
// scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.Cron(s.expr).Do(func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.expr, err)
	}

	s.cron.StartAsync()
	s.logger.Info("Notification scheduler started", "schedule", s.expr)

	go func() {
		<-ctx.Done()
		s.cron.Stop()
		s.logger.Info("Notification scheduler stopped")
	}()
	return nil
}

// RunNow triggers the job immediately, outside the schedule.
func (s *Scheduler) RunNow() {
	s.cron.RunAll()
}

// Skipped reports how many ticks were dropped because a run was in flight.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// NextRun returns the next scheduled fire time.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.cron.NextRun()
	return next
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Warn("Skipping scheduled run, previous run still in progress")
		return
	}
	defer s.running.Store(false)

	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled run failed", "error", err)
		return
	}
	s.logger.Info("Scheduled run complete", "summary", result.Summary(), "next", s.NextRun())
}
