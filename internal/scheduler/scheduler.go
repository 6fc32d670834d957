// Package scheduler triggers engine runs on a fixed interval in serve mode.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/statusroll/internal/engine"
)

// Runner performs one orchestrated run.
type Runner interface {
	Run(ctx context.Context) (engine.Report, error)
}

// Scheduler runs its Runner immediately and then every interval, always on
// the same goroutine, so runs never overlap.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	onReport func(engine.Report, error)
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// SetOnReport sets the callback invoked after each run, successful or not.
func (s *Scheduler) SetOnReport(fn func(engine.Report, error)) {
	s.onReport = fn
}

// Start launches the run loop. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the run loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately.
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rep, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled run failed", "run_id", rep.RunID, "error", err)
	}
	if s.onReport != nil {
		s.onReport(rep, err)
	}
}
