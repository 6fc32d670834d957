package checker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazz-dev/statusroll/internal/probe"
)

// Runner executes every probe of a run concurrently and joins on all of them.
type Runner struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner creates a Runner. A nil factory uses New; concurrency <= 0 starts
// one goroutine per probe. Pass nil logger to use the default logger.
func NewRunner(factory Factory, concurrency int, logger *slog.Logger) *Runner {
	if factory == nil {
		factory = New
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		factory:     factory,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock replaces the clock used to stamp entries and returns r.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run checks every spec and returns once each has a terminal outcome. A failing
// or panicking probe never stops the others.
func (r *Runner) Run(ctx context.Context, specs []probe.Spec) Entry {
	entry := Entry{
		Timestamp: r.now().UTC(),
		Results:   make(map[string]CheckResult, len(specs)),
	}

	// Each goroutine owns one slot, so the slice needs no locking.
	results := make([]CheckResult, len(specs))

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, spec := range specs {
		g.Go(func() error {
			results[i] = r.check(ctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	for i, spec := range specs {
		entry.Results[spec.ID] = results[i]
	}
	return entry
}

func (r *Runner) check(ctx context.Context, spec probe.Spec) (result CheckResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("probe panicked", "probe", spec.ID, "panic", p)
			result = CheckResult{
				ProbeID:        spec.ID,
				Status:         StatusDown,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				Error:          fmt.Sprintf("panic: %v", p),
				CheckedAt:      start.UTC(),
			}
		}
	}()

	result = r.factory(spec).Check(ctx)
	result.ProbeID = spec.ID
	if result.StatusCode == 0 || !result.Status.Valid() {
		result.Status = StatusDown
	}
	if result.ResponseTimeMs < 0 {
		result.ResponseTimeMs = 0
	}

	r.logger.Debug("check result",
		"probe", spec.ID,
		"status", result.Status,
		"status_code", result.StatusCode,
		"response_ms", result.ResponseTimeMs,
		"error", result.Error,
	)
	return result
}
