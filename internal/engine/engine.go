// Package engine runs one full statusroll cycle: resolve probes, check them
// all, fold the results into today's record, enforce retention and report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hazz-dev/statusroll/internal/checker"
	"github.com/hazz-dev/statusroll/internal/config"
	"github.com/hazz-dev/statusroll/internal/events"
	"github.com/hazz-dev/statusroll/internal/history"
	"github.com/hazz-dev/statusroll/internal/probe"
)

// Options holds the optional collaborators of an Engine.
type Options struct {
	Logger    *slog.Logger
	Publisher *events.Publisher
	// Factory builds checkers; nil uses the HTTP checker.
	Factory checker.Factory
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine orchestrates runs against a store. Runs must not overlap; callers
// serialise them (the scheduler does, and the CLI runs once).
type Engine struct {
	mu  sync.RWMutex
	cfg *config.Config

	store     history.Store
	publisher *events.Publisher
	factory   checker.Factory
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Engine for cfg backed by store.
func New(cfg *config.Config, store history.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		publisher: opts.Publisher,
		factory:   opts.Factory,
		logger:    logger,
		now:       now,
	}
}

// Config returns the configuration the next run will use.
func (e *Engine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig swaps the configuration used by subsequent runs. Storage and
// server settings only take effect on restart.
func (e *Engine) SetConfig(cfg *config.Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

// Store returns the engine's history store.
func (e *Engine) Store() history.Store {
	return e.store
}

// Probes resolves the current configuration into probe specs.
func (e *Engine) Probes() ([]probe.Spec, error) {
	return probe.Resolve(e.Config())
}

// Run performs one full cycle. A configuration error returns before any
// probe is contacted. A failure to persist today's record is returned with
// the report of the checks that did run.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	cfg := e.Config()
	specs, err := probe.Resolve(cfg)
	if err != nil {
		return Report{}, fmt.Errorf("resolving probes: %w", err)
	}

	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)
	logger.Info("run started", "probes", len(specs))

	start := e.now()
	entry := e.runner(cfg, logger).Run(ctx, specs)
	date := history.DateKey(entry.Timestamp)
	rep := newReport(runID, date, specs, entry)

	if _, err := history.NewAggregator(e.store, logger).Record(ctx, date, entry); err != nil {
		rep.Duration = e.now().Sub(start)
		logger.Error("recording run", "date", date, "error", err)
		return rep, err
	}

	retained, retErr := history.NewRetention(e.store, cfg.Storage.RetentionDays, logger).Enforce(ctx, e.now())
	if retErr != nil {
		logger.Error("enforcing retention", "error", retErr)
	}
	rep.Retention = retained
	rep.Duration = e.now().Sub(start)

	if err := e.publisher.Publish(ctx, runID, date, rep); err != nil {
		logger.Warn("publishing run report", "error", err)
	}

	logger.Info("run complete",
		"date", date,
		"up", rep.Up,
		"degraded", rep.Degraded,
		"down", rep.Down,
		"duration", rep.Duration,
	)

	if retErr != nil {
		return rep, fmt.Errorf("enforcing retention: %w", retErr)
	}
	return rep, nil
}

// Check runs every probe once without touching the store.
func (e *Engine) Check(ctx context.Context) (Report, error) {
	cfg := e.Config()
	specs, err := probe.Resolve(cfg)
	if err != nil {
		return Report{}, fmt.Errorf("resolving probes: %w", err)
	}
	runID := uuid.NewString()
	start := e.now()
	entry := e.runner(cfg, e.logger.With("run_id", runID)).Run(ctx, specs)
	rep := newReport(runID, history.DateKey(entry.Timestamp), specs, entry)
	rep.Duration = e.now().Sub(start)
	return rep, nil
}

// Prune enforces retention without running any probe.
func (e *Engine) Prune(ctx context.Context) (history.RetentionResult, error) {
	cfg := e.Config()
	return history.NewRetention(e.store, cfg.Storage.RetentionDays, e.logger).Enforce(ctx, e.now())
}

func (e *Engine) runner(cfg *config.Config, logger *slog.Logger) *checker.Runner {
	return checker.NewRunner(e.factory, cfg.Runner.Concurrency, logger).WithClock(e.now)
}
