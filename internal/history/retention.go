package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"
)

// Retention deletes records past the retention window and compacts yesterday's.
type Retention struct {
	store  Store
	days   int
	logger *slog.Logger
}

// RetentionResult describes what a pass changed.
type RetentionResult struct {
	Deleted   []string `json:"deleted,omitempty"`
	Compacted string   `json:"compacted,omitempty"`
}

// NewRetention creates a Retention keeping days days of records. Pass nil
// logger to use the default logger.
func NewRetention(store Store, days int, logger *slog.Logger) *Retention {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{store: store, days: days, logger: logger}
}

// Enforce deletes every record dated more than the window before today and
// clears yesterday's raw entries. Running it again on the same state changes
// nothing. Per-date failures are collected and returned together.
func (r *Retention) Enforce(ctx context.Context, today time.Time) (RetentionResult, error) {
	var res RetentionResult

	dates, err := r.store.Dates(ctx)
	if err != nil {
		return res, fmt.Errorf("listing daily records: %w", err)
	}

	day := truncateDay(today)
	yesterday := DateKey(day.AddDate(0, 0, -1))

	var errs error
	for _, date := range dates {
		t, err := time.Parse(DateLayout, date)
		if err != nil {
			r.logger.Warn("skipping record with invalid date", "date", date)
			continue
		}
		if ageDays(t, day) > r.days {
			if err := r.store.Delete(ctx, date); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("deleting %s: %w", date, err))
				continue
			}
			r.logger.Info("daily record deleted", "date", date)
			res.Deleted = append(res.Deleted, date)
		}
	}

	compacted, err := r.compact(ctx, yesterday)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if compacted {
		res.Compacted = yesterday
	}

	return res, errs
}

func (r *Retention) compact(ctx context.Context, date string) (bool, error) {
	rec, err := r.store.Load(ctx, date)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if errors.Is(err, ErrCorrupt) {
		// Left in place until it ages out of the window.
		r.logger.Warn("skipping compaction of unreadable record", "date", date, "error", err)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading %s for compaction: %w", date, err)
	}
	if !rec.Compact() {
		return false, nil
	}
	if err := r.store.Save(ctx, rec); err != nil {
		return false, fmt.Errorf("saving compacted %s: %w", date, err)
	}
	r.logger.Info("daily record compacted", "date", date)
	return true, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ageDays counts whole calendar days from date to today.
func ageDays(date, today time.Time) int {
	return int(today.Sub(date).Hours() / 24)
}
