package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazz-dev/statusroll/internal/checker"
)

// Aggregator folds check entries into the daily record of their date.
// It assumes it is the only writer for the duration of a run.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. Pass nil logger to use the default logger.
func NewAggregator(store Store, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, logger: logger}
}

// Record loads the record for date (creating it if needed), applies entry
// and persists the result once.
//
// An unreadable record is quarantined and the day starts over, so a corrupt
// file never blocks recording new checks. If the quarantine copy cannot be
// made the record is left untouched and the error is returned.
func (a *Aggregator) Record(ctx context.Context, date string, entry checker.Entry) (*DailyRecord, error) {
	rec, err := a.store.Load(ctx, date)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		rec = NewDailyRecord(date)
	default:
		a.logger.Warn("daily record unreadable, starting fresh", "date", date, "error", err)
		if qerr := a.store.Quarantine(ctx, date); qerr != nil {
			return nil, fmt.Errorf("quarantining daily record %s: %w", date, qerr)
		}
		rec = NewDailyRecord(date)
	}

	rec.Apply(entry)

	if err := a.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving daily record %s: %w", date, err)
	}
	a.logger.Debug("daily record updated", "date", date, "entries", len(rec.Entries), "probes", len(rec.Summary))
	return rec, nil
}
