package history

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Store.Load when no record exists for a date.
	ErrNotFound = errors.New("daily record not found")
	// ErrCorrupt is returned by Store.Load when a stored record cannot be decoded.
	ErrCorrupt = errors.New("daily record corrupt")
)

// Store persists one DailyRecord per UTC date.
type Store interface {
	// Load returns the record for date, ErrNotFound, or an error wrapping ErrCorrupt.
	Load(ctx context.Context, date string) (*DailyRecord, error)
	Save(ctx context.Context, rec *DailyRecord) error
	// Dates lists stored dates in ascending order.
	Dates(ctx context.Context) ([]string, error)
	// Delete removes the record for date and any quarantined copy. Deleting a
	// missing date is not an error.
	Delete(ctx context.Context, date string) error
	// Quarantine sets aside the unreadable content stored for date.
	Quarantine(ctx context.Context, date string) error
	Close() error
}
