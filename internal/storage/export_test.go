package storage

import (
	"context"
	"time"
)

// PutRaw stores body for date as-is so tests can plant unreadable records.
func (s *SQLiteStore) PutRaw(ctx context.Context, date, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_records (date, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET body = excluded.body`,
		date, body, s.now().UTC().Format(time.RFC3339Nano),
	)
	return err
}
