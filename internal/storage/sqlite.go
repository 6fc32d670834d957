package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazz-dev/statusroll/internal/history"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_records (
    date       TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quarantined_records (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    date           TEXT NOT NULL,
    body           TEXT NOT NULL,
    quarantined_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quarantined_date ON quarantined_records(date);
`

// SQLiteStore keeps one JSON document per day in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ history.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the SQLite database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the record stored for date.
func (s *SQLiteStore) Load(ctx context.Context, date string) (*history.DailyRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM daily_records WHERE date = ?`, date,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying daily record %s: %w", date, err)
	}
	return decodeRecord(date, []byte(body))
}

// Save upserts rec.
func (s *SQLiteStore) Save(ctx context.Context, rec *history.DailyRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding daily record %s: %w", rec.Date, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_records (date, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		rec.Date, string(body), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting daily record %s: %w", rec.Date, err)
	}
	return nil
}

// Dates lists stored dates in ascending order.
func (s *SQLiteStore) Dates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM daily_records ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning date row: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating date rows: %w", err)
	}
	return dates, nil
}

// Delete removes the record for date and its quarantined copies.
func (s *SQLiteStore) Delete(ctx context.Context, date string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete of %s: %w", date, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_records WHERE date = ?`, date); err != nil {
		return fmt.Errorf("deleting daily record %s: %w", date, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quarantined_records WHERE date = ?`, date); err != nil {
		return fmt.Errorf("deleting quarantined %s: %w", date, err)
	}
	return tx.Commit()
}

// Quarantine copies the stored body for date into quarantined_records.
func (s *SQLiteStore) Quarantine(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quarantined_records (date, body, quarantined_at)
		SELECT date, body, ? FROM daily_records WHERE date = ?`,
		s.now().UTC().Format(time.RFC3339Nano), date,
	)
	if err != nil {
		return fmt.Errorf("quarantining daily record %s: %w", date, err)
	}
	return nil
}

// QuarantinedCount returns how many quarantined copies exist for date.
func (s *SQLiteStore) QuarantinedCount(ctx context.Context, date string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quarantined_records WHERE date = ?`, date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting quarantined %s: %w", date, err)
	}
	return n, nil
}

func decodeRecord(date string, data []byte) (*history.DailyRecord, error) {
	var rec history.DailyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", history.ErrCorrupt, date, err)
	}
	if rec.Date == "" {
		rec.Date = date
	}
	if rec.Summary == nil {
		rec.Summary = make(map[string]history.DaySummary)
	}
	return &rec, nil
}
