// Package storage provides the history.Store backends: a gocloud blob bucket
// (local directory, memory or any linked cloud driver) and SQLite.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazz-dev/statusroll/internal/history"
)

const sqliteScheme = "sqlite://"

// Open returns the store addressed by rawURL.
//
//	sqlite://path/to/history.db   SQLite database file (sqlite://:memory: for tests)
//	file:///var/lib/statusroll    one JSON file per day in a directory
//	mem://                        in-memory bucket
//
// Other schemes are handed to gocloud.dev/blob and work when the driver is linked.
func Open(ctx context.Context, rawURL string) (history.Store, error) {
	if path, ok := strings.CutPrefix(rawURL, sqliteScheme); ok {
		if path == "" {
			return nil, fmt.Errorf("storage url %q: missing database path", rawURL)
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		return OpenSQLite(path)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing storage url %q: %w", rawURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("storage url %q: missing scheme", rawURL)
	}
	// fileblob refuses to open a directory that does not exist yet.
	if u.Scheme == "file" {
		if err := os.MkdirAll(filepath.FromSlash(u.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return OpenBlob(ctx, rawURL)
}
