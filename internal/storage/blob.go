package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/hazz-dev/statusroll/internal/history"
)

const (
	recordSuffix     = ".json"
	quarantineSuffix = ".corrupt.json"
)

// BlobStore keeps one JSON document per day in a gocloud bucket, keyed
// YYYY-MM-DD.json. Quarantined content lives next to it as YYYY-MM-DD.corrupt.json.
type BlobStore struct {
	bucket *blob.Bucket
}

var _ history.Store = (*BlobStore)(nil)

// OpenBlob opens the bucket at urlstr, e.g. file:///var/lib/statusroll or mem://.
func OpenBlob(ctx context.Context, urlstr string) (*BlobStore, error) {
	b, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %q: %w", urlstr, err)
	}
	return &BlobStore{bucket: b}, nil
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(b *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: b}
}

func recordKey(date string) string     { return date + recordSuffix }
func quarantineKey(date string) string { return date + quarantineSuffix }

// Load returns the record stored for date.
func (s *BlobStore) Load(ctx context.Context, date string) (*history.DailyRecord, error) {
	data, err := s.bucket.ReadAll(ctx, recordKey(date))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading daily record %s: %w", date, err)
	}
	return decodeRecord(date, data)
}

// Save writes rec. The blob writer only commits the object on a successful
// close, so readers never observe a partial record.
func (s *BlobStore) Save(ctx context.Context, rec *history.DailyRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding daily record %s: %w", rec.Date, err)
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := s.bucket.WriteAll(ctx, recordKey(rec.Date), data, opts); err != nil {
		return fmt.Errorf("writing daily record %s: %w", rec.Date, err)
	}
	return nil
}

// Dates lists stored dates in ascending order. Keys that are not daily
// records are ignored.
func (s *BlobStore) Dates(ctx context.Context) ([]string, error) {
	var dates []string
	it := s.bucket.List(nil)
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing daily records: %w", err)
		}
		if obj.IsDir || strings.HasSuffix(obj.Key, quarantineSuffix) || !strings.HasSuffix(obj.Key, recordSuffix) {
			continue
		}
		date := strings.TrimSuffix(obj.Key, recordSuffix)
		if _, err := time.Parse(history.DateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	slices.Sort(dates)
	return dates, nil
}

// Delete removes the record for date and its quarantined copy.
func (s *BlobStore) Delete(ctx context.Context, date string) error {
	for _, key := range []string{recordKey(date), quarantineKey(date)} {
		err := s.bucket.Delete(ctx, key)
		if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	return nil
}

// Quarantine copies the stored object for date aside. A later quarantine of
// the same date overwrites the earlier copy.
func (s *BlobStore) Quarantine(ctx context.Context, date string) error {
	err := s.bucket.Copy(ctx, quarantineKey(date), recordKey(date), nil)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("quarantining daily record %s: %w", date, err)
	}
	return nil
}

// Quarantined reports whether a quarantined copy exists for date.
func (s *BlobStore) Quarantined(ctx context.Context, date string) (bool, error) {
	return s.bucket.Exists(ctx, quarantineKey(date))
}

// Close closes the bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
