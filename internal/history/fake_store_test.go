package history_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/hazz-dev/statusroll/internal/history"
)

// fakeStore keeps encoded records in memory so tests can plant corrupt bytes.
type fakeStore struct {
	mu          sync.Mutex
	records     map[string][]byte
	quarantined map[string][]byte

	saves   int
	deletes int
	saveErr error
	quarErr error
	delErr  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:     make(map[string][]byte),
		quarantined: make(map[string][]byte),
		delErr:      make(map[string]error),
	}
}

func (f *fakeStore) put(t testing.TB, rec *history.DailyRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	f.records[rec.Date] = data
	f.mu.Unlock()
}

func (f *fakeStore) Load(_ context.Context, date string) (*history.DailyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.records[date]
	if !ok {
		return nil, history.ErrNotFound
	}
	var rec history.DailyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", history.ErrCorrupt, err)
	}
	return &rec, nil
}

func (f *fakeStore) Save(_ context.Context, rec *history.DailyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f.records[rec.Date] = data
	f.saves++
	return nil
}

func (f *fakeStore) Dates(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.records))
	for d := range f.records {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.delErr[date]; err != nil {
		return err
	}
	if _, ok := f.records[date]; ok {
		f.deletes++
	}
	delete(f.records, date)
	delete(f.quarantined, date)
	return nil
}

func (f *fakeStore) Quarantine(_ context.Context, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quarErr != nil {
		return f.quarErr
	}
	if data, ok := f.records[date]; ok {
		f.quarantined[date] = data
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }
