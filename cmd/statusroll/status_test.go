package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hazz-dev/statusroll/internal/checker"
	"github.com/hazz-dev/statusroll/internal/history"
)

type mockStatusStore struct {
	records map[string]*history.DailyRecord
	err     error
}

func (m *mockStatusStore) Load(_ context.Context, date string) (*history.DailyRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[date]
	if !ok {
		return nil, history.ErrNotFound
	}
	return rec, nil
}

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func TestExecuteStatus_NoRecord(t *testing.T) {
	var buf bytes.Buffer
	if err := executeStatus(&buf, &mockStatusStore{}, "", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No record for 2026-10-17") {
		t.Errorf("expected 'No record' message, got:\n%s", buf.String())
	}
}

func TestExecuteStatus_WithRecord(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-17")
	rec.Apply(checker.Entry{
		Timestamp: now.Add(-5 * time.Minute),
		Results: map[string]checker.CheckResult{
			"api": {Status: checker.StatusUp, StatusCode: 200, ResponseTimeMs: 42},
			"db":  {Status: checker.StatusDown, Error: "timeout"},
		},
	})
	store := &mockStatusStore{records: map[string]*history.DailyRecord{"2026-10-17": rec}}

	var buf bytes.Buffer
	if err := executeStatus(&buf, store, "", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"api", "db", "100.00%", "0.00%", "42ms", "5 minutes ago"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
	if strings.Index(output, "api") > strings.Index(output, "db") {
		t.Errorf("expected probes sorted by id, got:\n%s", output)
	}
}

func TestExecuteStatus_CompactedDay(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-16")
	rec.Apply(checker.Entry{Timestamp: now.AddDate(0, 0, -1), Results: map[string]checker.CheckResult{
		"api": {Status: checker.StatusUp, StatusCode: 200, ResponseTimeMs: 10},
	}})
	rec.Compact()
	store := &mockStatusStore{records: map[string]*history.DailyRecord{"2026-10-16": rec}}

	var buf bytes.Buffer
	if err := executeStatus(&buf, store, "2026-10-16", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "compacted") {
		t.Errorf("expected compacted marker, got:\n%s", buf.String())
	}
}

func TestExecuteStatus_Errors(t *testing.T) {
	var buf bytes.Buffer
	if err := executeStatus(&buf, &mockStatusStore{}, "17/10/2026", now); err == nil {
		t.Error("expected error for malformed date")
	}
	if err := executeStatus(&buf, &mockStatusStore{err: errors.New("disk")}, "", now); err == nil {
		t.Error("expected store error to propagate")
	}
}
