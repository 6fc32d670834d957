package history_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/hazz-dev/statusroll/internal/checker"
	"github.com/hazz-dev/statusroll/internal/history"
)

func entryAt(ts time.Time, results map[string]checker.CheckResult) checker.Entry {
	return checker.Entry{Timestamp: ts, Results: results}
}

func up(ms int64) checker.CheckResult {
	return checker.CheckResult{Status: checker.StatusUp, ResponseTimeMs: ms, StatusCode: 200}
}

func degraded(ms int64) checker.CheckResult {
	return checker.CheckResult{Status: checker.StatusDegraded, ResponseTimeMs: ms, StatusCode: 200}
}

func down(ms int64, code int) checker.CheckResult {
	return checker.CheckResult{Status: checker.StatusDown, ResponseTimeMs: ms, StatusCode: code}
}

func TestDateKey_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2026, 10, 17, 2, 0, 0, 0, loc) // 2026-10-16 21:00 UTC
	if got := history.DateKey(ts); got != "2026-10-16" {
		t.Errorf("expected 2026-10-16, got %q", got)
	}
}

func TestApply_FirstEntryInitialisesSummary(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-17")
	rec.Apply(entryAt(time.Now(), map[string]checker.CheckResult{"api": up(120)}))

	s := rec.Summary["api"]
	if s.TotalChecks != 1 || s.UpChecks != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.UptimePercent != 100 {
		t.Errorf("expected 100%% uptime, got %v", s.UptimePercent)
	}
	if s.AvgResponseTimeMs != 120 || s.P95ResponseTimeMs != 120 {
		t.Errorf("unexpected latency stats: %+v", s)
	}
	if len(rec.Entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(rec.Entries))
	}
}

func TestApply_DegradedCountsAsAvailable(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-17")
	now := time.Now()
	rec.Apply(entryAt(now, map[string]checker.CheckResult{"api": up(100)}))
	rec.Apply(entryAt(now, map[string]checker.CheckResult{"api": degraded(6000)}))
	rec.Apply(entryAt(now, map[string]checker.CheckResult{"api": down(0, 0)}))

	s := rec.Summary["api"]
	if s.UpChecks != 1 || s.DegradedChecks != 1 || s.DownChecks != 1 || s.TotalChecks != 3 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.UptimePercent != 66.67 {
		t.Errorf("expected 66.67%% uptime, got %v", s.UptimePercent)
	}
}

func TestApply_LatencyExcludesZeroSamples(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-17")
	now := time.Now()
	rec.Apply(entryAt(now, map[string]checker.CheckResult{"api": up(100)}))
	rec.Apply(entryAt(now, map[string]checker.CheckResult{"api": down(0, 0)}))
	rec.Apply(entryAt(now, map[string]checker.CheckResult{"api": up(101)}))

	s := rec.Summary["api"]
	if s.AvgResponseTimeMs != 101 {
		// (100+101)/2 = 100.5 rounds to 101
		t.Errorf("expected avg 101, got %d", s.AvgResponseTimeMs)
	}
	if s.DownChecks != 1 {
		t.Errorf("expected the timeout to count as down, got %+v", s)
	}
}

func TestApply_NoPositiveSamplesLeavesLatencyUnchanged(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-17")
	rec.Apply(entryAt(time.Now(), map[string]checker.CheckResult{"api": down(0, 0)}))

	s := rec.Summary["api"]
	if s.AvgResponseTimeMs != 0 || s.P95ResponseTimeMs != 0 {
		t.Errorf("expected latency stats to stay 0, got %+v", s)
	}
	if s.UptimePercent != 0 {
		t.Errorf("expected 0%% uptime, got %v", s.UptimePercent)
	}
}

func TestApply_P95Scenario(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-17")
	for _, ms := range []int64{100, 120, 110, 500, 105} {
		rec.Apply(entryAt(time.Now(), map[string]checker.CheckResult{"api": up(ms)}))
	}
	s := rec.Summary["api"]
	if s.P95ResponseTimeMs != 500 {
		t.Errorf("expected p95 500, got %d", s.P95ResponseTimeMs)
	}
	if s.AvgResponseTimeMs != 187 {
		t.Errorf("expected avg 187, got %d", s.AvgResponseTimeMs)
	}
}

func TestApply_ProbesAreIndependent(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-17")
	rec.Apply(entryAt(time.Now(), map[string]checker.CheckResult{"a": up(10), "b": down(30, 500)}))
	rec.Apply(entryAt(time.Now(), map[string]checker.CheckResult{"a": up(20)}))

	if rec.Summary["a"].TotalChecks != 2 {
		t.Errorf("expected a total 2, got %d", rec.Summary["a"].TotalChecks)
	}
	if rec.Summary["b"].TotalChecks != 1 {
		t.Errorf("expected b total 1, got %d", rec.Summary["b"].TotalChecks)
	}
	if rec.Summary["b"].AvgResponseTimeMs != 30 {
		t.Errorf("expected b avg 30, got %d", rec.Summary["b"].AvgResponseTimeMs)
	}
}

func TestPercentile95(t *testing.T) {
	tests := []struct {
		name    string
		samples []int64
		want    int64
	}{
		{"empty", nil, 0},
		{"single", []int64{42}, 42},
		{"five", []int64{100, 120, 110, 500, 105}, 500},
		{"twenty", []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, 19},
		{"unsorted input untouched", []int64{3, 1, 2}, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := append([]int64(nil), tc.samples...)
			if got := history.Percentile95(tc.samples); got != tc.want {
				t.Errorf("Percentile95(%v) = %d, want %d", tc.samples, got, tc.want)
			}
			for i := range in {
				if in[i] != tc.samples[i] {
					t.Fatalf("input was mutated: %v", tc.samples)
				}
			}
		})
	}
}

func TestApply_InvariantsHold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	statuses := []checker.Status{checker.StatusUp, checker.StatusDegraded, checker.StatusDown}
	rec := history.NewDailyRecord("2026-10-17")
	prevTotal := map[string]int{}

	for run := 0; run < 300; run++ {
		results := map[string]checker.CheckResult{}
		for _, id := range []string{"a", "b", "c"} {
			if rng.Intn(4) == 0 {
				continue
			}
			st := statuses[rng.Intn(len(statuses))]
			res := checker.CheckResult{Status: st, StatusCode: 200, ResponseTimeMs: int64(rng.Intn(2000))}
			if st == checker.StatusDown && rng.Intn(2) == 0 {
				res.StatusCode = 0
				res.ResponseTimeMs = 0
			}
			results[id] = res
		}
		rec.Apply(entryAt(time.Now(), results))

		for id, s := range rec.Summary {
			if s.UpChecks+s.DegradedChecks+s.DownChecks != s.TotalChecks {
				t.Fatalf("run %d probe %s: counts do not sum: %+v", run, id, s)
			}
			if s.UptimePercent < 0 || s.UptimePercent > 100 {
				t.Fatalf("run %d probe %s: uptime out of range: %v", run, id, s.UptimePercent)
			}
			if s.TotalChecks < prevTotal[id] {
				t.Fatalf("run %d probe %s: total decreased from %d to %d", run, id, prevTotal[id], s.TotalChecks)
			}
			prevTotal[id] = s.TotalChecks
		}
	}
}

func TestCompact(t *testing.T) {
	rec := history.NewDailyRecord("2026-10-16")
	rec.Apply(entryAt(time.Now(), map[string]checker.CheckResult{"api": up(100)}))
	before := rec.Summary["api"]

	if !rec.Compact() {
		t.Fatal("expected first compaction to report a change")
	}
	if len(rec.Entries) != 0 {
		t.Errorf("expected entries cleared, got %d", len(rec.Entries))
	}
	if rec.Summary["api"] != before {
		t.Errorf("summary changed by compaction: %+v -> %+v", before, rec.Summary["api"])
	}
	if rec.Compact() {
		t.Error("expected second compaction to be a no-op")
	}
}
