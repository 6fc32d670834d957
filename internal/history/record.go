// Package history keeps the per-day rollup of check results: the aggregator
// folds each run into today's record, retention prunes and compacts old ones.
package history

import (
	"math"
	"slices"
	"time"

	"github.com/hazz-dev/statusroll/internal/checker"
)

// DateLayout is the UTC calendar date used to address daily records.
const DateLayout = "2006-01-02"

// DateKey returns the UTC date string for t.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DaySummary holds one probe's running statistics for a single day.
// UpChecks+DegradedChecks+DownChecks always equals TotalChecks.
type DaySummary struct {
	TotalChecks       int     `json:"totalChecks"`
	UpChecks          int     `json:"upChecks"`
	DegradedChecks    int     `json:"degradedChecks"`
	DownChecks        int     `json:"downChecks"`
	UptimePercent     float64 `json:"uptimePercent"`
	AvgResponseTimeMs int64   `json:"avgResponseTimeMs"`
	P95ResponseTimeMs int64   `json:"p95ResponseTimeMs"`
}

// DailyRecord is the persisted state for one UTC day.
type DailyRecord struct {
	Date    string                `json:"date"`
	Entries []checker.Entry       `json:"entries"`
	Summary map[string]DaySummary `json:"summary"`
}

// NewDailyRecord returns an empty record for date.
func NewDailyRecord(date string) *DailyRecord {
	return &DailyRecord{
		Date:    date,
		Entries: []checker.Entry{},
		Summary: make(map[string]DaySummary),
	}
}

// Apply appends entry and updates the summary of every probe it contains.
func (r *DailyRecord) Apply(entry checker.Entry) {
	if r.Summary == nil {
		r.Summary = make(map[string]DaySummary)
	}
	r.Entries = append(r.Entries, entry)

	for id, res := range entry.Results {
		s, ok := r.Summary[id]
		if !ok {
			s = DaySummary{UptimePercent: 100}
		}

		s.TotalChecks++
		switch res.Status {
		case checker.StatusUp:
			s.UpChecks++
		case checker.StatusDegraded:
			s.DegradedChecks++
		default:
			s.DownChecks++
		}
		// Degraded still counts as available.
		s.UptimePercent = round2(float64(s.UpChecks+s.DegradedChecks) / float64(s.TotalChecks) * 100)

		if samples := r.samples(id); len(samples) > 0 {
			s.AvgResponseTimeMs = mean(samples)
			s.P95ResponseTimeMs = Percentile95(samples)
		}
		r.Summary[id] = s
	}
}

// Compact drops the raw entries and keeps the summaries. It reports whether
// anything changed.
func (r *DailyRecord) Compact() bool {
	if len(r.Entries) == 0 {
		return false
	}
	r.Entries = []checker.Entry{}
	return true
}

// samples collects the strictly positive response times recorded today for id.
func (r *DailyRecord) samples(id string) []int64 {
	var out []int64
	for _, e := range r.Entries {
		res, ok := e.Results[id]
		if ok && res.ResponseTimeMs > 0 {
			out = append(out, res.ResponseTimeMs)
		}
	}
	return out
}

// Percentile95 returns the nearest-rank 95th percentile of samples: the
// element at index ceil(0.95*n)-1 of the sorted values. It returns 0 for no samples.
func Percentile95(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	idx := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	idx = max(idx, 0)
	return sorted[idx]
}

func mean(samples []int64) int64 {
	var sum int64
	for _, s := range samples {
		sum += s
	}
	return int64(math.Round(float64(sum) / float64(len(samples))))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
