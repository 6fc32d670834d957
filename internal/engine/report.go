package engine

import (
	"encoding/json"
	"time"

	"github.com/hazz-dev/statusroll/internal/checker"
	"github.com/hazz-dev/statusroll/internal/history"
	"github.com/hazz-dev/statusroll/internal/probe"
)

// ProbeResult is one probe's outcome within a Report.
type ProbeResult struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Group          string         `json:"group,omitempty"`
	Kind           probe.Kind     `json:"kind"`
	Status         checker.Status `json:"status"`
	StatusCode     int            `json:"statusCode"`
	ResponseTimeMs int64          `json:"responseTimeMs"`
	Error          string         `json:"error,omitempty"`
}

// Report summarises one run.
type Report struct {
	RunID     string                  `json:"runId"`
	Date      string                  `json:"date"`
	Timestamp time.Time               `json:"timestamp"`
	Total     int                     `json:"total"`
	Up        int                     `json:"up"`
	Degraded  int                     `json:"degraded"`
	Down      int                     `json:"down"`
	Duration  time.Duration           `json:"-"`
	Results   []ProbeResult           `json:"results"`
	Retention history.RetentionResult `json:"retention"`
}

// MarshalJSON renders Duration in milliseconds.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		DurationMs int64 `json:"durationMs"`
	}{plain(r), r.Duration.Milliseconds()})
}

// Healthy reports whether no probe was down.
func (r Report) Healthy() bool {
	return r.Down == 0
}

func newReport(runID, date string, specs []probe.Spec, entry checker.Entry) Report {
	rep := Report{
		RunID:     runID,
		Date:      date,
		Timestamp: entry.Timestamp,
		Total:     len(entry.Results),
		Results:   make([]ProbeResult, 0, len(specs)),
	}
	rep.Up, rep.Degraded, rep.Down = entry.Counts()

	// Keep configuration order rather than map order.
	for _, s := range specs {
		res, ok := entry.Results[s.ID]
		if !ok {
			continue
		}
		rep.Results = append(rep.Results, ProbeResult{
			ID:             s.ID,
			Name:           s.Name,
			Group:          s.Group,
			Kind:           s.Kind,
			Status:         res.Status,
			StatusCode:     res.StatusCode,
			ResponseTimeMs: res.ResponseTimeMs,
			Error:          res.Error,
		})
	}
	return rep
}
