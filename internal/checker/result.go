package checker

import "time"

// Status represents the health state of a probe.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusUp, StatusDegraded, StatusDown:
		return true
	}
	return false
}

// CheckResult is the outcome of a single probe execution.
// StatusCode is 0 when the request never completed, and then Status is always down.
type CheckResult struct {
	ProbeID        string    `json:"-"`
	Status         Status    `json:"status"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	StatusCode     int       `json:"statusCode"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"-"`
}

// ResponseTime returns the measured latency as a duration.
func (r CheckResult) ResponseTime() time.Duration {
	return time.Duration(r.ResponseTimeMs) * time.Millisecond
}

// Entry is the full result set of one run, keyed by probe id.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Results   map[string]CheckResult `json:"results"`
}

// Counts tallies the entry's results by status.
func (e Entry) Counts() (up, degraded, down int) {
	for _, r := range e.Results {
		switch r.Status {
		case StatusUp:
			up++
		case StatusDegraded:
			degraded++
		default:
			down++
		}
	}
	return up, degraded, down
}
