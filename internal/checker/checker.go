package checker

import (
	"context"
	"net/http"
	"time"

	"github.com/hazz-dev/statusroll/internal/probe"
)

// Checker performs a single health check.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// Factory builds the Checker for a probe.
type Factory func(probe.Spec) Checker

var defaultTransport = http.DefaultTransport.(*http.Transport).Clone()

// New returns the HTTP Checker for the given probe.
func New(spec probe.Spec) Checker {
	return newHTTPChecker(spec, defaultTransport)
}

// Classify grades a structurally passing probe by latency: anything slower
// than half of the timeout budget is degraded.
func Classify(elapsed, timeout time.Duration) Status {
	if elapsed > timeout/2 {
		return StatusDegraded
	}
	return StatusUp
}
