package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hazz-dev/statusroll/internal/probe"
	"github.com/hazz-dev/statusroll/internal/version"
)

// maxBodyBytes caps how much of a response body is decoded for validation.
const maxBodyBytes = 1 << 20

type httpChecker struct {
	spec   probe.Spec
	client *http.Client
}

func newHTTPChecker(spec probe.Spec, transport http.RoundTripper) *httpChecker {
	return &httpChecker{
		spec:   spec,
		client: &http.Client{Timeout: spec.Timeout, Transport: transport},
	}
}

func (c *httpChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.spec.Timeout)
	defer cancel()

	result := CheckResult{
		ProbeID:   c.spec.ID,
		CheckedAt: time.Now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.spec.URL, nil)
	if err != nil {
		result.Status = StatusDown
		result.Error = fmt.Sprintf("creating request: %v", err)
		return result
	}
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		result.Status = StatusDown
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	if !c.spec.Accepts(resp.StatusCode) {
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		result.Status = StatusDown
		result.Error = fmt.Sprintf("expected status in %v, got %d", c.spec.ExpectedStatus, resp.StatusCode)
		return result
	}

	if c.spec.Validation.Enabled() {
		err := validateBody(resp.Body, c.spec.Validation)
		if err != nil {
			result.ResponseTimeMs = time.Since(start).Milliseconds()
			result.Status = StatusDown
			result.Error = fmt.Sprintf("validation: %v", err)
			return result
		}
	}

	elapsed := time.Since(start)
	result.ResponseTimeMs = elapsed.Milliseconds()
	result.Status = Classify(elapsed, c.spec.Timeout)
	return result
}

// validateBody decodes r as a JSON object and requires the named field to be
// a JSON string equal to the expected value.
func validateBody(r io.Reader, v probe.Validation) error {
	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(&body); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	raw, ok := body[v.Field]
	if !ok {
		return fmt.Errorf("field %q missing", v.Field)
	}
	got, ok := raw.(string)
	if !ok {
		return fmt.Errorf("field %q is not a string", v.Field)
	}
	if got != v.Value {
		return fmt.Errorf("field %q: expected %q, got %q", v.Field, v.Value, got)
	}
	return nil
}
