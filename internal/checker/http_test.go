package checker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazz-dev/statusroll/internal/checker"
	"github.com/hazz-dev/statusroll/internal/probe"
)

func makeSpec(t *testing.T, url string, extras ...func(*probe.Spec)) probe.Spec {
	t.Helper()
	spec := probe.Spec{
		ID:             "test-http",
		Name:           "Test",
		Kind:           probe.KindComponent,
		URL:            url,
		Timeout:        5 * time.Second,
		ExpectedStatus: []int{200},
	}
	for _, fn := range extras {
		fn(&spec)
	}
	return spec
}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPChecker_Success(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{}`)

	result := checker.New(makeSpec(t, srv.URL)).Check(context.Background())
	if result.Status != checker.StatusUp {
		t.Errorf("expected StatusUp, got %q: %s", result.Status, result.Error)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected status code 200, got %d", result.StatusCode)
	}
	if result.Error != "" {
		t.Errorf("expected no error, got %q", result.Error)
	}
}

func TestHTTPChecker_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker.New(makeSpec(t, srv.URL)).Check(context.Background())
	if !strings.HasPrefix(gotUA, "statusroll/") {
		t.Errorf("expected statusroll user agent, got %q", gotUA)
	}
}

func TestHTTPChecker_WrongStatus(t *testing.T) {
	srv := jsonServer(t, http.StatusInternalServerError, `{}`)

	result := checker.New(makeSpec(t, srv.URL)).Check(context.Background())
	if result.Status != checker.StatusDown {
		t.Errorf("expected StatusDown, got %q", result.Status)
	}
	if result.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status code to be preserved, got %d", result.StatusCode)
	}
	if result.Error == "" {
		t.Error("expected error message for wrong status code")
	}
}

func TestHTTPChecker_CustomExpectedStatus(t *testing.T) {
	srv := jsonServer(t, http.StatusNoContent, ``)

	spec := makeSpec(t, srv.URL, func(s *probe.Spec) {
		s.ExpectedStatus = []int{200, http.StatusNoContent}
	})
	result := checker.New(spec).Check(context.Background())
	if result.Status != checker.StatusUp {
		t.Errorf("expected StatusUp for 204, got %q: %s", result.Status, result.Error)
	}
}

func TestHTTPChecker_NetworkError(t *testing.T) {
	// Use a server that we close immediately.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := checker.New(makeSpec(t, url)).Check(context.Background())
	if result.Status != checker.StatusDown {
		t.Errorf("expected StatusDown, got %q", result.Status)
	}
	if result.StatusCode != 0 {
		t.Errorf("expected status code 0, got %d", result.StatusCode)
	}
	if result.Error == "" {
		t.Error("expected error message for network error")
	}
}

func TestHTTPChecker_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Block until the client gives up.
		<-r.Context().Done()
	}))
	defer srv.Close()

	timeout := 80 * time.Millisecond
	spec := makeSpec(t, srv.URL, func(s *probe.Spec) {
		s.Timeout = timeout
	})

	result := checker.New(spec).Check(context.Background())
	if result.Status != checker.StatusDown {
		t.Errorf("expected StatusDown on timeout, got %q", result.Status)
	}
	if result.StatusCode != 0 {
		t.Errorf("expected status code 0 on timeout, got %d", result.StatusCode)
	}
	if result.ResponseTime() < timeout-10*time.Millisecond {
		t.Errorf("expected elapsed time close to the timeout, got %v", result.ResponseTime())
	}
	if result.ResponseTime() > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", result.ResponseTime())
	}
}

func TestHTTPChecker_SlowResponseIsDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	spec := makeSpec(t, srv.URL, func(s *probe.Spec) {
		s.Timeout = 500 * time.Millisecond
	})
	result := checker.New(spec).Check(context.Background())
	if result.Status != checker.StatusDegraded {
		t.Errorf("expected StatusDegraded, got %q (%dms): %s", result.Status, result.ResponseTimeMs, result.Error)
	}
	if result.ResponseTimeMs < 250 {
		t.Errorf("expected response time >= 250ms, got %d", result.ResponseTimeMs)
	}
}

func TestHTTPChecker_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		field      string
		value      string
		wantStatus checker.Status
	}{
		{"match", `{"ok":"true"}`, "ok", "true", checker.StatusUp},
		{"mismatch", `{"ok":"false"}`, "ok", "true", checker.StatusDown},
		{"missing field", `{"other":"true"}`, "ok", "true", checker.StatusDown},
		{"malformed json", `not json`, "ok", "true", checker.StatusDown},
		{"json array", `["ok"]`, "ok", "true", checker.StatusDown},
		{"boolean is not a string", `{"ok":true}`, "ok", "true", checker.StatusDown},
		{"number is not a string", `{"version":2}`, "version", "2", checker.StatusDown},
		{"null is not a string", `{"ok":null}`, "ok", "", checker.StatusDown},
		{"case sensitive", `{"ok":"True"}`, "ok", "true", checker.StatusDown},
		{"nested object", `{"ok":{"v":1}}`, "ok", "true", checker.StatusDown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := jsonServer(t, http.StatusOK, tc.body)
			spec := makeSpec(t, srv.URL, func(s *probe.Spec) {
				s.Validation = probe.Validation{Field: tc.field, Value: tc.value}
			})

			result := checker.New(spec).Check(context.Background())
			if result.Status != tc.wantStatus {
				t.Errorf("expected %q, got %q: %s", tc.wantStatus, result.Status, result.Error)
			}
			if result.StatusCode != http.StatusOK {
				t.Errorf("expected status code 200 to be preserved, got %d", result.StatusCode)
			}
		})
	}
}

func TestHTTPChecker_ValidationSkippedOnWrongStatus(t *testing.T) {
	srv := jsonServer(t, http.StatusServiceUnavailable, `{"ok":"true"}`)
	spec := makeSpec(t, srv.URL, func(s *probe.Spec) {
		s.Validation = probe.Validation{Field: "ok", Value: "true"}
	})

	result := checker.New(spec).Check(context.Background())
	if result.Status != checker.StatusDown {
		t.Errorf("expected StatusDown, got %q", result.Status)
	}
	if result.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 to be preserved, got %d", result.StatusCode)
	}
}
