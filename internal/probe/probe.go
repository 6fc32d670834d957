// Package probe turns the declarative configuration into a flat list of
// concrete probe specifications. It performs no I/O.
package probe

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hazz-dev/statusroll/internal/config"
)

// Kind tells internal components apart from external dependencies.
type Kind string

const (
	KindComponent  Kind = "component"
	KindDependency Kind = "dependency"
)

// Validation is an optional body check. The zero value means no validation.
type Validation struct {
	Field string
	Value string
}

// Enabled reports whether a field check is configured.
func (v Validation) Enabled() bool {
	return v.Field != ""
}

// Spec is one resolved probe. It is immutable for the duration of a run.
type Spec struct {
	ID             string
	Name           string
	Group          string
	Kind           Kind
	URL            string
	Timeout        time.Duration
	ExpectedStatus []int
	Validation     Validation
}

// Accepts reports whether code is in the probe's accepted set.
func (s Spec) Accepts(code int) bool {
	return slices.Contains(s.ExpectedStatus, code)
}

// ConfigError reports a configuration problem found while resolving probes.
type ConfigError struct {
	ProbeID string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("probe %q: %s", e.ProbeID, e.Reason)
}

// Resolve flattens groups (in order) followed by dependencies into probe specs.
// Probe ids must be unique across the whole list.
func Resolve(cfg *config.Config) ([]Spec, error) {
	var specs []Spec
	seen := make(map[string]bool)

	add := func(s Spec) error {
		if seen[s.ID] {
			return &ConfigError{ProbeID: s.ID, Reason: "duplicate probe id"}
		}
		seen[s.ID] = true
		specs = append(specs, s)
		return nil
	}

	for _, g := range cfg.Groups {
		for _, c := range g.Components {
			target, err := componentURL(cfg, c)
			if err != nil {
				return nil, &ConfigError{ProbeID: c.ID, Reason: err.Error()}
			}
			spec := Spec{
				ID:             c.ID,
				Name:           c.Name,
				Group:          g.ID,
				Kind:           KindComponent,
				URL:            target,
				Timeout:        timeoutFor(cfg, c.Timeout),
				ExpectedStatus: expectedStatus(c.ExpectedStatus),
			}
			if c.Validate != nil {
				spec.Validation = Validation{Field: c.Validate.Field, Value: c.Validate.Value}
			}
			if err := add(spec); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range cfg.Dependencies {
		err := add(Spec{
			ID:             d.ID,
			Name:           d.Name,
			Kind:           KindDependency,
			URL:            d.URL,
			Timeout:        timeoutFor(cfg, d.Timeout),
			ExpectedStatus: []int{http.StatusOK},
		})
		if err != nil {
			return nil, err
		}
	}

	if len(specs) == 0 {
		return nil, &ConfigError{Reason: "no probes configured"}
	}
	return specs, nil
}

// componentURL returns the direct url, or joins the endpoint onto the base URL
// and appends the query parameters.
func componentURL(cfg *config.Config, c config.Component) (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %w", err)
	}
	u := base.JoinPath(strings.TrimPrefix(c.Endpoint, "/"))

	q := u.Query()
	for k, v := range c.Params {
		q.Set(k, v)
	}
	if c.UseCoordinates {
		if !q.Has("lat") {
			q.Set("lat", strconv.FormatFloat(cfg.TestLat, 'f', -1, 64))
		}
		if !q.Has("lon") {
			q.Set("lon", strconv.FormatFloat(cfg.TestLon, 'f', -1, 64))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// timeoutFor falls back to the configured default and then to the built-in one.
func timeoutFor(cfg *config.Config, d config.Duration) time.Duration {
	if d.Duration > 0 {
		return d.Duration
	}
	if cfg.DefaultTimeout.Duration > 0 {
		return cfg.DefaultTimeout.Duration
	}
	return config.DefaultTimeout
}

func expectedStatus(codes []int) []int {
	if len(codes) == 0 {
		return []int{http.StatusOK}
	}
	return slices.Clone(codes)
}
