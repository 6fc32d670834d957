package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/guregu/null/v5"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultRetentionDays = 90
	DefaultInterval      = 5 * time.Minute
	DefaultAddress       = ":8080"
	DefaultDataDir       = "data"
)

// Duration is a resolved, positive time.Duration. Config files spell it as a
// string like "10s"; Parse converts it so errors can name the probe.
type Duration struct {
	time.Duration
}

// Validation asks for a field of the decoded JSON body to equal Value.
type Validation struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// Component is an internal endpoint probed as part of a group. Exactly one of
// URL or Endpoint is set.
type Component struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Description    null.String       `yaml:"description"`
	URL            string            `yaml:"url"`
	Endpoint       string            `yaml:"endpoint"`
	Params         map[string]string `yaml:"params"`
	UseCoordinates bool              `yaml:"use_coordinates"`
	Timeout        Duration          `yaml:"timeout"`
	ExpectedStatus []int             `yaml:"expected_status"`
	Validate       *Validation       `yaml:"validate"`
}

// Group is a named set of components.
type Group struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description null.String `yaml:"description"`
	Components  []Component `yaml:"components"`
}

// Dependency is an external service; it always expects a plain 200.
type Dependency struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// StorageConfig selects where daily records live.
type StorageConfig struct {
	URL           string `yaml:"url"`
	RetentionDays int    `yaml:"retention_days"`
}

// RunnerConfig tunes the check runner. Concurrency 0 means one goroutine per probe.
type RunnerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ScheduleConfig holds the serve-mode run interval.
type ScheduleConfig struct {
	Interval Duration `yaml:"interval"`
}

// EventsConfig holds the optional run-report topic.
type EventsConfig struct {
	TopicURL string `yaml:"topic_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Config is the root application configuration.
type Config struct {
	BaseURL        string         `yaml:"base_url"`
	TestLat        float64        `yaml:"test_lat"`
	TestLon        float64        `yaml:"test_lon"`
	DefaultTimeout Duration       `yaml:"default_timeout"`
	Groups         []Group        `yaml:"groups"`
	Dependencies   []Dependency   `yaml:"dependencies"`
	Storage        StorageConfig  `yaml:"storage"`
	Runner         RunnerConfig   `yaml:"runner"`
	Server         ServerConfig   `yaml:"server"`
	Schedule       ScheduleConfig `yaml:"schedule"`
	Events         EventsConfig   `yaml:"events"`
	Log            LogConfig      `yaml:"log"`
}

// envOverrides are read from STATUSROLL_* variables after the file is parsed.
type envOverrides struct {
	StorageURL    string `envconfig:"STORAGE_URL"`
	RetentionDays int    `envconfig:"RETENTION_DAYS"`
	LogDir        string `envconfig:"LOG_DIR"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	ServerAddress string `envconfig:"SERVER_ADDRESS"`
	EventsTopic   string `envconfig:"EVENTS_TOPIC"`
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads, parses, and validates the config file at path, then applies
// STATUSROLL_* environment overrides (a .env file in the working directory is
// honoured). A relative default data directory is resolved against the
// directory holding the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	var env envOverrides
	if err := envconfig.Process("statusroll", &env); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.applyOverrides(env); err != nil {
		return nil, err
	}

	if cfg.Storage.URL == "" {
		dir := filepath.Join(filepath.Dir(path), DefaultDataDir)
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving data directory: %w", err)
		}
		cfg.Storage.URL = "file://" + filepath.ToSlash(abs)
	}
	return cfg, nil
}

// Parse decodes and validates a config document. Storage.URL is left empty
// when not configured.
func Parse(data []byte) (*Config, error) {
	// Unmarshal into a raw intermediate so duration errors name the offending probe.
	type rawComponent struct {
		ID             string            `yaml:"id"`
		Name           string            `yaml:"name"`
		Description    null.String       `yaml:"description"`
		URL            string            `yaml:"url"`
		Endpoint       string            `yaml:"endpoint"`
		Params         map[string]string `yaml:"params"`
		UseCoordinates bool              `yaml:"use_coordinates"`
		Timeout        string            `yaml:"timeout"`
		ExpectedStatus []int             `yaml:"expected_status"`
		Validate       *Validation       `yaml:"validate"`
	}
	type rawGroup struct {
		ID          string         `yaml:"id"`
		Name        string         `yaml:"name"`
		Description null.String    `yaml:"description"`
		Components  []rawComponent `yaml:"components"`
	}
	type rawDependency struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	}
	type rawConfig struct {
		BaseURL        string          `yaml:"base_url"`
		TestLat        float64         `yaml:"test_lat"`
		TestLon        float64         `yaml:"test_lon"`
		DefaultTimeout string          `yaml:"default_timeout"`
		Groups         []rawGroup      `yaml:"groups"`
		Dependencies   []rawDependency `yaml:"dependencies"`
		Storage        StorageConfig   `yaml:"storage"`
		Runner         RunnerConfig    `yaml:"runner"`
		Server         ServerConfig    `yaml:"server"`
		Schedule       struct {
			Interval string `yaml:"interval"`
		} `yaml:"schedule"`
		Events EventsConfig `yaml:"events"`
		Log    LogConfig    `yaml:"log"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := &Config{
		BaseURL: raw.BaseURL,
		TestLat: raw.TestLat,
		TestLon: raw.TestLon,
		Storage: raw.Storage,
		Runner:  raw.Runner,
		Server:  raw.Server,
		Events:  raw.Events,
		Log:     raw.Log,
	}

	// Apply defaults.
	var err error
	if cfg.DefaultTimeout, err = parseDuration(raw.DefaultTimeout, DefaultTimeout); err != nil {
		return nil, fmt.Errorf("invalid default_timeout %q: %w", raw.DefaultTimeout, err)
	}
	if cfg.Schedule.Interval, err = parseDuration(raw.Schedule.Interval, DefaultInterval); err != nil {
		return nil, fmt.Errorf("invalid schedule interval %q: %w", raw.Schedule.Interval, err)
	}
	if cfg.Storage.RetentionDays == 0 {
		cfg.Storage.RetentionDays = DefaultRetentionDays
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Storage.RetentionDays < 0 {
		return nil, fmt.Errorf("storage retention_days must not be negative, got %d", cfg.Storage.RetentionDays)
	}
	if cfg.Runner.Concurrency < 0 {
		return nil, fmt.Errorf("runner concurrency must not be negative, got %d", cfg.Runner.Concurrency)
	}
	if !validLevels[cfg.Log.Level] {
		return nil, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	probes := 0
	for gi, rg := range raw.Groups {
		if rg.ID == "" {
			return nil, fmt.Errorf("group[%d]: id is required", gi)
		}
		g := Group{ID: rg.ID, Name: rg.Name, Description: rg.Description}
		if g.Name == "" {
			g.Name = g.ID
		}
		for ci, rc := range rg.Components {
			if rc.ID == "" {
				return nil, fmt.Errorf("group %q: component[%d]: id is required", rg.ID, ci)
			}
			switch {
			case rc.URL == "" && rc.Endpoint == "":
				return nil, fmt.Errorf("component %q: one of url or endpoint is required", rc.ID)
			case rc.URL != "" && rc.Endpoint != "":
				return nil, fmt.Errorf("component %q: url and endpoint are mutually exclusive", rc.ID)
			case rc.URL != "":
				if err := checkAbsoluteURL(rc.URL); err != nil {
					return nil, fmt.Errorf("component %q: invalid url: %w", rc.ID, err)
				}
			case raw.BaseURL == "":
				return nil, fmt.Errorf("component %q: endpoint requires base_url", rc.ID)
			}
			if err := checkStatusCodes(rc.ExpectedStatus); err != nil {
				return nil, fmt.Errorf("component %q: %w", rc.ID, err)
			}
			if rc.Validate != nil && rc.Validate.Field == "" {
				return nil, fmt.Errorf("component %q: validate field is required", rc.ID)
			}

			c := Component{
				ID:             rc.ID,
				Name:           rc.Name,
				Description:    rc.Description,
				URL:            rc.URL,
				Endpoint:       rc.Endpoint,
				Params:         rc.Params,
				UseCoordinates: rc.UseCoordinates,
				ExpectedStatus: rc.ExpectedStatus,
				Validate:       rc.Validate,
			}
			if c.Name == "" {
				c.Name = c.ID
			}
			if c.Timeout, err = parseDuration(rc.Timeout, cfg.DefaultTimeout.Duration); err != nil {
				return nil, fmt.Errorf("component %q: invalid timeout %q: %w", rc.ID, rc.Timeout, err)
			}
			g.Components = append(g.Components, c)
			probes++
		}
		cfg.Groups = append(cfg.Groups, g)
	}

	for di, rd := range raw.Dependencies {
		if rd.ID == "" {
			return nil, fmt.Errorf("dependency[%d]: id is required", di)
		}
		if rd.URL == "" {
			return nil, fmt.Errorf("dependency %q: url is required", rd.ID)
		}
		if err := checkAbsoluteURL(rd.URL); err != nil {
			return nil, fmt.Errorf("dependency %q: invalid url: %w", rd.ID, err)
		}
		d := Dependency{ID: rd.ID, Name: rd.Name, URL: rd.URL}
		if d.Name == "" {
			d.Name = d.ID
		}
		if d.Timeout, err = parseDuration(rd.Timeout, cfg.DefaultTimeout.Duration); err != nil {
			return nil, fmt.Errorf("dependency %q: invalid timeout %q: %w", rd.ID, rd.Timeout, err)
		}
		cfg.Dependencies = append(cfg.Dependencies, d)
		probes++
	}

	if probes == 0 {
		return nil, fmt.Errorf("at least one component or dependency must be configured")
	}
	if raw.BaseURL != "" {
		if err := checkAbsoluteURL(raw.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base_url: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) applyOverrides(env envOverrides) error {
	if env.StorageURL != "" {
		c.Storage.URL = env.StorageURL
	}
	if env.RetentionDays < 0 {
		return fmt.Errorf("STATUSROLL_RETENTION_DAYS must not be negative, got %d", env.RetentionDays)
	}
	if env.RetentionDays > 0 {
		c.Storage.RetentionDays = env.RetentionDays
	}
	if env.LogDir != "" {
		c.Log.Dir = env.LogDir
	}
	if env.LogLevel != "" {
		if !validLevels[env.LogLevel] {
			return fmt.Errorf("invalid STATUSROLL_LOG_LEVEL %q", env.LogLevel)
		}
		c.Log.Level = env.LogLevel
	}
	if env.ServerAddress != "" {
		c.Server.Address = env.ServerAddress
	}
	if env.EventsTopic != "" {
		c.Events.TopicURL = env.EventsTopic
	}
	return nil
}

func parseDuration(s string, def time.Duration) (Duration, error) {
	if s == "" {
		return Duration{def}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Duration{}, err
	}
	if d <= 0 {
		return Duration{}, fmt.Errorf("must be positive")
	}
	return Duration{d}, nil
}

func checkAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func checkStatusCodes(codes []int) error {
	for _, c := range codes {
		if c < 100 || c > 599 {
			return fmt.Errorf("invalid expected status %d", c)
		}
	}
	return nil
}
