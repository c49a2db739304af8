package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sithafal/sithafal/internal/safefile"
)

// Config is the top-level sithafal configuration.
type Config struct {
	Version       string              `yaml:"version"`
	Server        ServerConfig        `yaml:"server"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Quarantine    QuarantineConfig    `yaml:"quarantine"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Bind     string `yaml:"bind"` // default 127.0.0.1
	LogLevel string `yaml:"log_level"`
}

// DashboardConfig controls the dashboard page and its charts.
type DashboardConfig struct {
	Theme       string            `yaml:"theme"`        // light or dark
	AnimationMS int               `yaml:"animation_ms"` // base chart animation
	RefreshSecs int               `yaml:"refresh_seconds"`
	DriftSecs   int               `yaml:"drift_seconds"` // 0 disables live drift
	ChartColors map[string]string `yaml:"chart_colors,omitempty"`
	LoginRate   float64           `yaml:"login_rate"` // login attempts per second per IP
	LoginBurst  int               `yaml:"login_burst"`
	AccessCode  string            `yaml:"access_code,omitempty"` // fixed code instead of a random one
}

// QuarantineConfig controls where rows come from and how the table behaves.
type QuarantineConfig struct {
	Source           string `yaml:"source"`     // builtin, *.yaml, sqlite:<path>, postgres://...
	ToggleAll        string `yaml:"toggle_all"` // all or visible
	SearchDebounceMS int    `yaml:"search_debounce_ms"`
	Watch            bool   `yaml:"watch"` // reload YAML sources on change
}

// NotificationsConfig controls notification pop-ups.
type NotificationsConfig struct {
	DismissAfterMS int         `yaml:"dismiss_after_ms"`
	Redis          RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig enables fan-out of notifications over Redis pub/sub.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// TelemetryConfig toggles metrics and tracing.
type TelemetryConfig struct {
	Metrics bool   `yaml:"metrics"`
	Tracing bool   `yaml:"tracing"`
	TraceTo string `yaml:"trace_to,omitempty"` // file path; empty means stderr
}

// Load reads and parses a sithafal config file.
func Load(path string) (*Config, error) {
	data, err := safefile.ReadFile(path, safefile.MaxFixtureBytes)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply zero-value defaults after unmarshal
	d := Defaults()
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = d.Server.LogLevel
	}
	if cfg.Dashboard.Theme == "" {
		cfg.Dashboard.Theme = d.Dashboard.Theme
	}
	if cfg.Quarantine.Source == "" {
		cfg.Quarantine.Source = d.Quarantine.Source
	}
	if cfg.Quarantine.ToggleAll == "" {
		cfg.Quarantine.ToggleAll = d.Quarantine.ToggleAll
	}
	if cfg.Quarantine.SearchDebounceMS == 0 {
		cfg.Quarantine.SearchDebounceMS = d.Quarantine.SearchDebounceMS
	}
	if cfg.Notifications.DismissAfterMS == 0 {
		cfg.Notifications.DismissAfterMS = d.Notifications.DismissAfterMS
	}
	if cfg.Dashboard.LoginBurst == 0 {
		cfg.Dashboard.LoginBurst = d.Dashboard.LoginBurst
	}
	if cfg.Dashboard.LoginRate == 0 {
		cfg.Dashboard.LoginRate = d.Dashboard.LoginRate
	}

	return cfg, nil
}

// LoadOrDefaults loads path, falling back to Defaults when the file does
// not exist.
func LoadOrDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}
	return Load(path)
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Dashboard: DashboardConfig{
			Theme:       "light",
			AnimationMS: 1000,
			DriftSecs:   30,
			LoginRate:   0.5,
			LoginBurst:  5,
		},
		Quarantine: QuarantineConfig{
			Source:           "builtin",
			ToggleAll:        "all",
			SearchDebounceMS: 300,
		},
		Notifications: NotificationsConfig{
			DismissAfterMS: 5000,
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
		},
	}
}

// DismissAfter is the notification lifetime.
func (c *Config) DismissAfter() time.Duration {
	return time.Duration(c.Notifications.DismissAfterMS) * time.Millisecond
}

// SearchDebounce is the quiet period before a search query is applied.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.Quarantine.SearchDebounceMS) * time.Millisecond
}

// DriftInterval is the live chart drift period. Zero disables drift.
func (c *Config) DriftInterval() time.Duration {
	return time.Duration(c.Dashboard.DriftSecs) * time.Second
}

// Save writes the config to a YAML file at the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := safefile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that the config is consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.Server.LogLevel)
	}
	switch c.Dashboard.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("invalid theme %q (want light or dark)", c.Dashboard.Theme)
	}
	if c.Dashboard.AnimationMS < 0 {
		return fmt.Errorf("animation_ms must not be negative")
	}
	if c.Dashboard.DriftSecs < 0 || c.Dashboard.RefreshSecs < 0 {
		return fmt.Errorf("drift_seconds and refresh_seconds must not be negative")
	}
	if c.Dashboard.LoginRate <= 0 || c.Dashboard.LoginBurst < 1 {
		return fmt.Errorf("login_rate must be positive and login_burst at least 1")
	}
	if code := c.Dashboard.AccessCode; code != "" && len(code) < 6 {
		return fmt.Errorf("access_code must be at least 6 characters")
	}
	switch c.Quarantine.ToggleAll {
	case "all", "visible":
	default:
		return fmt.Errorf("invalid toggle_all %q (want all or visible)", c.Quarantine.ToggleAll)
	}
	if c.Quarantine.SearchDebounceMS < 0 {
		return fmt.Errorf("search_debounce_ms must not be negative")
	}
	if c.Notifications.DismissAfterMS < 1 {
		return fmt.Errorf("dismiss_after_ms must be positive")
	}
	if c.Notifications.Redis.DB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}
	return nil
}
