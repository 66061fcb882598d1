package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timeline"
	"github.com/sageframe-no-kaji/kanyo-viewer/internal/timezone"
)

// Config represents the complete configuration
type Config struct {
	Env      string                  `yaml:"env"`
	Server   ServerConfig            `yaml:"server"`
	System   SystemConfig            `yaml:"system"`
	Timeline TimelineConfig          `yaml:"timeline"`
	Visitor  VisitorConfig           `yaml:"visitor"`
	Streams  map[string]StreamConfig `yaml:"streams"`
}

// ServerConfig defines HTTP settings
type ServerConfig struct {
	Port        int      `yaml:"port"`
	APIPrefix   string   `yaml:"api_prefix"`
	CORSOrigins []string `yaml:"cors_origins"`
	StaticDir   string   `yaml:"static_dir"` // built frontend, optional
}

// SystemConfig defines logging and tracing settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`
	OTelEndpoint string `yaml:"otel_endpoint"`
}

// TimelineConfig defines the timeline window layout
type TimelineConfig struct {
	WindowHours     int    `yaml:"window_hours"`      // 12 or 24
	MinEventMinutes int    `yaml:"min_event_minutes"` // minimum marker width
	DefaultTimezone string `yaml:"default_timezone"`  // used when a stream's zone is missing or unknown
	SearchDays      int    `yaml:"search_days"`       // how far back to look for a day with events
}

// VisitorConfig defines visitor timezone detection
type VisitorConfig struct {
	Enabled   bool     `yaml:"enabled"` // on unless the file sets false
	Timeout   int      `yaml:"timeout_seconds"`
	Providers []string `yaml:"providers"` // "ipapi" and/or "geojs", tried in order
}

// StreamConfig defines one camera stream
type StreamConfig struct {
	Name            string        `yaml:"name" json:"name"`
	YouTubeID       string        `yaml:"youtube_id" json:"youtube_id"`
	DataPath        string        `yaml:"data_path" json:"-"`
	Timezone        string        `yaml:"timezone" json:"timezone"`
	TelegramChannel string        `yaml:"telegram_channel" json:"telegram_channel,omitempty"`
	Display         DisplayConfig `yaml:"display" json:"display"`
}

// DisplayConfig is presentational metadata passed through to the dashboard
type DisplayConfig struct {
	ShortName       string `yaml:"short_name" json:"short_name,omitempty"`
	Location        string `yaml:"location" json:"location,omitempty"`
	Species         string `yaml:"species" json:"species,omitempty"`
	Maintainer      string `yaml:"maintainer" json:"maintainer,omitempty"`
	TelegramChannel string `yaml:"telegram_channel" json:"telegram_channel,omitempty"`
}

// EnvOverrides are settings the deployment environment may replace
type EnvOverrides struct {
	Env             string `env:"KANYO_ENV"`
	Port            int    `env:"KANYO_PORT"`
	StaticDir       string `env:"KANYO_STATIC_DIR"`
	DefaultTimezone string `env:"KANYO_DEFAULT_TIMEZONE"`
	OTelEndpoint    string `env:"KANYO_OTEL_ENDPOINT"`
}

// Load reads and parses the configuration file, then applies environment
// overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Keys absent from the file keep these values
	cfg := Config{Visitor: VisitorConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overlays KANYO_* environment variables
func (c *Config) ApplyEnv() error {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.Env != "" {
		c.Env = o.Env
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.StaticDir != "" {
		c.Server.StaticDir = o.StaticDir
	}
	if o.DefaultTimezone != "" {
		c.Timeline.DefaultTimezone = o.DefaultTimezone
	}
	if o.OTelEndpoint != "" {
		c.System.OTelEndpoint = o.OTelEndpoint
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Env == "" {
		c.Env = "production"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = "/api"
	}
	if c.Server.CORSOrigins == nil {
		c.Server.CORSOrigins = []string{
			"http://localhost:3000",
			"http://localhost:5173", // Vite dev server
		}
	}
	if c.Timeline.WindowHours == 0 {
		c.Timeline.WindowHours = int(timeline.HalfDay)
	}
	if c.Timeline.MinEventMinutes == 0 {
		c.Timeline.MinEventMinutes = int(timeline.DefaultMinDuration / time.Minute)
	}
	if c.Timeline.DefaultTimezone == "" {
		c.Timeline.DefaultTimezone = "America/New_York"
	}
	if c.Timeline.SearchDays == 0 {
		c.Timeline.SearchDays = 30
	}
	if c.Visitor.Timeout == 0 {
		c.Visitor.Timeout = 2
	}
	if c.Visitor.Providers == nil {
		c.Visitor.Providers = []string{"ipapi", "geojs"}
	}
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if _, err := timeline.ParseSpan(c.Timeline.WindowHours); err != nil {
		return fmt.Errorf("timeline.window_hours: %w", err)
	}

	if c.Timeline.MinEventMinutes <= 0 {
		return fmt.Errorf("timeline.min_event_minutes must be positive")
	}

	if _, err := timezone.Load(c.Timeline.DefaultTimezone); err != nil {
		return fmt.Errorf("timeline.default_timezone: %w", err)
	}

	if len(c.Streams) == 0 {
		return fmt.Errorf("at least one stream must be configured")
	}

	for id, stream := range c.Streams {
		if stream.DataPath == "" {
			return fmt.Errorf("stream %s: data_path is required", id)
		}
		if stream.Timezone != "" {
			if _, err := timezone.Load(stream.Timezone); err != nil {
				return fmt.Errorf("stream %s: %w", id, err)
			}
		}
	}

	for _, p := range c.Visitor.Providers {
		if p != "ipapi" && p != "geojs" {
			return fmt.Errorf("visitor.providers: unknown provider %q", p)
		}
	}

	return nil
}

// Debug reports whether the deployment runs in development mode or with
// debug logging
func (c *Config) Debug() bool {
	return c.Env == "development" || c.System.LogLevel == "debug"
}

// MinEventDuration is the configured minimum marker duration
func (c *Config) MinEventDuration() time.Duration {
	return time.Duration(c.Timeline.MinEventMinutes) * time.Minute
}
