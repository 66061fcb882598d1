package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
server:
  port: 9000
streams:
  harvard:
    name: Harvard Falcon Cam
    youtube_id: glczTFRRAK4
    data_path: /data/harvard
    timezone: America/New_York
    display:
      short_name: Harvard
      species: Peregrine Falcon
  nsw:
    name: NSW Falcon Cam
    data_path: /data/nsw
    timezone: Australia/Sydney
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streams.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.APIPrefix != "/api" || cfg.Env != "production" {
		t.Errorf("Expected defaults, got prefix=%q env=%q", cfg.Server.APIPrefix, cfg.Env)
	}
	if cfg.Timeline.WindowHours != 12 || cfg.MinEventDuration() != 15*time.Minute {
		t.Errorf("Unexpected timeline defaults: %+v", cfg.Timeline)
	}
	if len(cfg.Streams) != 2 {
		t.Fatalf("Expected 2 streams, got %d", len(cfg.Streams))
	}
	if cfg.Streams["harvard"].Display.Species != "Peregrine Falcon" {
		t.Errorf("Display metadata lost: %+v", cfg.Streams["harvard"])
	}
	if cfg.Debug() {
		t.Error("Production config should not be debug")
	}
	if !cfg.Visitor.Enabled || len(cfg.Visitor.Providers) != 2 {
		t.Errorf("Expected visitor detection on by default, got %+v", cfg.Visitor)
	}
}

func TestLoadVisitorDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "visitor:\n  enabled: false\n"+sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Visitor.Enabled {
		t.Error("Expected visitor detection to stay off when the file disables it")
	}
}

func TestDebug(t *testing.T) {
	tests := []struct {
		env      string
		logLevel string
		want     bool
	}{
		{"production", "info", false},
		{"development", "", true},
		{"production", "debug", true},
	}
	for _, tt := range tests {
		cfg := Config{Env: tt.env, System: SystemConfig{LogLevel: tt.logLevel}}
		if got := cfg.Debug(); got != tt.want {
			t.Errorf("Debug() with env=%q log_level=%q = %v, want %v", tt.env, tt.logLevel, got, tt.want)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KANYO_ENV", "development")
	t.Setenv("KANYO_PORT", "7000")
	t.Setenv("KANYO_DEFAULT_TIMEZONE", "Europe/London")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 || !cfg.Debug() || cfg.Timeline.DefaultTimezone != "Europe/London" {
		t.Errorf("Environment overrides not applied: %+v", cfg)
	}
}

func TestLoadEnvError(t *testing.T) {
	t.Setenv("KANYO_PORT", "not-a-port")

	_, err := Load(writeConfig(t, sampleConfig))
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("Expected parse env error, got %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no streams", "server:\n  port: 80\n", "at least one stream"},
		{"missing data path", "streams:\n  a:\n    name: A\n", "data_path is required"},
		{"bad timezone", "streams:\n  a:\n    data_path: /x\n    timezone: Nowhere/Town\n", "invalid timezone"},
		{"bad window", "timeline:\n  window_hours: 6\nstreams:\n  a:\n    data_path: /x\n", "window_hours"},
		{"bad provider", "visitor:\n  providers: [whois]\nstreams:\n  a:\n    data_path: /x\n", "unknown provider"},
		{"bad yaml", "streams: [", "parsing config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
