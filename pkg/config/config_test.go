package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEdgeConfigWritesDefaultsWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edge.json")
	cfg, err := LoadEdgeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IntervalSeconds != 10 {
		t.Fatalf("expected default interval 10, got %d", cfg.IntervalSeconds)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected defaults to be persisted: %v", err)
	}
	var roundTripped EdgeConfig
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatalf("persisted file is not valid JSON: %v", err)
	}
}

func TestLoadEdgeConfigOverlaysExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edge.json")
	if err := os.WriteFile(path, []byte(`{"interval_seconds": 30, "log_level": "debug"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadEdgeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IntervalSeconds != 30 {
		t.Fatalf("expected overridden interval 30, got %d", cfg.IntervalSeconds)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected overridden log level, got %q", cfg.LogLevel)
	}
	// unspecified fields still come from defaults
	if cfg.Detect.MaxPlausibleSpeedKmh != 300 {
		t.Fatalf("expected detector defaults to survive partial overlay, got %v", cfg.Detect.MaxPlausibleSpeedKmh)
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Port != 8443 {
		t.Fatalf("expected default port 8443, got %d", cfg.Session.Port)
	}
	if cfg.DBPath != "clutch-server.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
}
