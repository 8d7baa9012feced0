// Package config provides the flat, JSON-tagged configuration structs
// for the edge agent and the server, loaded with a
// defaults-then-overlay strategy: grounded on
// pkg/uci/config.go's setDefaults/LoadConfig pair (re-expressed over
// plain JSON files rather than UCI, since this system targets no
// OpenWrt config backend) and on
// original_source/cellular_security.py::load_config's
// write-default-if-absent behavior.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MdrnDme/clutch/pkg/detect"
	"github.com/MdrnDme/clutch/pkg/geocode"
	"github.com/MdrnDme/clutch/pkg/mqttpub"
	"github.com/MdrnDme/clutch/pkg/session"
)

// EdgeConfig is the edge agent's full configuration.
type EdgeConfig struct {
	IntervalSeconds int             `json:"interval_seconds"`
	LogLevel        string          `json:"log_level"`
	ReportPath      string          `json:"report_path"`
	ExportPath      string          `json:"export_path"`
	ModelPath       string          `json:"model_path"`
	Detect          detect.Config   `json:"detect"`
	MQTT            mqttpub.Config  `json:"mqtt"`
	Geocode         geocode.Config  `json:"geocode"`
	ServerURL       string          `json:"server_url"`
	ServerAPIKey    string          `json:"server_api_key"`
}

// DefaultEdgeConfig returns the edge agent's zero-config defaults.
func DefaultEdgeConfig() EdgeConfig {
	return EdgeConfig{
		IntervalSeconds: 10,
		LogLevel:        "info",
		ReportPath:      "clutch-edge-report.json",
		ExportPath:      "clutch-edge-export.json",
		ModelPath:       "clutch-anomaly-model.bolt",
		Detect:          detect.DefaultConfig(),
		MQTT:            mqttpub.DefaultConfig(),
		Geocode:         geocode.Config{},
	}
}

// Interval is the configured edge tick interval as a time.Duration.
func (c EdgeConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ServerConfig is the server's full configuration.
type ServerConfig struct {
	LogLevel string         `json:"log_level"`
	DBPath   string         `json:"db_path"`
	Session  session.Config `json:"session"`
}

// DefaultServerConfig returns the server's zero-config defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		LogLevel: "info",
		DBPath:   "clutch-server.db",
		Session:  session.DefaultConfig(),
	}
}

// LoadEdgeConfig reads path, overlaying its JSON contents on top of
// DefaultEdgeConfig. If path does not exist, the defaults are written
// to it and returned, matching the original's write-default-if-absent
// behavior.
func LoadEdgeConfig(path string) (EdgeConfig, error) {
	cfg := DefaultEdgeConfig()
	if err := loadOrCreate(path, &cfg); err != nil {
		return EdgeConfig{}, err
	}
	return cfg, nil
}

// LoadServerConfig reads path, overlaying its JSON contents on top of
// DefaultServerConfig.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := loadOrCreate(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func loadOrCreate(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return save(path, v)
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func save(path string, v interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write defaults to %s: %w", path, err)
	}
	return nil
}
