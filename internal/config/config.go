// Package config provides configuration management for flashseriesd.
package config

import (
	"encoding/json"
	"os"
)

// Config holds the flashseriesd server configuration.
type Config struct {
	// Server settings
	Addr    string `json:"addr"`
	DataDir string `json:"data_dir"`

	// Logging
	LogLevel string `json:"log_level"`

	// Default pooling settings. The HTTP pool route does not read these:
	// it requires interval, pooling and gap_fill on every request.
	DefaultPoolIntervalSeconds uint64 `json:"default_pool_interval_seconds"`
	DefaultPoolingMethod       string `json:"default_pooling_method"`
	DefaultGapFillMethod       string `json:"default_gap_fill_method"`

	// Archive/retention
	ArchiveAfterRecords int    `json:"archive_after_records"`
	ArchiveDir          string `json:"archive_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:                       ":8080",
		DataDir:                    "data",
		LogLevel:                   "info",
		DefaultPoolIntervalSeconds: 60,
		DefaultPoolingMethod:       "end",
		DefaultGapFillMethod:       "none",
		ArchiveAfterRecords:        1_000_000,
		ArchiveDir:                 "archive",
	}
}

// Load loads configuration from a JSON file, falling back to defaults for
// any field the file doesn't set, and to an all-default Config if path
// doesn't exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
