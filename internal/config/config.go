// Package config loads the dashboard's JSON configuration file. Every field
// is optional; the Get* accessors supply defaults for anything omitted.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is read when present and no --config flag is given.
const DefaultConfigPath = "vdash.json"

// Defaults
const (
	DefaultSampleDir        = "sample_data"
	DefaultDBPath           = "vdash.db"
	DefaultListenAddr       = ":8080"
	DefaultDurationS        = 300
	DefaultDurationWarnS    = 36000
	DefaultBrakingThreshold = -2.0
	DefaultSeed             = 42
)

// Config is the root configuration. Command-line flags override it.
type Config struct {
	SampleDir        *string  `json:"sample_dir,omitempty"`
	DBPath           *string  `json:"db_path,omitempty"`
	ListenAddr       *string  `json:"listen_addr,omitempty"`
	DefaultDurationS *int     `json:"default_duration_s,omitempty"`
	DurationWarnS    *int     `json:"duration_warn_s,omitempty"` // soft warning only
	BrakingThreshold *float64 `json:"braking_threshold,omitempty"`
	Seed             *uint64  `json:"seed,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or DefaultConfigPath when path is empty. A
// missing default file yields an empty config.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultConfigPath); err != nil {
		return Empty(), nil
	}
	return Load(DefaultConfigPath)
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.SampleDir != nil && strings.TrimSpace(*c.SampleDir) == "" {
		return fmt.Errorf("sample_dir must not be empty")
	}
	if c.DBPath != nil && strings.TrimSpace(*c.DBPath) == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.DefaultDurationS != nil && *c.DefaultDurationS <= 0 {
		return fmt.Errorf("default_duration_s must be positive, got %d", *c.DefaultDurationS)
	}
	if c.DurationWarnS != nil && *c.DurationWarnS <= 0 {
		return fmt.Errorf("duration_warn_s must be positive, got %d", *c.DurationWarnS)
	}
	if c.BrakingThreshold != nil && *c.BrakingThreshold >= 0 {
		return fmt.Errorf("braking_threshold must be negative, got %f", *c.BrakingThreshold)
	}
	return nil
}

// GetSampleDir returns the sample_dir value or the default.
func (c *Config) GetSampleDir() string {
	if c.SampleDir == nil {
		return DefaultSampleDir
	}
	return *c.SampleDir
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetListenAddr returns the listen_addr value or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return *c.ListenAddr
}

func (c *Config) GetDefaultDurationS() int {
	if c.DefaultDurationS == nil {
		return DefaultDurationS
	}
	return *c.DefaultDurationS
}

func (c *Config) GetDurationWarnS() int {
	if c.DurationWarnS == nil {
		return DefaultDurationWarnS
	}
	return *c.DurationWarnS
}

// GetBrakingThreshold returns the braking_threshold value or the default.
func (c *Config) GetBrakingThreshold() float64 {
	if c.BrakingThreshold == nil {
		return DefaultBrakingThreshold
	}
	return *c.BrakingThreshold
}

// GetSeed returns the seed value or the default.
func (c *Config) GetSeed() uint64 {
	if c.Seed == nil {
		return DefaultSeed
	}
	return *c.Seed
}
