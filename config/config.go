// Package config loads the kdtree server settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viant/sqlite-kdtree/gallery"
)

// Config is the top-level server configuration.
type Config struct {
	Addr  string      `yaml:"addr"`
	Log   LogConfig   `yaml:"log"`
	Index IndexConfig `yaml:"index"`
	Sync  SyncConfig  `yaml:"sync"`
}

// LogConfig selects the logrus level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// IndexConfig sizes the in-memory gallery.
type IndexConfig struct {
	Dimension   int `yaml:"dimension"`
	MaxIDLength int `yaml:"max_id_length"`
}

// SyncConfig optionally seeds the gallery from a SQLite shadow table and
// follows its change log. Sync is disabled when Database is empty.
type SyncConfig struct {
	Database    string        `yaml:"database"`
	ShadowTable string        `yaml:"shadow_table"`
	GalleryID   string        `yaml:"gallery_id"`
	Interval    time.Duration `yaml:"interval"`
	BusyTimeout int           `yaml:"busy_timeout_ms"`
}

// Enabled reports whether a database was configured.
func (s SyncConfig) Enabled() bool { return s.Database != "" }

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr: ":8000",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Index: IndexConfig{
			Dimension:   gallery.Dimension,
			MaxIDLength: gallery.MaxIDLength,
		},
		Sync: SyncConfig{
			ShadowTable: "main._kd_faces",
			GalleryID:   "default",
			Interval:    5 * time.Second,
			BusyTimeout: 5000,
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.Index.Dimension <= 0 {
		return fmt.Errorf("index.dimension must be positive, got %d", c.Index.Dimension)
	}
	if c.Index.MaxIDLength < 2 {
		return fmt.Errorf("index.max_id_length must be at least 2, got %d", c.Index.MaxIDLength)
	}
	if c.Sync.Enabled() {
		if c.Sync.ShadowTable == "" || c.Sync.GalleryID == "" {
			return errors.New("sync.shadow_table and sync.gallery_id are required with sync.database")
		}
		if c.Sync.Interval <= 0 {
			return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
		}
	}
	return nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
