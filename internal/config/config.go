// Package config loads the demo host's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/livefir/blaze/errs"
)

const (
	// ConfigFileName is the name looked up when no path is given
	ConfigFileName = "blazedemo.yaml"

	defaultDatabasePath = "blazedemo.db"
	defaultCollection   = "posts"
	defaultSeed         = 12
)

// Config is the demo host configuration.
type Config struct {
	Database Database `yaml:"database"`

	// Collection is the document collection the feed publishes.
	Collection string `yaml:"collection" validate:"required,printascii,max=64"`

	// Seed is how many fake posts to insert into an empty collection.
	Seed int `yaml:"seed" validate:"gte=0,lte=1000"`

	// Minify runs rendered markup through the HTML minifier.
	Minify bool `yaml:"minify,omitempty"`

	// Debug logs view lifecycle events.
	Debug bool `yaml:"debug,omitempty"`
}

// Database locates the SQLite file.
type Database struct {
	Path string `yaml:"path" validate:"required"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		Database:   Database{Path: defaultDatabasePath},
		Collection: defaultCollection,
		Seed:       defaultSeed,
	}
}

// LoadConfig reads the configuration at path. A missing file yields the
// default config; fields absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigFileName
	}

	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes config to path as YAML, creating parent directories.
func SaveConfig(path string, config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return errs.Validate("config.Validate", c)
}
