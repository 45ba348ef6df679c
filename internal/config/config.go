// Package config loads tool configuration for the plugvault CLI from a YAML
// file, applying defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the CLI's persistent settings.
type Config struct {
	// Verify enables signature verification during extraction.
	Verify bool `yaml:"verify"`

	// PublicKey is a trusted minisign public key that overrides any key
	// embedded in a bundle's manifest.
	PublicKey string `yaml:"public_key,omitempty"`

	// Destination is the default extraction directory. Empty means extract
	// into an ephemeral temp directory.
	Destination string `yaml:"destination,omitempty"`

	// Variant is the default build variant to extract.
	Variant string `yaml:"variant,omitempty"`

	// LogLevel controls log verbosity: debug, info, warn, or error.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Verify:   true,
		LogLevel: "info",
	}
}

// DefaultPath returns the conventional config file location under the user
// config dir.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, "plugvault", "config.yaml"), nil
}

// Load reads a config file and merges it over the defaults. A missing file
// is not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values that have a closed set of legal inputs.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
