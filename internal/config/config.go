// Package config manages cctoolstats configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/cctoolstats/internal/jsonl"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Formats lists the accepted output formats in help order.
var Formats = []string{"table", "json", "csv", "sqlite"}

const (
	DefaultFormat        = "table"
	DefaultConcurrency   = 4
	DefaultWatchDebounce = 500 * time.Millisecond
)

// Config holds user defaults. Command-line flags override any field when set.
type Config struct {
	Format            string      `yaml:"format"`
	Verbose           bool        `yaml:"verbose"`
	Color             string      `yaml:"color"`
	ThousandSeparator bool        `yaml:"thousand_separator"`
	MaxLineSize       int         `yaml:"max_line_size"`
	Concurrency       int         `yaml:"concurrency"`
	IncludePatterns   []string    `yaml:"include_patterns,omitempty"`
	ExcludePatterns   []string    `yaml:"exclude_patterns,omitempty"`
	Watch             WatchConfig `yaml:"watch"`
}

// WatchConfig configures live mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DefaultConfig returns a new config with default values.
func DefaultConfig() *Config {
	return &Config{
		Format:      DefaultFormat,
		Color:       ColorAuto,
		MaxLineSize: jsonl.DefaultMaxLineSize,
		Concurrency: DefaultConcurrency,
		Watch:       WatchConfig{Debounce: DefaultWatchDebounce},
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cctoolstats", "config.yaml")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "cctoolstats", "config.yaml")
	}
	return filepath.Join(homeDir, ".config", "cctoolstats", "config.yaml")
}

// Load reads the config from ConfigPath. A missing file yields defaults.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path. Fields absent from the file keep their
// defaults; zero or negative sizes fall back to defaults too.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	c.Color = strings.ToLower(strings.TrimSpace(c.Color))
	if c.Color == "" {
		c.Color = ColorAuto
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = jsonl.DefaultMaxLineSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = DefaultWatchDebounce
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if err := ValidateFormat(c.Format); err != nil {
		return err
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q: want auto, always or never", c.Color)
	}
	for _, p := range append(append([]string(nil), c.IncludePatterns...), c.ExcludePatterns...) {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

// ValidateFormat checks an output format name.
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format '%s'. Valid formats are: %s", format, strings.Join(Formats, ", "))
}

// Save writes the config to ConfigPath.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config to path atomically.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write tmp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
