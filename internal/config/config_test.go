package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/cctoolstats/internal/jsonl"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if cfg.Format != "table" {
		t.Errorf("Format = %q, want %q", cfg.Format, "table")
	}
	if cfg.Color != ColorAuto {
		t.Errorf("Color = %q, want %q", cfg.Color, ColorAuto)
	}
	if cfg.MaxLineSize != jsonl.DefaultMaxLineSize {
		t.Errorf("MaxLineSize = %d, want %d", cfg.MaxLineSize, jsonl.DefaultMaxLineSize)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, DefaultConcurrency)
	}
	if cfg.Watch.Debounce != DefaultWatchDebounce {
		t.Errorf("Watch.Debounce = %v, want %v", cfg.Watch.Debounce, DefaultWatchDebounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestConfigPath(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME set", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tmpDir)

		path := ConfigPath()
		expected := filepath.Join(tmpDir, "cctoolstats", "config.yaml")
		if path != expected {
			t.Errorf("ConfigPath() = %q, want %q", path, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		path := ConfigPath()
		if !strings.HasSuffix(path, filepath.Join(".config", "cctoolstats", "config.yaml")) {
			t.Errorf("ConfigPath() should end with .config/cctoolstats/config.yaml, got %q", path)
		}
	})
}

func TestLoadNonExistent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", cfg.Format, DefaultFormat)
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "cctoolstats")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	data := `
format: JSON
verbose: true
color: never
thousand_separator: true
concurrency: 8
exclude_patterns:
  - "agent-*"
watch:
  debounce: 2s
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(data), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if !cfg.Verbose || !cfg.ThousandSeparator {
		t.Errorf("Verbose/ThousandSeparator = %v/%v, want true/true", cfg.Verbose, cfg.ThousandSeparator)
	}
	if cfg.Color != ColorNever {
		t.Errorf("Color = %q, want never", cfg.Color)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want 8", cfg.Concurrency)
	}
	if cfg.MaxLineSize != jsonl.DefaultMaxLineSize {
		t.Errorf("MaxLineSize = %d, want default", cfg.MaxLineSize)
	}
	if len(cfg.ExcludePatterns) != 1 || cfg.ExcludePatterns[0] != "agent-*" {
		t.Errorf("ExcludePatterns = %v", cfg.ExcludePatterns)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("Watch.Debounce = %v, want 2s", cfg.Watch.Debounce)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("format: [unclosed"), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should fail for invalid YAML")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"format", "format: xml\n", "invalid format 'xml'. Valid formats are: table, json, csv, sqlite"},
		{"color", "color: rainbow\n", `invalid color "rainbow"`},
		{"pattern", "include_patterns: ['[']\n", `invalid pattern "["`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.data), 0600); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			_, err := LoadFrom(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("LoadFrom() error = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestValidateFormat(t *testing.T) {
	for _, f := range Formats {
		if err := ValidateFormat(f); err != nil {
			t.Errorf("ValidateFormat(%q) = %v", f, err)
		}
	}
	err := ValidateFormat("xml")
	if err == nil || err.Error() != "invalid format 'xml'. Valid formats are: table, json, csv, sqlite" {
		t.Errorf("ValidateFormat(xml) = %v", err)
	}
}

func TestSaveRoundtrip(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	original := DefaultConfig()
	original.Format = "csv"
	original.IncludePatterns = []string{"*.jsonl"}
	original.Watch.Debounce = 750 * time.Millisecond

	if err := original.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(ConfigPath() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after Save()")
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Format != "csv" {
		t.Errorf("Format = %q, want csv", loaded.Format)
	}
	if len(loaded.IncludePatterns) != 1 || loaded.IncludePatterns[0] != "*.jsonl" {
		t.Errorf("IncludePatterns = %v", loaded.IncludePatterns)
	}
	if loaded.Watch.Debounce != 750*time.Millisecond {
		t.Errorf("Watch.Debounce = %v, want 750ms", loaded.Watch.Debounce)
	}
}
