// Package config provides configuration types, defaults and persistence
// for jsonpartial.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/jsonpartial/internal/log"
	"github.com/zjrosen/jsonpartial/internal/tracing"
)

// LocalConfigPath is the project-local config file, checked before the
// user config.
const LocalConfigPath = ".jsonpartial/config.yaml"

// Config holds all configuration options for jsonpartial.
type Config struct {
	PartialsDir            string         `mapstructure:"partials_dir"`
	Manifest               string         `mapstructure:"manifest"`
	Strict                 bool           `mapstructure:"strict"`
	TransitiveInvalidation bool           `mapstructure:"transitive_invalidation"`
	Indent                 string         `mapstructure:"indent"`
	Watch                  WatchConfig    `mapstructure:"watch"`
	Cache                  CacheConfig    `mapstructure:"cache"`
	Tracing                tracing.Config `mapstructure:"tracing"`
}

// WatchConfig holds options for the watch command.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	// Context is the number of unchanged lines shown around each change
	// in the output diff. Negative shows the whole document.
	Context int `mapstructure:"context"`
}

// CacheConfig controls caching of partial file contents.
type CacheConfig struct {
	// TTL is how long file contents are cached. Zero caches until exit.
	TTL time.Duration `mapstructure:"ttl"`
}

// Defaults returns the configuration used when no file sets a value.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		PartialsDir: "",
		Manifest:    "",
		Strict:      true,
		Indent:      "  ",
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
			Context:  3,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Tracing: tc,
	}
}

// DefaultTracesFilePath returns the default trace file location, or "" if
// the home directory cannot be determined.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "jsonpartial", "traces", "traces.jsonl")
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", c.Watch.Debounce)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %v", c.Cache.TTL)
	}
	for _, r := range c.Indent {
		if r != ' ' && r != '\t' {
			return fmt.Errorf("indent must contain only spaces or tabs, got %q", c.Indent)
		}
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration values.
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	switch tc.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}

	if tc.Enabled {
		if tc.Exporter == tracing.ExporterFile && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the commented config written by
// WriteDefaultConfig.
func DefaultConfigTemplate() string {
	return `# jsonpartial configuration

# Directory of *.json partials. layout/header.json is referenced as <layout.header>.
# partials_dir: ./partials

# YAML manifest mapping partial names to JSON.
# manifest: ./partials.yaml

# Fail on references to unknown partials. When false they render as null.
strict: true

# Invalidate dependents of dependents when a partial changes, not just
# direct dependents.
transitive_invalidation: false

# Indentation for rendered output. Empty prints compact JSON.
indent: "  "

watch:
  debounce: 300ms   # Quiet period before re-rendering
  context: 3        # Unchanged lines shown around each change

cache:
  ttl: 10m          # How long partial file contents are cached (0 = forever)

tracing:
  enabled: false
  exporter: file    # none, file, stdout or otlp
  # file_path: ~/.config/jsonpartial/traces/traces.jsonl
  # otlp_endpoint: localhost:4317
  sample_rate: 1.0
`
}

// WriteDefaultConfig writes the default template to configPath, creating
// parent directories.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
