package config

import (
	"fmt"

	"github.com/coral-mesh/symload/internal/logging"
	"github.com/coral-mesh/symload/internal/procmaps"
	"github.com/coral-mesh/symload/internal/symload/report"
	"github.com/coral-mesh/symload/internal/symload/walker"
)

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config represents ~/.symload/config.yaml. Every field can be overridden by
// the environment variable in its env tag, and most by a command flag.
type Config struct {
	Version string `yaml:"version"`

	// Extensions are additional suffix patterns on top of the defaults
	// (.debug, .so, .so.*, .sym).
	Extensions []string `yaml:"extensions,omitempty" env:"SYMLOAD_EXTENSIONS"`
	// BaseInference enables load-base lookup in the target process.
	BaseInference bool `yaml:"base_inference" env:"SYMLOAD_BASE_INFERENCE"`
	// BaseMatch selects how symbol files are matched to mapped modules
	// ("exact" or "prefix").
	BaseMatch string `yaml:"base_match" env:"SYMLOAD_BASE_MATCH"`
	// Arch restricts accepted files to one architecture. Empty means the
	// host, "any" accepts everything.
	Arch string `yaml:"arch,omitempty" env:"SYMLOAD_ARCH"`

	// Format is the report format (text, json, yaml).
	Format string `yaml:"format" env:"SYMLOAD_FORMAT"`
	// Color is auto, always or never.
	Color string `yaml:"color" env:"SYMLOAD_COLOR"`
	// LogLevel is trace, debug, info, warn, error or disabled.
	LogLevel string `yaml:"log_level" env:"SYMLOAD_LOG_LEVEL"`

	// HistoryFile is the shell history file. Empty means
	// ~/.symload/history.
	HistoryFile string `yaml:"history_file,omitempty" env:"SYMLOAD_HISTORY_FILE"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:       SchemaVersion,
		BaseInference: true,
		BaseMatch:     "exact",
		Format:        string(report.FormatText),
		Color:         ColorAuto,
		LogLevel:      "warn",
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.Version != "" && c.Version != SchemaVersion {
		return fmt.Errorf("unsupported config version %q (want %q)", c.Version, SchemaVersion)
	}
	if _, err := walker.DefaultRules(c.Extensions...); err != nil {
		return fmt.Errorf("invalid extensions: %w", err)
	}
	if _, err := procmaps.ParseMatch(c.BaseMatch); err != nil {
		return fmt.Errorf("invalid base_match: %w", err)
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q (want auto, always or never)", c.Color)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}
