// Package config loads and saves the symload configuration file and applies
// environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/symload/internal/constants"
	"github.com/coral-mesh/symload/internal/privilege"
)

// Loader handles loading and saving configuration files.
type Loader struct {
	homeDir string
	logger  zerolog.Logger
}

// NewLoader creates a new config loader.
// The base directory is resolved in this order:
//  1. SYMLOAD_CONFIG environment variable.
//  2. The invoking user's home directory, also under sudo.
//  3. The system temporary directory, for environments without a home.
func NewLoader(logger zerolog.Logger) *Loader {
	l := &Loader{logger: logger}
	if baseDir := os.Getenv(constants.ConfigDirEnv); baseDir != "" {
		l.homeDir = baseDir
		return l
	}
	if home, err := privilege.HomeDir(); err == nil && home != "" {
		l.homeDir = home
		return l
	}
	l.homeDir = filepath.Join(os.TempDir(), "symload-fallback")
	return l
}

// Dir returns the symload state directory.
func (l *Loader) Dir() string {
	return filepath.Join(l.homeDir, constants.DefaultDir)
}

// ConfigPath returns the path to the config file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.Dir(), constants.ConfigFile)
}

// HistoryPath returns the shell history file of cfg.
func (l *Loader) HistoryPath(cfg *Config) string {
	if cfg != nil && cfg.HistoryFile != "" {
		return cfg.HistoryFile
	}
	return filepath.Join(l.Dir(), constants.HistoryFile)
}

// Load reads the config file at path, or the default location when path is
// empty. A missing default file yields the defaults; a missing explicit file
// is an error. Environment overrides are applied and the result validated.
func (l *Loader) Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = l.ConfigPath()
	}

	cfg := DefaultConfig()

	//nolint:gosec // G304: Path is from trusted config directory or the --config flag.
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		l.logger.Debug().Str("path", path).Msg("Loaded config file")
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		l.logger.Debug().Str("path", path).Msg("No config file, using defaults")
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the default location.
func (l *Loader) Save(cfg *Config) error {
	path := l.ConfigPath()
	dir := filepath.Dir(path)

	//nolint:gosec // G301: Directory needs standard permissions for traversal
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := privilege.FixFileOwnership(dir); err != nil {
		l.logger.Warn().Err(err).Str("path", dir).Msg("Failed to fix directory ownership")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	//nolint:gosec // G306: Config file is not sensitive
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := privilege.FixFileOwnership(path); err != nil {
		l.logger.Warn().Err(err).Str("path", path).Msg("Failed to fix file ownership")
	}
	return nil
}
