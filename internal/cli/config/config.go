// Package config implements the 'symload config' command family.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/symload/internal/cli/helpers"
	"github.com/coral-mesh/symload/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd(app *helpers.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Prints the configuration in effect after applying the config file and
environment overrides.

Configuration Priority:
  1. Command flags (highest)
  2. SYMLOAD_* environment variables
  3. Config file (~/.symload/config.yaml or --config)
  4. Built-in defaults

Environment Variables:
  SYMLOAD_CONFIG          Override the directory holding .symload (default: ~)
  SYMLOAD_EXTENSIONS      Extra suffix patterns, comma separated
  SYMLOAD_BASE_INFERENCE  Enable load-base inference (true/false)
  SYMLOAD_BASE_MATCH      Module match policy (exact, prefix)
  SYMLOAD_ARCH            Accepted architecture
  SYMLOAD_FORMAT          Report format (text, json, yaml)
  SYMLOAD_COLOR           Color mode (auto, always, never)
  SYMLOAD_LOG_LEVEL       Log level
  SYMLOAD_HISTORY_FILE    Shell history file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(app.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(newPathCmd(app))
	cmd.AddCommand(newInitCmd(app))

	return cmd
}

// newPathCmd creates the 'config path' command.
func newPathCmd(app *helpers.App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.ConfigPath
			if path == "" {
				path = app.Loader.ConfigPath()
			}
			cmd.Println(path)
			return nil
		},
	}
}

// newInitCmd creates the 'config init' command.
func newInitCmd(app *helpers.App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.Loader.ConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			if err := app.Loader.Save(config.DefaultConfig()); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
