// Package helpers holds state and flag handling shared by symload commands.
package helpers

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coral-mesh/symload/internal/config"
	"github.com/coral-mesh/symload/internal/logging"
)

// App is the per-invocation state built from global flags and the config
// file before any subcommand runs.
type App struct {
	// ConfigPath is the --config flag; empty means the default location.
	ConfigPath string
	// LogLevel is the --log-level flag; empty means the configured level.
	LogLevel string

	Config *config.Config
	Loader *config.Loader
	Logger zerolog.Logger
}

// AddGlobalFlags registers the persistent flags on the root command.
func (a *App) AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&a.ConfigPath, "config", "", "Config file (default ~/.symload/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	_ = cmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return logging.Levels, cobra.ShellCompDirectiveNoFileComp
	})
}

// Init loads the configuration and builds the logger.
func (a *App) Init(cmd *cobra.Command) error {
	bootstrap := logging.New(logging.Config{Level: "warn", Pretty: true, Output: cmd.ErrOrStderr()})
	a.Loader = config.NewLoader(bootstrap)

	cfg, err := a.Loader.Load(a.ConfigPath)
	if err != nil {
		return err
	}
	if a.LogLevel != "" {
		if _, ok := logging.ParseLevel(a.LogLevel); !ok {
			return fmt.Errorf("invalid --log-level %q", a.LogLevel)
		}
		cfg.LogLevel = a.LogLevel
	}
	a.Config = cfg

	a.Logger = logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Pretty:  true,
		NoColor: !IsTerminal(cmd.ErrOrStderr()),
		Output:  cmd.ErrOrStderr(),
	})
	return nil
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int.
}

// UseColor resolves the color mode for output written to w.
func UseColor(mode string, noColor bool, w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return IsTerminal(w)
	}
}
