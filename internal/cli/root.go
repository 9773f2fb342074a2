// Package cli wires the symload commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/symload/internal/cli/config"
	"github.com/coral-mesh/symload/internal/cli/helpers"
	"github.com/coral-mesh/symload/internal/cli/load"
	"github.com/coral-mesh/symload/internal/cli/shell"
	"github.com/coral-mesh/symload/pkg/version"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	app := &helpers.App{}

	rootCmd := &cobra.Command{
		Use:   "symload",
		Short: "symload - batch loader for debug symbol files",
		Long: `Discover and register every symbol file below a directory in one step.

symload walks a directory tree, picks up detached debug info (.debug), shared
objects (.so, .so.*) and symbol maps (.sym), and registers each one with a
session symbol table. Load bases can be taken from a live process, files
already loaded are skipped, and a per-file report lists everything that was
not loaded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return helpers.Fail(app.Init(cmd))
		},
	}
	app.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(load.NewLoadCmd(app))
	rootCmd.AddCommand(shell.NewShellCmd(app))
	rootCmd.AddCommand(config.NewConfigCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			cmd.Printf("symload version %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Build date: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
			cmd.Printf("Platform: %s\n", info.Platform)
		},
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
