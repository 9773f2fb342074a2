// Package load implements 'symload load' and the batch logic shared with
// the shell's load-symbols command.
package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/symload/internal/cli/helpers"
	"github.com/coral-mesh/symload/internal/constants"
	coralerrors "github.com/coral-mesh/symload/internal/errors"
	"github.com/coral-mesh/symload/internal/procmaps"
	"github.com/coral-mesh/symload/internal/session"
	"github.com/coral-mesh/symload/internal/symload"
	"github.com/coral-mesh/symload/internal/symload/loader"
	"github.com/coral-mesh/symload/internal/symload/report"
	"github.com/coral-mesh/symload/internal/symload/walker"
	"github.com/coral-mesh/symload/internal/symtab"
)

// NewLoadCmd creates the load command.
func NewLoadCmd(app *helpers.App) *cobra.Command {
	var (
		flags helpers.LoadFlags
		pid   int
		arch  string
	)

	cmd := &cobra.Command{
		Use:   "load <path>",
		Short: "Load every symbol file below a directory",
		Long: `Walks <path> depth-first and registers every file whose name matches the
suffix rules (.debug, .so, .so.*, .sym plus --ext) with a fresh symbol table.

Files already registered in the session are skipped, files that cannot be
read or parsed are reported as failed without stopping the batch. When <path>
names a single file it is loaded on its own.

With --pid the load base of each object is taken from /proc/<pid>/maps and
ELF build-ids are checked against the mapped modules.

Exit status: 0 when nothing failed, 2 when some files failed, 1 on invalid
input or interruption.`,
		Example: `  # Load detached debug info for a running process
  symload load /usr/lib/debug --pid 4242

  # Also pick up .dbg files and write a gdb script
  symload load ./symbols --ext .dbg --gdb-script symbols.gdb

  # Machine readable report
  symload load ./symbols -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			match, err := procmaps.ParseMatch(app.Config.BaseMatch)
			if err != nil {
				return helpers.Fail(err)
			}
			if arch == "" {
				arch = app.Config.Arch
			}

			sess, err := session.New(ctx, session.Config{Arch: arch, PID: pid, Match: match}, app.Logger)
			if err != nil {
				return helpers.Fail(err)
			}

			_, err = Run(ctx, app, sess, flags, args[0], cmd.OutOrStdout())
			return err
		},
	}

	flags.Register(cmd.Flags())
	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "Target process for load-base inference and build-id checks")
	cmd.Flags().StringVar(&arch, "arch", "", "Accepted architecture (default host, 'any' to disable the check)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return helpers.FormatNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// Run loads root into sess and writes the report to out. The returned error
// carries the exit status: silent status 2 on partial failure, status 1 on
// fatal input or interruption.
func Run(ctx context.Context, app *helpers.App, sess *session.Session, flags helpers.LoadFlags, root string, out io.Writer) (report.Report, error) {
	cfg := app.Config
	logger := app.Logger

	format := flags.Format
	if format == "" {
		format = cfg.Format
	}
	outFormat, err := report.ParseFormat(format)
	if err != nil {
		return report.Report{}, helpers.Fail(err)
	}

	extensions := append(append([]string(nil), cfg.Extensions...), flags.Extensions...)
	rules, err := walker.DefaultRules(extensions...)
	if err != nil {
		return report.Report{}, helpers.Fail(err)
	}

	if err := sess.Refresh(); err != nil {
		logger.Warn().Err(err).Msg("Failed to refresh target mappings")
	}

	var (
		registrar loader.Registrar = sess.Table()
		script    *symtab.ScriptRecorder
	)
	if flags.GDBScript != "" {
		script = symtab.NewScriptRecorder(sess.Table())
		registrar = script
	}

	l := sess.NewLoader(registrar, session.LoadOptions{
		Force:  flags.Force,
		NoBase: flags.NoBase || !cfg.BaseInference,
	})
	w := walker.New(rules, logger)

	res, runErr := symload.Run(ctx, w, l, root, logger)
	if runErr != nil && walker.IsFatalInput(runErr) {
		return report.Report{}, helpers.Fail(runErr)
	}

	rep := res.Report()
	formatter := report.NewFormatter(outFormat, helpers.UseColor(cfg.Color, flags.NoColor, out))
	if tf, ok := formatter.(*report.TextFormatter); ok {
		tf.Verbose = flags.Verbose
	}
	text, err := formatter.Format(rep)
	if err != nil {
		return rep, helpers.Fail(err)
	}
	if _, err := io.WriteString(out, text); err != nil {
		return rep, helpers.Fail(err)
	}

	if script != nil {
		if err := writeScript(flags.GDBScript, script); err != nil {
			return rep, helpers.Fail(err)
		}
		logger.Info().Str("path", flags.GDBScript).Int("command_count", len(script.Commands())).Msg("Wrote gdb script")
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			runErr = fmt.Errorf("interrupted: %w", runErr)
		}
		return rep, helpers.Fail(runErr)
	}
	if rep.Summary.Status() == report.StatusPartial {
		return rep, &helpers.ExitError{Code: constants.ExitPartial}
	}
	return rep, nil
}

func writeScript(path string, script *symtab.ScriptRecorder) (err error) {
	//nolint:gosec // G304: Path is from the --gdb-script flag.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create gdb script: %w", err)
	}
	defer coralerrors.CloseInto(&err, f, "gdb script")

	if _, err := script.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write gdb script: %w", err)
	}
	return nil
}
