// Package shell implements 'symload shell', an interactive session that keeps
// one symbol table and registry across load-symbols invocations.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/symload/internal/cli/helpers"
	"github.com/coral-mesh/symload/internal/cli/load"
	"github.com/coral-mesh/symload/internal/privilege"
	"github.com/coral-mesh/symload/internal/procmaps"
	"github.com/coral-mesh/symload/internal/session"
	"github.com/coral-mesh/symload/pkg/version"
)

var errExit = errors.New("exit")

const helpText = `Commands:
  load-symbols <path> [flags]  Load every symbol file below <path>
                               (--ext, --force, --no-base, -o, --gdb-script, -v)
  info symbol <addr>           Show the symbol containing <addr>
  info files                   List registered symbol files
  info maps                    List modules mapped in the target process
  registry                     List loaded paths and their module identities
  help                         Show this help
  exit, quit                   Leave the shell (or Ctrl+D)
`

// NewShellCmd creates the shell command.
func NewShellCmd(app *helpers.App) *cobra.Command {
	var (
		pid  int
		arch string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive symbol loading session",
		Long: `Opens an interactive shell holding one symbol table for the whole session.

Repeated load-symbols commands share the session registry, so loading the same
tree twice registers nothing new. Command history is kept in
~/.symload/history unless history_file is configured.

` + helpText,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			match, err := procmaps.ParseMatch(app.Config.BaseMatch)
			if err != nil {
				return helpers.Fail(err)
			}
			if arch == "" {
				arch = app.Config.Arch
			}

			sess, err := session.New(cmd.Context(), session.Config{Arch: arch, PID: pid, Match: match}, app.Logger)
			if err != nil {
				return helpers.Fail(err)
			}

			sh := New(app, sess, cmd.OutOrStdout())
			return helpers.Fail(sh.Run(cmd.Context()))
		},
	}

	cmd.Flags().IntVarP(&pid, "pid", "p", 0, "Target process for load-base inference and build-id checks")
	cmd.Flags().StringVar(&arch, "arch", "", "Accepted architecture (default host, 'any' to disable the check)")
	return cmd
}

var promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)

// Shell executes session commands.
type Shell struct {
	app  *helpers.App
	sess *session.Session
	out  io.Writer
}

// New creates a shell over an existing session.
func New(app *helpers.App, sess *session.Session, out io.Writer) *Shell {
	return &Shell{app: app, sess: sess, out: out}
}

func (s *Shell) prompt() string {
	p := "(symload) "
	if t := s.sess.Target(); t != nil {
		p = fmt.Sprintf("(symload %d:%s) ", t.PID(), t.ProcessName())
	}
	if helpers.UseColor(s.app.Config.Color, false, s.out) {
		return promptStyle.Render(strings.TrimSpace(p)) + " "
	}
	return p
}

// Run reads commands until exit or end of input.
func (s *Shell) Run(ctx context.Context) error {
	history := s.app.Loader.HistoryPath(s.app.Config)
	if err := os.MkdirAll(s.app.Loader.Dir(), 0o750); err != nil {
		s.app.Logger.Debug().Err(err).Msg("Failed to create state directory, history disabled")
		history = ""
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     history,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()
	if history != "" {
		if err := privilege.FixFileOwnership(history); err != nil {
			s.app.Logger.Debug().Err(err).Msg("Failed to fix history ownership")
		}
	}

	_, _ = fmt.Fprintf(s.out, "symload %s session %s. Type 'help' for commands.\n", version.Version, s.sess.ID)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				_, _ = fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			var ee *helpers.ExitError
			if errors.As(err, &ee) && ee.Silent() {
				continue
			}
			_, _ = fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("load-symbols",
			readline.PcItem("--ext"),
			readline.PcItem("--force"),
			readline.PcItem("--no-base"),
			readline.PcItem("--format"),
			readline.PcItem("--gdb-script"),
		),
		readline.PcItem("info",
			readline.PcItem("symbol"),
			readline.PcItem("files"),
			readline.PcItem("maps"),
		),
		readline.PcItem("registry"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}

// Execute runs one command line.
func (s *Shell) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "exit", "quit":
		return errExit
	case "help":
		_, err := io.WriteString(s.out, helpText)
		return err
	case "load-symbols":
		return s.loadSymbols(ctx, fields[1:])
	case "info":
		if len(fields) < 2 {
			return fmt.Errorf("usage: info symbol <addr> | info files | info maps")
		}
		switch fields[1] {
		case "symbol":
			return s.infoSymbol(fields[2:])
		case "files":
			return s.infoFiles()
		case "maps":
			return s.infoMaps()
		}
		return fmt.Errorf("unknown info command %q", fields[1])
	case "registry":
		return s.registry()
	}
	return fmt.Errorf("unknown command %q, try 'help'", fields[0])
}

func (s *Shell) loadSymbols(ctx context.Context, args []string) error {
	var flags helpers.LoadFlags
	fs := pflag.NewFlagSet("load-symbols", pflag.ContinueOnError)
	fs.SetOutput(s.out)
	flags.Register(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: load-symbols <path> [flags]")
	}

	// Ctrl+C aborts the batch, not the shell.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	_, err := load.Run(ctx, s.app, s.sess, flags, fs.Arg(0), s.out)
	return err
}

func (s *Shell) infoSymbol(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: info symbol <addr>")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q", args[0])
	}

	sym, off, ok := s.sess.Table().Lookup(addr)
	if !ok {
		_, err = fmt.Fprintf(s.out, "No symbol matches 0x%x.\n", addr)
		return err
	}
	module := filepath.Base(sym.Module)
	if mod, ok := s.sess.Table().Module(sym.Module); ok && mod.Name != "" {
		module = mod.Name
	}
	if off == 0 {
		_, err = fmt.Fprintf(s.out, "%s in %s\n", sym.Name, module)
	} else {
		_, err = fmt.Fprintf(s.out, "%s + %d in %s\n", sym.Name, off, module)
	}
	return err
}

func (s *Shell) infoFiles() error {
	modules := s.sess.Table().Modules()
	if len(modules) == 0 {
		_, err := fmt.Fprintln(s.out, "No symbol files loaded.")
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BASE\tKIND\tSYMBOLS\tBUILD-ID\tPATH")
	for _, m := range modules {
		_, _ = fmt.Fprintf(w, "0x%x\t%s\t%d\t%s\t%s\n", m.Base, m.Kind, m.Symbols, orDash(m.BuildID), m.Path)
	}
	return w.Flush()
}

func (s *Shell) infoMaps() error {
	target := s.sess.Target()
	if target == nil {
		return fmt.Errorf("no target process, start the shell with --pid")
	}
	if err := target.Refresh(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "START\tEND\tPATH")
	for _, m := range target.Mappings() {
		_, _ = fmt.Fprintf(w, "0x%x\t0x%x\t%s\n", m.Base, m.End, m.Path)
	}
	return w.Flush()
}

func (s *Shell) registry() error {
	entries := s.sess.Registry().Entries()
	if len(entries) == 0 {
		_, err := fmt.Fprintln(s.out, "Registry is empty.")
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tIDENTITY")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Path, e.Identity)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
