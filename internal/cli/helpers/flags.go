package helpers

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/coral-mesh/symload/internal/symload/report"
)

var formats = []report.OutputFormat{report.FormatText, report.FormatJSON, report.FormatYAML}

// FormatNames lists the supported report formats.
func FormatNames() []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}

// LoadFlags are the flags shared by the load command and the shell's
// load-symbols command.
type LoadFlags struct {
	Extensions []string
	Force      bool
	NoBase     bool
	Format     string
	GDBScript  string
	NoColor    bool
	Verbose    bool
}

// Register adds the flags to fs.
func (f *LoadFlags) Register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.Extensions, "ext", nil, "Additional file suffixes to load (e.g. .dbg,.elf or .so.*)")
	fs.BoolVar(&f.Force, "force", false, "Re-register files already loaded in this session")
	fs.BoolVar(&f.NoBase, "no-base", false, "Disable load-base inference; register every file at base 0")
	fs.StringVarP(&f.Format, "format", "o", "", fmt.Sprintf("Output format (%s)", strings.Join(FormatNames(), ", ")))
	fs.StringVar(&f.GDBScript, "gdb-script", "", "Write gdb add-symbol-file commands for loaded objects to this file")
	fs.BoolVar(&f.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Also list loaded files")
}
