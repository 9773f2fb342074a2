package symtab

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/coral-mesh/symload/internal/symload/loader"
)

// ScriptRecorder decorates a registrar and records every successful ELF
// registration as a gdb add-symbol-file command, so a batch resolved here
// can be replayed in a gdb session with "source <file>".
type ScriptRecorder struct {
	next  loader.Registrar
	table *Table

	mu       sync.Mutex
	commands []string
}

// NewScriptRecorder wraps table.
func NewScriptRecorder(table *Table) *ScriptRecorder {
	return &ScriptRecorder{next: table, table: table}
}

// Register implements loader.Registrar.
func (r *ScriptRecorder) Register(path string, base uint64) error {
	if err := r.next.Register(path, base); err != nil {
		return err
	}
	// gdb only understands object files; symbol maps stay table-only.
	if mod, ok := r.table.Module(path); ok && mod.Kind != KindELF {
		return nil
	}

	cmd := "add-symbol-file " + quote(path)
	if base != 0 {
		cmd += fmt.Sprintf(" -o 0x%x", base)
	}

	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
	return nil
}

// Commands returns the recorded commands in registration order.
func (r *ScriptRecorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// WriteTo writes the script, one command per line.
func (r *ScriptRecorder) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, cmd := range r.Commands() {
		n, err := io.WriteString(w, cmd+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func quote(path string) string {
	if strings.ContainsAny(path, " \t\"'\\") {
		return strconv.Quote(path)
	}
	return path
}
