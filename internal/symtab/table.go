// Package symtab is the in-process symbol table of a debugging session.
//
// Table implements the registration service used by the loader: it accepts
// ELF objects and detached debug info (.symtab, .dynsym, DWARF presence) and
// textual symbol maps (Breakpad and nm/kallsyms layouts), relocates their
// symbols by the requested load base and answers address lookups.
package symtab

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/symload/internal/symload/loader"
)

// Kind is the format of a registered file.
type Kind string

const (
	KindELF      Kind = "elf"
	KindBreakpad Kind = "breakpad"
	KindNM       Kind = "nm"
)

// Symbol is a relocated symbol.
type Symbol struct {
	Name   string `json:"name" yaml:"name"`
	Addr   uint64 `json:"addr" yaml:"addr"`
	Size   uint64 `json:"size,omitempty" yaml:"size,omitempty"`
	Module string `json:"module" yaml:"module"`
}

// Module describes a registered file.
type Module struct {
	Path     string `json:"path" yaml:"path"`
	Name     string `json:"name" yaml:"name"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Arch     string `json:"arch,omitempty" yaml:"arch,omitempty"`
	BuildID  string `json:"build_id,omitempty" yaml:"build_id,omitempty"`
	Base     uint64 `json:"base" yaml:"base"`
	Symbols  int    `json:"symbols" yaml:"symbols"`
	HasDWARF bool   `json:"has_dwarf,omitempty" yaml:"has_dwarf,omitempty"`
}

// BuildIDSource reports the build-id of a currently mapped module.
type BuildIDSource interface {
	ExpectedBuildID(moduleName string) (string, bool)
}

// Option configures a Table.
type Option func(*Table)

// WithArch sets the accepted architecture. ArchAny disables the check; an
// empty string means the host architecture.
func WithArch(arch string) Option {
	return func(t *Table) {
		if arch == ArchAny {
			t.arch = ""
			return
		}
		t.arch = NormalizeArch(arch)
	}
}

// WithBuildIDSource enables build-id verification of ELF files against the
// modules mapped in the target.
func WithBuildIDSource(src BuildIDSource) Option {
	return func(t *Table) { t.buildIDs = src }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Table) { t.logger = logger.With().Str("component", "symtab").Logger() }
}

// Table holds the symbols of every registered file.
type Table struct {
	mu       sync.RWMutex
	arch     string
	buildIDs BuildIDSource
	modules  []Module
	symbols  []Symbol // sorted by Addr
	logger   zerolog.Logger
}

// NewTable creates an empty table accepting host-architecture files.
func NewTable(opts ...Option) *Table {
	t := &Table{
		arch:   NormalizeArch(""),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ loader.Registrar = (*Table)(nil)

// Register parses the file at path and adds its symbols relocated by base.
// Registering a path again replaces its previous symbols.
func (t *Table) Register(path string, base uint64) error {
	kind, err := sniff(path)
	if err != nil {
		return err
	}

	var (
		mod  Module
		syms []Symbol
	)
	switch kind {
	case KindELF:
		mod, syms, err = t.parseELF(path, base)
	default:
		mod, syms, err = t.parseSymbolMap(path, base)
	}
	if err != nil {
		return err
	}
	mod.Path = path
	mod.Base = base
	mod.Symbols = len(syms)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(path)
	t.modules = append(t.modules, mod)
	t.symbols = append(t.symbols, syms...)
	sort.SliceStable(t.symbols, func(i, j int) bool { return t.symbols[i].Addr < t.symbols[j].Addr })

	t.logger.Debug().
		Str("path", path).
		Str("kind", string(mod.Kind)).
		Int("symbol_count", len(syms)).
		Uint64("base", base).
		Msg("Registered symbol file")
	return nil
}

func (t *Table) removeLocked(path string) {
	kept := t.modules[:0]
	for _, m := range t.modules {
		if m.Path != path {
			kept = append(kept, m)
		}
	}
	t.modules = kept

	syms := t.symbols[:0]
	for _, s := range t.symbols {
		if s.Module != path {
			syms = append(syms, s)
		}
	}
	t.symbols = syms
}

// Lookup returns the symbol with the greatest address not above addr and
// the offset of addr into it.
func (t *Table) Lookup(addr uint64) (Symbol, uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := sort.Search(len(t.symbols), func(i int) bool { return t.symbols[i].Addr > addr })
	if i == 0 {
		return Symbol{}, 0, false
	}
	sym := t.symbols[i-1]
	return sym, addr - sym.Addr, true
}

// Modules returns the registered files in registration order.
func (t *Table) Modules() []Module {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Module(nil), t.modules...)
}

// Module returns the registered file at path.
func (t *Table) Module(path string) (Module, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.modules {
		if m.Path == path {
			return m, true
		}
	}
	return Module{}, false
}

// Len returns the total number of symbols.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.symbols)
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// sniff classifies a file by content.
func sniff(path string) (Kind, error) {
	// #nosec G304 - path is a symbol file chosen by the user.
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	head, err := r.Peek(len(elfMagic))
	if err != nil && err != io.EOF {
		return "", err
	}
	if bytes.Equal(head, elfMagic) {
		return KindELF, nil
	}

	for {
		line, err := r.ReadString('\n')
		if trimmed := bytes.TrimSpace([]byte(line)); len(trimmed) > 0 {
			if bytes.HasPrefix(trimmed, []byte("MODULE ")) {
				return KindBreakpad, nil
			}
			return KindNM, nil
		}
		if err != nil {
			return "", rejected(path, ErrMalformed, "no content")
		}
	}
}
