package symtab

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/coral-mesh/symload/internal/symload/loader"
)

const maxLineSize = 1 << 20

// parseSymbolMap reads a Breakpad symbol file or an nm style listing.
func (t *Table) parseSymbolMap(path string, base uint64) (Module, []Symbol, error) {
	// #nosec G304 - path is a symbol file chosen by the user.
	f, err := os.Open(path)
	if err != nil {
		return Module{}, nil, err
	}
	defer func() { _ = f.Close() }()

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	mod := Module{Name: loader.ModuleHint(path), Kind: KindNM}
	var syms []Symbol
	first := true
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.HasPrefix(line, "MODULE ") {
				mod.Kind = KindBreakpad
				if err := t.parseBreakpadModule(path, line, &mod); err != nil {
					return Module{}, nil, err
				}
				continue
			}
		}

		var (
			sym Symbol
			ok  bool
		)
		if mod.Kind == KindBreakpad {
			sym, ok = parseBreakpadRecord(line)
		} else {
			sym, ok = parseNMLine(line)
		}
		if !ok {
			continue
		}
		sym.Addr += base
		sym.Module = path
		syms = append(syms, sym)
	}
	if err := s.Err(); err != nil {
		return Module{}, nil, rejected(path, ErrMalformed, "%v", err)
	}
	if len(syms) == 0 {
		return Module{}, nil, rejected(path, ErrMalformed, "no symbols found")
	}
	return mod, syms, nil
}

// parseBreakpadModule handles "MODULE <os> <arch> <id> <name>".
func (t *Table) parseBreakpadModule(path, line string, mod *Module) error {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return rejected(path, ErrMalformed, "short MODULE record")
	}
	mod.Arch = NormalizeArch(fields[2])
	mod.BuildID = strings.ToLower(fields[3])
	mod.Name = strings.Join(fields[4:], " ")
	if t.arch != "" && mod.Arch != t.arch {
		return rejected(path, ErrUnsupportedArch, "%s symbols, expected %s", mod.Arch, t.arch)
	}
	return nil
}

// parseBreakpadRecord handles FUNC and PUBLIC records:
//
//	FUNC [m] <address> <size> <param_size> <name>
//	PUBLIC [m] <address> <param_size> <name>
func parseBreakpadRecord(line string) (Symbol, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Symbol{}, false
	}
	kind := fields[0]
	fields = fields[1:]
	if len(fields) > 0 && fields[0] == "m" {
		fields = fields[1:]
	}

	switch kind {
	case "FUNC":
		if len(fields) < 4 {
			return Symbol{}, false
		}
		addr, err1 := strconv.ParseUint(fields[0], 16, 64)
		size, err2 := strconv.ParseUint(fields[1], 16, 64)
		if err1 != nil || err2 != nil {
			return Symbol{}, false
		}
		return Symbol{Name: strings.Join(fields[3:], " "), Addr: addr, Size: size}, true
	case "PUBLIC":
		if len(fields) < 3 {
			return Symbol{}, false
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			return Symbol{}, false
		}
		return Symbol{Name: strings.Join(fields[2:], " "), Addr: addr}, true
	default:
		return Symbol{}, false
	}
}

// parseNMLine handles "addr [type] name [module]" as printed by nm and
// /proc/kallsyms. Undefined symbols without an address are ignored.
func parseNMLine(line string) (Symbol, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Symbol{}, false
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
	if err != nil {
		return Symbol{}, false
	}
	name := fields[1]
	if len(fields) >= 3 && len(fields[1]) == 1 {
		name = fields[2]
	}
	if addr == 0 {
		return Symbol{}, false
	}
	return Symbol{Name: name, Addr: addr}, true
}
