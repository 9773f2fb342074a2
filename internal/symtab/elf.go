package symtab

import (
	"debug/elf"

	"github.com/coral-mesh/symload/internal/buildid"
	"github.com/coral-mesh/symload/internal/symload/loader"
)

func (t *Table) parseELF(path string, base uint64) (Module, []Symbol, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return Module{}, nil, rejected(path, ErrMalformed, "%v", err)
	}
	defer func() { _ = ef.Close() }()

	mod := Module{
		Name: loader.ModuleHint(path),
		Kind: KindELF,
		Arch: archOfMachine(ef.Machine),
	}
	if t.arch != "" && mod.Arch != t.arch {
		return Module{}, nil, rejected(path, ErrUnsupportedArch, "%s object, expected %s", mod.Arch, t.arch)
	}

	if id, err := buildid.FromELF(ef); err == nil {
		mod.BuildID = id
	}
	if t.buildIDs != nil && mod.BuildID != "" {
		if want, ok := t.buildIDs.ExpectedBuildID(mod.Name); ok && want != mod.BuildID {
			return Module{}, nil, rejected(path, ErrBuildIDMismatch, "file has %s, mapped module has %s", mod.BuildID, want)
		}
	}

	var raw []elf.Symbol
	if ef.Section(".symtab") != nil {
		if st, err := ef.Symbols(); err == nil {
			raw = append(raw, st...)
		}
	}
	if ef.Section(".dynsym") != nil {
		if st, err := ef.DynamicSymbols(); err == nil {
			raw = append(raw, st...)
		}
	}

	if _, err := ef.DWARF(); err == nil {
		mod.HasDWARF = true
	} else {
		t.logger.Debug().Err(err).Str("path", path).Msg("DWARF debug info not available")
	}

	if len(raw) == 0 && !mod.HasDWARF {
		return Module{}, nil, rejected(path, ErrMalformed, "no symbol tables or debug info")
	}

	slide := relocation(ef, base)
	syms := make([]Symbol, 0, len(raw))
	for _, s := range raw {
		if s.Value == 0 || s.Name == "" {
			continue
		}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, elf.STT_NOTYPE:
		default:
			continue
		}
		if s.Section == elf.SHN_UNDEF {
			continue
		}
		syms = append(syms, Symbol{Name: s.Name, Addr: s.Value + slide, Size: s.Size, Module: path})
	}
	return mod, syms, nil
}

// relocation computes the amount added to link-time addresses so that the
// lowest PT_LOAD segment lands on base.
func relocation(ef *elf.File, base uint64) uint64 {
	if base == 0 {
		return 0
	}
	var minVaddr uint64
	found := false
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if !found || prog.Vaddr < minVaddr {
			minVaddr = prog.Vaddr
			found = true
		}
	}
	return base - minVaddr
}
