package loader

import (
	"path/filepath"
	"strings"

	"github.com/coral-mesh/symload/internal/symload/walker"
)

// BaseQuery is the debugger's view of currently mapped modules.
type BaseQuery interface {
	// CurrentBase returns the load base of a mapped module matching hint.
	CurrentBase(moduleNameHint string) (uint64, bool)
}

// BasePolicy decides the load base for a candidate. The second return value
// is false when the file should be registered relative to its own sections.
type BasePolicy interface {
	Base(c walker.Candidate) (uint64, bool)
}

// BasePolicyFunc adapts a function to BasePolicy.
type BasePolicyFunc func(c walker.Candidate) (uint64, bool)

// Base implements BasePolicy.
func (f BasePolicyFunc) Base(c walker.Candidate) (uint64, bool) { return f(c) }

// ZeroBase registers every file with base 0.
var ZeroBase BasePolicy = BasePolicyFunc(func(walker.Candidate) (uint64, bool) { return 0, false })

// QueryBase asks the debugger for the mapped base of the module the
// candidate describes. Symbol maps are never relocated.
type QueryBase struct {
	Query BaseQuery
}

// Base implements BasePolicy.
func (q QueryBase) Base(c walker.Candidate) (uint64, bool) {
	if q.Query == nil || c.Category == walker.CategorySymbolMap {
		return 0, false
	}
	return q.Query.CurrentBase(ModuleHint(c.Path))
}

// ModuleHint derives the module name a symbol file describes:
// "/dbg/usr/lib/libc.so.6.debug" describes "libc.so.6".
func ModuleHint(path string) string {
	name := filepath.Base(path)
	if trimmed := strings.TrimSuffix(name, ".debug"); trimmed != "" {
		name = trimmed
	}
	return name
}
