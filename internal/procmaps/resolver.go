// Package procmaps answers "where is this module mapped" for a live process
// by reading /proc/<pid>/maps. Resolver implements loader.BaseQuery and
// symtab.BuildIDSource.
package procmaps

import (
	"context"
	"debug/elf"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/coral-mesh/symload/internal/buildid"
	"github.com/coral-mesh/symload/internal/sys/proc"
)

// MatchPolicy decides whether a mapped file name answers a module hint.
type MatchPolicy func(mappedName, hint string) bool

// MatchExact matches when the mapped base name equals the hint.
func MatchExact(mappedName, hint string) bool { return mappedName == hint }

// MatchPrefix matches when the mapped base name starts with the hint, so
// "libc.so" answers for "libc.so.6". When several files match the one mapped
// lowest wins.
func MatchPrefix(mappedName, hint string) bool { return strings.HasPrefix(mappedName, hint) }

// ParseMatch maps a configuration value to a policy.
func ParseMatch(name string) (MatchPolicy, error) {
	switch name {
	case "", "exact":
		return MatchExact, nil
	case "prefix":
		return MatchPrefix, nil
	}
	return nil, fmt.Errorf("unknown base match policy %q (want exact or prefix)", name)
}

// Mapping is one file mapped into the target.
type Mapping struct {
	Path string `json:"path" yaml:"path"`
	Name string `json:"name" yaml:"name"`
	Base uint64 `json:"base" yaml:"base"`
	End  uint64 `json:"end" yaml:"end"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatch sets the match policy. The default is MatchExact.
func WithMatch(m MatchPolicy) Option {
	return func(r *Resolver) { r.match = m }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = logger.With().Str("component", "procmaps").Logger() }
}

// withRegions replaces the /proc reader, for tests.
func withRegions(read func() ([]proc.MapRegion, error)) Option {
	return func(r *Resolver) { r.read = read }
}

// Resolver resolves module load bases of one process.
type Resolver struct {
	pid    int
	name   string
	match  MatchPolicy
	read   func() ([]proc.MapRegion, error)
	logger zerolog.Logger

	mu       sync.RWMutex
	mappings []Mapping // sorted by Base
	buildIDs map[string]string
}

// New validates that pid is a live process and takes a first snapshot of its
// mappings.
func New(ctx context.Context, pid int, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		pid:    pid,
		match:  MatchExact,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.read == nil {
		p, err := process.NewProcessWithContext(ctx, int32(pid)) //nolint:gosec // G115: pid comes from a flag and fits.
		if err != nil {
			return nil, fmt.Errorf("process %d: %w", pid, err)
		}
		if name, err := p.NameWithContext(ctx); err == nil {
			r.name = name
		}
		r.read = func() ([]proc.MapRegion, error) { return proc.ReadMaps(pid, r.logger) }
	}

	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// PID returns the target process id.
func (r *Resolver) PID() int { return r.pid }

// ProcessName returns the target's command name, if known.
func (r *Resolver) ProcessName() string { return r.name }

// Refresh re-reads the target's mappings.
func (r *Resolver) Refresh() error {
	regions, err := r.read()
	if err != nil {
		return err
	}
	mappings := collapse(regions)

	r.mu.Lock()
	r.mappings = mappings
	r.buildIDs = make(map[string]string)
	r.mu.Unlock()

	r.logger.Debug().Int("pid", r.pid).Int("mapping_count", len(mappings)).Msg("Read process mappings")
	return nil
}

// collapse merges the regions of each file into one Mapping spanning from
// its lowest start to its highest end.
func collapse(regions []proc.MapRegion) []Mapping {
	byPath := make(map[string]*Mapping)
	var order []string
	for _, reg := range regions {
		if !reg.IsFile() {
			continue
		}
		m, ok := byPath[reg.Path]
		if !ok {
			byPath[reg.Path] = &Mapping{
				Path: reg.Path,
				Name: filepath.Base(reg.Path),
				Base: reg.Start - reg.Offset,
				End:  reg.End,
			}
			order = append(order, reg.Path)
			continue
		}
		if base := reg.Start - reg.Offset; base < m.Base {
			m.Base = base
		}
		if reg.End > m.End {
			m.End = reg.End
		}
	}

	out := make([]Mapping, 0, len(order))
	for _, path := range order {
		out = append(out, *byPath[path])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out
}

// Mappings returns the mapped files ordered by load base.
func (r *Resolver) Mappings() []Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Mapping(nil), r.mappings...)
}

// Find returns the mapping answering hint under the match policy.
func (r *Resolver) Find(hint string) (Mapping, bool) {
	if hint == "" {
		return Mapping{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	// Mappings are sorted by base, so the first match is the lowest.
	for _, m := range r.mappings {
		if r.match(m.Name, hint) {
			return m, true
		}
	}
	return Mapping{}, false
}

// CurrentBase implements loader.BaseQuery.
func (r *Resolver) CurrentBase(hint string) (uint64, bool) {
	m, ok := r.Find(hint)
	if !ok {
		return 0, false
	}
	return m.Base, true
}

// ExpectedBuildID implements symtab.BuildIDSource: the GNU build-id of the
// mapped file answering moduleName.
func (r *Resolver) ExpectedBuildID(moduleName string) (string, bool) {
	m, ok := r.Find(moduleName)
	if !ok {
		return "", false
	}

	r.mu.RLock()
	id, cached := r.buildIDs[m.Path]
	r.mu.RUnlock()
	if cached {
		return id, id != ""
	}

	id = r.readBuildID(m.Path)
	r.mu.Lock()
	r.buildIDs[m.Path] = id
	r.mu.Unlock()
	return id, id != ""
}

// readBuildID opens the file through the target's root first so containers
// with their own mount namespace resolve to the right file.
func (r *Resolver) readBuildID(path string) string {
	for _, candidate := range []string{proc.RootPath(r.pid, path), path} {
		ef, err := elf.Open(candidate)
		if err != nil {
			continue
		}
		id, err := buildid.FromELF(ef)
		_ = ef.Close()
		if err == nil {
			return id
		}
		r.logger.Debug().Err(err).Str("path", candidate).Msg("Mapped module has no build-id")
		return ""
	}
	return ""
}
