package loader

import (
	"sort"
	"sync"

	"github.com/coral-mesh/symload/internal/symload/walker"
)

// Registry is the per-session set of registered symbol files, keyed by
// canonical path and by module identity within a category. A canonical path
// is recorded at most once. A stripped object and its detached debug info
// share a build-id but are distinct registrations. All methods are safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	paths      map[string]string      // canonical path -> identity
	identities map[identityKey]string // (category, identity) -> canonical path
}

type identityKey struct {
	category walker.Category
	identity string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		paths:      make(map[string]string),
		identities: make(map[identityKey]string),
	}
}

// HasPath reports whether the canonical path is registered.
func (r *Registry) HasPath(canonical string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.paths[canonical]
	return ok
}

// PathForIdentity returns the canonical path registered under identity for
// candidates of category cat.
func (r *Registry) PathForIdentity(cat walker.Category, identity string) (string, bool) {
	if identity == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.identities[identityKey{category: cat, identity: identity}]
	return p, ok
}

// Add records a successful registration. It returns false when the canonical
// path was already present, in which case the registry is unchanged.
func (r *Registry) Add(canonical string, cat walker.Category, identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.paths[canonical]; ok {
		return false
	}
	r.paths[canonical] = identity
	if identity != "" {
		key := identityKey{category: cat, identity: identity}
		if _, ok := r.identities[key]; !ok {
			r.identities[key] = canonical
		}
	}
	return true
}

// Len returns the number of registered paths.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}

// Entry is a registered file.
type Entry struct {
	Path     string `json:"path" yaml:"path"`
	Identity string `json:"identity,omitempty" yaml:"identity,omitempty"`
}

// Entries returns all registered files sorted by path.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.paths))
	for p, id := range r.paths {
		out = append(out, Entry{Path: p, Identity: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
