// Package walker discovers candidate symbol files below a root directory.
//
// Traversal is depth-first. Entries of every directory are visited in byte
// order of their names, so the produced sequence is lexicographic by path
// components and identical across runs over an unchanged tree. A directory's
// subtree is emitted where its name sorts: a/x.so comes before a.so, unlike a
// plain byte sort of full paths where '.' precedes '/'. Symbolic links
// to directories are followed, but every real directory is entered at most
// once which makes link cycles terminate.
package walker

import (
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Candidate is a discovered file and the category its name matched.
type Candidate struct {
	Path     string   `json:"path" yaml:"path"`
	Category Category `json:"category" yaml:"category"`
}

// Walker produces candidates for a root directory.
// A Walker is not safe for concurrent use.
type Walker struct {
	rules    Rules
	logger   zerolog.Logger
	warnings []DirectoryWarning
}

// New creates a walker using the given rules.
func New(rules Rules, logger zerolog.Logger) *Walker {
	return &Walker{
		rules:  rules,
		logger: logger.With().Str("component", "walker").Logger(),
	}
}

// Rules returns the rule set used for matching.
func (w *Walker) Rules() Rules { return w.rules }

// Warnings returns the directories skipped during the last traversal.
func (w *Walker) Warnings() []DirectoryWarning {
	return append([]DirectoryWarning(nil), w.warnings...)
}

// Walk validates root and returns a lazy candidate sequence.
// The root is checked eagerly; an invalid root yields a *FatalInputError and
// no sequence. Ranging over the sequence again re-walks from scratch.
func (w *Walker) Walk(root string) (iter.Seq[Candidate], error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FatalInputError{Path: root, Err: ErrNotFound}
		}
		if isPermission(err) {
			return nil, &FatalInputError{Path: root, Err: ErrPermission}
		}
		return nil, &FatalInputError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &FatalInputError{Path: root, Err: ErrNotDirectory}
	}
	if err := checkAccess(root); err != nil {
		return nil, &FatalInputError{Path: root, Err: ErrPermission}
	}

	return func(yield func(Candidate) bool) {
		w.warnings = nil
		visited := make(map[dirKey]struct{})
		w.walkDir(root, visited, yield)
		for _, warn := range w.warnings {
			w.logger.Warn().Err(warn.Err).Str("path", warn.Path).Msg("Skipped unreadable directory")
		}
	}, nil
}

// walkDir returns false once the consumer stops iterating.
func (w *Walker) walkDir(dir string, visited map[dirKey]struct{}, yield func(Candidate) bool) bool {
	if key, ok := keyOf(dir); ok {
		if _, seen := visited[key]; seen {
			w.logger.Debug().Str("path", dir).Msg("Directory already visited, not descending")
			return true
		}
		visited[key] = struct{}{}
	}

	// os.ReadDir sorts by file name and returns what it could read on error.
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.warnings = append(w.warnings, DirectoryWarning{Path: dir, Err: err})
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()

		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				// Dangling link: let the loader report it if the name qualifies.
				if !w.emit(path, entry.Name(), yield) {
					return false
				}
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if !w.walkDir(path, visited, yield) {
				return false
			}
		case mode.IsRegular():
			if !w.emit(path, entry.Name(), yield) {
				return false
			}
		}
	}
	return true
}

func (w *Walker) emit(path, name string, yield func(Candidate) bool) bool {
	cat, ok := w.rules.Match(name)
	if !ok {
		return true
	}
	return yield(Candidate{Path: path, Category: cat})
}

// Collect drains a candidate sequence into a slice.
func Collect(seq iter.Seq[Candidate]) []Candidate {
	var out []Candidate
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
