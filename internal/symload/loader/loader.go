// Package loader registers candidate symbol files with the debugger's symbol
// table, one LoadRecord per candidate.
//
// A Loader never fails past its boundary: unreadable files, rejected formats
// and duplicates all become record outcomes, so a bad file never stops the
// rest of a batch. Only successful registrations are committed to the
// session Registry, which keeps failed files eligible for a later retry.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/symload/internal/buildid"
	"github.com/coral-mesh/symload/internal/symload/walker"
)

// Registrar is the debugger's symbol registration service.
type Registrar interface {
	Register(path string, base uint64) error
}

// Option configures a Loader.
type Option func(*Loader)

// WithForce re-registers files even when the registry already has them.
func WithForce(force bool) Option {
	return func(l *Loader) { l.force = force }
}

// WithBaseInference enables or disables load-base inference. Disabled
// inference registers every file with base 0.
func WithBaseInference(enabled bool) Option {
	return func(l *Loader) { l.inferBase = enabled }
}

// WithBasePolicy overrides how load bases are chosen.
func WithBasePolicy(p BasePolicy) Option {
	return func(l *Loader) {
		if p != nil {
			l.policy = p
		}
	}
}

// WithBaseQuery uses q to look up currently mapped module bases.
func WithBaseQuery(q BaseQuery) Option {
	return func(l *Loader) {
		if q != nil {
			l.policy = QueryBase{Query: q}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger.With().Str("component", "loader").Logger() }
}

// Loader classifies and registers candidates.
type Loader struct {
	registrar Registrar
	registry  *Registry
	policy    BasePolicy
	force     bool
	inferBase bool
	logger    zerolog.Logger

	// Seams for tests.
	checkReadable func(path string) error
	identify      func(path string) (string, error)

	mu sync.Mutex
}

// New creates a loader that registers through registrar and records
// successes in registry.
func New(registrar Registrar, registry *Registry, opts ...Option) *Loader {
	l := &Loader{
		registrar:     registrar,
		registry:      registry,
		policy:        ZeroBase,
		inferBase:     true,
		logger:        zerolog.Nop(),
		checkReadable: checkReadable,
		identify:      buildid.Identify,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the session registry the loader commits to.
func (l *Loader) Registry() *Registry { return l.registry }

// Load produces exactly one record for c. Calls are serialised so the
// registry check and insert happen atomically with respect to other loads.
func (l *Loader) Load(c walker.Candidate) (rec LoadRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec = LoadRecord{Path: c.Path, Category: c.Category}
	defer func() {
		if p := recover(); p != nil {
			rec = fail(rec, "internal error", fmt.Errorf("%v", p))
		}
		l.logRecord(rec)
	}()

	canonical, err := Canonicalize(c.Path)
	if err != nil {
		return fail(rec, ReasonUnreadable, err)
	}
	rec.CanonicalPath = canonical

	if !l.force && l.registry.HasPath(canonical) {
		return skip(rec, "")
	}

	if err := l.checkReadable(canonical); err != nil {
		return fail(rec, ReasonUnreadable, err)
	}

	identity, err := l.identify(canonical)
	if err != nil {
		return fail(rec, ReasonUnreadable, err)
	}
	rec.Identity = identity

	if !l.force {
		if other, ok := l.registry.PathForIdentity(c.Category, identity); ok && other != canonical {
			return skip(rec, fmt.Sprintf("same module as '%s'", other))
		}
	}

	var base uint64
	if l.inferBase {
		base, rec.HasBase = l.policy.Base(c)
	}
	rec.Base = base

	if err := l.registrar.Register(canonical, base); err != nil {
		return fail(rec, reasonOf(err), err)
	}

	l.registry.Add(canonical, c.Category, identity)
	rec.Outcome = OutcomeLoaded
	return rec
}

func (l *Loader) logRecord(rec LoadRecord) {
	switch rec.Outcome {
	case OutcomeLoaded:
		l.logger.Info().Str("path", rec.Path).Uint64("base", rec.Base).Msg("Loaded symbol file")
	case OutcomeSkipped:
		l.logger.Debug().Str("path", rec.Path).Str("reason", rec.Reason).Msg("Skipped symbol file")
	default:
		l.logger.Warn().Str("path", rec.Path).Str("reason", rec.Reason).Str("detail", rec.Detail).Msg("Failed to load symbol file")
	}
}

func skip(rec LoadRecord, detail string) LoadRecord {
	rec.Outcome = OutcomeSkipped
	rec.Reason = ReasonAlreadyLoaded
	rec.Detail = detail
	return rec
}

func fail(rec LoadRecord, reason string, err error) LoadRecord {
	rec.Outcome = OutcomeFailed
	rec.Reason = reason
	if err != nil && err.Error() != reason {
		rec.Detail = err.Error()
	}
	return rec
}

// reasonOf prefers a classified reason when the registrar provides one.
func reasonOf(err error) string {
	var r interface{ Reason() string }
	if errors.As(err, &r) {
		return r.Reason()
	}
	return err.Error()
}

// Canonicalize resolves path to an absolute path free of symlinks and
// relative segments.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// checkReadable opens the file and rejects non-regular and empty files.
func checkReadable(path string) error {
	// #nosec G304 - path is a symbol file chosen by the user.
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty file")
	}
	return nil
}
