// Package session holds the state of one debugging session: the registry of
// loaded symbol files, the symbol table they were registered into and,
// optionally, the live process used for load-base inference.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/symload/internal/privilege"
	"github.com/coral-mesh/symload/internal/procmaps"
	"github.com/coral-mesh/symload/internal/symload/loader"
	"github.com/coral-mesh/symload/internal/symtab"
)

// Config configures a Session.
type Config struct {
	// Arch is the accepted architecture; empty means the host, symtab.ArchAny
	// disables the check.
	Arch string
	// PID is the target process. Zero means no live target.
	PID int
	// Match selects mapped modules for base inference.
	Match procmaps.MatchPolicy
}

// Session is one debugging session.
type Session struct {
	ID        string
	CreatedAt time.Time

	registry *loader.Registry
	table    *symtab.Table
	resolver *procmaps.Resolver
	logger   zerolog.Logger
}

// New starts a session. With a PID the target is validated and its mappings
// are read once; use Refresh to pick up later mappings.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Session, error) {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		registry:  loader.NewRegistry(),
	}
	s.logger = logger.With().Str("session_id", s.ID).Logger()

	tableOpts := []symtab.Option{symtab.WithArch(cfg.Arch), symtab.WithLogger(s.logger)}
	if cfg.PID != 0 {
		opts := []procmaps.Option{procmaps.WithLogger(s.logger)}
		if cfg.Match != nil {
			opts = append(opts, procmaps.WithMatch(cfg.Match))
		}
		resolver, err := procmaps.New(ctx, cfg.PID, opts...)
		if err != nil {
			return nil, s.targetError(err)
		}
		s.resolver = resolver
		tableOpts = append(tableOpts, symtab.WithBuildIDSource(resolver))
	}
	s.table = symtab.NewTable(tableOpts...)

	s.logger.Debug().Int("pid", cfg.PID).Msg("Session started")
	return s, nil
}

// targetError explains a permission failure on the target's mappings.
func (s *Session) targetError(err error) error {
	if !errors.Is(err, fs.ErrPermission) {
		return err
	}
	caps, capErr := privilege.DetectCapabilities(s.logger)
	if capErr != nil {
		s.logger.Debug().Err(capErr).Msg("Failed to detect capabilities")
		return err
	}
	if !caps.CanInspect() {
		return fmt.Errorf("%w (inspecting another user's process needs root or CAP_SYS_PTRACE)", err)
	}
	return err
}

// Registry returns the session registry.
func (s *Session) Registry() *loader.Registry { return s.registry }

// Table returns the session symbol table.
func (s *Session) Table() *symtab.Table { return s.table }

// Target returns the live process resolver, or nil.
func (s *Session) Target() *procmaps.Resolver { return s.resolver }

// LoadOptions are the per-invocation loader flags.
type LoadOptions struct {
	Force  bool
	NoBase bool
}

// NewLoader returns a loader committing to the session registry. registrar
// defaults to the session table; pass a decorator such as a
// symtab.ScriptRecorder to observe registrations.
func (s *Session) NewLoader(registrar loader.Registrar, opts LoadOptions) *loader.Loader {
	if registrar == nil {
		registrar = s.table
	}
	loaderOpts := []loader.Option{
		loader.WithForce(opts.Force),
		loader.WithBaseInference(!opts.NoBase),
		loader.WithLogger(s.logger),
	}
	if s.resolver != nil {
		loaderOpts = append(loaderOpts, loader.WithBaseQuery(s.resolver))
	}
	return loader.New(registrar, s.registry, loaderOpts...)
}

// Refresh re-reads the target mappings, if there is a target.
func (s *Session) Refresh() error {
	if s.resolver == nil {
		return nil
	}
	return s.resolver.Refresh()
}
