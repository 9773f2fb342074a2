// Package symload runs one symbol loading batch: it walks a root, feeds
// every candidate to a loader and collects the records for reporting.
package symload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/symload/internal/symload/loader"
	"github.com/coral-mesh/symload/internal/symload/report"
	"github.com/coral-mesh/symload/internal/symload/walker"
)

// Result is the outcome of one batch.
type Result struct {
	Root        string
	Records     []loader.LoadRecord
	Warnings    []walker.DirectoryWarning
	Interrupted bool
}

// Report builds the report for the batch.
func (r Result) Report() report.Report {
	return report.New(r.Root, r.Records, r.Warnings, r.Interrupted)
}

// Run loads every candidate below root. A root naming a regular file is
// loaded on its own when it matches the walker's rules.
//
// An invalid root returns a *walker.FatalInputError and no records. When ctx
// is cancelled the batch stops before the next candidate and the records
// produced so far are returned together with the context error.
func Run(ctx context.Context, w *walker.Walker, l *loader.Loader, root string, logger zerolog.Logger) (Result, error) {
	res := Result{Root: root}

	info, err := os.Stat(root)
	if err == nil && info.Mode().IsRegular() {
		return runFile(ctx, w, l, root, res)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
		return res, &walker.FatalInputError{Path: root, Err: err}
	}

	seq, err := w.Walk(root)
	if err != nil {
		return res, err
	}

	logger.Debug().Str("root", root).Strs("patterns", w.Rules().Patterns()).Msg("Loading symbol files")
	for c := range seq {
		if err := ctx.Err(); err != nil {
			res.Interrupted = true
			break
		}
		res.Records = append(res.Records, l.Load(c))
	}
	res.Warnings = w.Warnings()

	if res.Interrupted {
		logger.Warn().Str("root", root).Int("record_count", len(res.Records)).Msg("Batch interrupted")
		return res, fmt.Errorf("loading %s: %w", root, ctx.Err())
	}
	return res, nil
}

func runFile(ctx context.Context, w *walker.Walker, l *loader.Loader, path string, res Result) (Result, error) {
	cat, ok := w.Rules().Match(filepath.Base(path))
	if !ok {
		return res, &walker.FatalInputError{Path: path, Err: walker.ErrUnsupportedFile}
	}
	if err := ctx.Err(); err != nil {
		res.Interrupted = true
		return res, fmt.Errorf("loading %s: %w", path, err)
	}
	res.Records = append(res.Records, l.Load(walker.Candidate{Path: path, Category: cat}))
	return res, nil
}
