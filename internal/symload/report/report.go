// Package report summarises load records for the user.
//
// Everything here is a pure function of its input: formatters return text
// and never write it anywhere.
package report

import (
	"github.com/coral-mesh/symload/internal/symload/loader"
	"github.com/coral-mesh/symload/internal/symload/walker"
)

// Status is the overall result of a batch.
type Status string

const (
	// StatusOK means every candidate was loaded or skipped.
	StatusOK Status = "ok"
	// StatusPartial means at least one candidate failed.
	StatusPartial Status = "partial"
	// StatusInterrupted means the batch was aborted before completion.
	StatusInterrupted Status = "interrupted"
)

// Summary holds the counts of a batch.
type Summary struct {
	Root        string `json:"root" yaml:"root"`
	Total       int    `json:"total" yaml:"total"`
	Loaded      int    `json:"loaded" yaml:"loaded"`
	Skipped     int    `json:"skipped" yaml:"skipped"`
	Failed      int    `json:"failed" yaml:"failed"`
	Warnings    int    `json:"warnings" yaml:"warnings"`
	Interrupted bool   `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// Status derives the overall batch status.
func (s Summary) Status() Status {
	switch {
	case s.Interrupted:
		return StatusInterrupted
	case s.Failed > 0:
		return StatusPartial
	default:
		return StatusOK
	}
}

// Warning is a rendered directory warning.
type Warning struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// Report is the complete result of one invocation.
type Report struct {
	Summary  Summary             `json:"summary" yaml:"summary"`
	Records  []loader.LoadRecord `json:"records" yaml:"records"`
	Warnings []Warning           `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	messages []string
}

// New builds a report from the records of one batch.
func New(root string, records []loader.LoadRecord, warnings []walker.DirectoryWarning, interrupted bool) Report {
	r := Report{
		Summary:  Summarize(records),
		Records:  append([]loader.LoadRecord(nil), records...),
		messages: make([]string, 0, len(warnings)),
	}
	r.Summary.Root = root
	r.Summary.Warnings = len(warnings)
	r.Summary.Interrupted = interrupted
	for _, w := range warnings {
		msg := ""
		if w.Err != nil {
			msg = w.Err.Error()
		}
		r.Warnings = append(r.Warnings, Warning{Path: w.Path, Error: msg})
		r.messages = append(r.messages, w.String())
	}
	return r
}

// Summarize counts records per outcome.
func Summarize(records []loader.LoadRecord) Summary {
	var s Summary
	for _, rec := range records {
		s.Total++
		switch rec.Outcome {
		case loader.OutcomeLoaded:
			s.Loaded++
		case loader.OutcomeSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// Problems returns the records that were not loaded, in input order.
func (r Report) Problems() []loader.LoadRecord {
	var out []loader.LoadRecord
	for _, rec := range r.Records {
		if rec.Outcome != loader.OutcomeLoaded {
			out = append(out, rec)
		}
	}
	return out
}
