package loader

import (
	"fmt"

	"github.com/coral-mesh/symload/internal/symload/walker"
)

// Outcome is the result kind of one load attempt.
type Outcome string

const (
	OutcomeLoaded  Outcome = "loaded"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Reasons used by the loader itself. Registration failures carry the
// service's own error text.
const (
	ReasonAlreadyLoaded = "already loaded"
	ReasonUnreadable    = "unreadable"
)

// LoadRecord is the immutable result of loading one candidate.
type LoadRecord struct {
	Path          string          `json:"path" yaml:"path"`
	CanonicalPath string          `json:"canonical_path,omitempty" yaml:"canonical_path,omitempty"`
	Category      walker.Category `json:"category" yaml:"category"`
	Outcome       Outcome         `json:"outcome" yaml:"outcome"`
	Reason        string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Detail        string          `json:"detail,omitempty" yaml:"detail,omitempty"`
	Identity      string          `json:"identity,omitempty" yaml:"identity,omitempty"`
	Base          uint64          `json:"base" yaml:"base"`
	HasBase       bool            `json:"has_base" yaml:"has_base"`
}

// String renders the record as a single report line.
func (r LoadRecord) String() string {
	switch r.Outcome {
	case OutcomeLoaded:
		if r.HasBase && r.Base != 0 {
			return fmt.Sprintf("Loaded '%s' at 0x%x", r.Path, r.Base)
		}
		return fmt.Sprintf("Loaded '%s'", r.Path)
	case OutcomeSkipped:
		return fmt.Sprintf("Skipped '%s': %s", r.Path, r.Reason)
	default:
		if r.Detail != "" {
			return fmt.Sprintf("Failed '%s': %s (%s)", r.Path, r.Reason, r.Detail)
		}
		return fmt.Sprintf("Failed '%s': %s", r.Path, r.Reason)
	}
}
