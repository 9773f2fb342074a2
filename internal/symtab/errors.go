package symtab

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned for files that are neither a usable ELF object
	// nor a recognised symbol map.
	ErrMalformed = errors.New("malformed format")
	// ErrUnsupportedArch is returned when the file targets another machine.
	ErrUnsupportedArch = errors.New("unsupported architecture")
	// ErrBuildIDMismatch is returned when a file's build-id differs from the
	// build-id of the mapped module it describes.
	ErrBuildIDMismatch = errors.New("mismatched build-id")
)

// RegistrationError describes why the table rejected a file. Reason is one of
// the sentinel messages and is what load reports display.
type RegistrationError struct {
	Path string
	Kind error
	Err  error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

// Reason returns the classification used in reports.
func (e *RegistrationError) Reason() string { return e.Kind.Error() }

func (e *RegistrationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func rejected(path string, kind error, format string, args ...any) error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &RegistrationError{Path: path, Kind: kind, Err: err}
}
