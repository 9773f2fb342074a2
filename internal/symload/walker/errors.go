package walker

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the root path does not exist.
	ErrNotFound = errors.New("no such path")
	// ErrNotDirectory is returned when the root path is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrPermission is returned when the root directory cannot be listed.
	ErrPermission = errors.New("permission denied")
	// ErrUnsupportedFile is returned when a single-file root does not match
	// any rule.
	ErrUnsupportedFile = errors.New("unsupported file")
)

// FatalInputError reports an invalid root. No candidates are produced.
type FatalInputError struct {
	Path string
	Err  error
}

func (e *FatalInputError) Error() string {
	return fmt.Sprintf("%s: '%s'", e.Err, e.Path)
}

func (e *FatalInputError) Unwrap() error { return e.Err }

// IsFatalInput reports whether err is (or wraps) a *FatalInputError.
func IsFatalInput(err error) bool {
	var fe *FatalInputError
	return errors.As(err, &fe)
}

// DirectoryWarning records a subdirectory that could not be read.
type DirectoryWarning struct {
	Path string `json:"path" yaml:"path"`
	Err  error  `json:"-" yaml:"-"`
}

func (w DirectoryWarning) String() string {
	if errors.Is(w.Err, ErrPermission) || isPermission(w.Err) {
		return fmt.Sprintf("Permission denied: '%s'", w.Path)
	}
	return fmt.Sprintf("Cannot read directory '%s': %v", w.Path, w.Err)
}
