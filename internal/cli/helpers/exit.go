package helpers

import (
	"errors"
	"fmt"

	"github.com/coral-mesh/symload/internal/constants"
)

// ExitError carries a process exit status. A nil Err means the command has
// already reported everything and nothing more should be printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Silent reports whether the error has nothing left to print.
func (e *ExitError) Silent() bool { return e.Err == nil }

// Fail wraps err as a hard failure.
func Fail(err error) error {
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return err
	}
	return &ExitError{Code: constants.ExitFailure, Err: err}
}

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return constants.ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return constants.ExitFailure
}
