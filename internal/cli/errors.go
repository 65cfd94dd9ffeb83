package cli

import (
	"errors"
	"fmt"
)

// ExitError carries the exit code a command wants the process to end with.
//
// Commands return NewExitError(code) from RunE once they have reported the
// failure themselves. [RunWithConfig] turns it into an [ExecuteResult], and
// only [Execute] calls os.Exit.
type ExitError struct {
	// Code is 1 for beacon failures, or the Claude CLI's own exit code.
	Code int
}

// Error returns "exit status N", the same form os/exec uses.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err is, or wraps, an [ExitError] and returns
// its code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
