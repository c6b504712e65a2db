package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by songsmith commands.
const (
	ExitFailure   = 1
	ExitCancelled = 130
)

// ExitError represents a command failure with a specific exit code.
//
// Commands return NewExitError(code) from their RunE function instead of
// calling os.Exit, so tests can assert on exit codes. [RunWithConfig] turns
// the error into an [ExecuteResult] and [Execute] exits the process.
type ExitError struct {
	// Code is the exit code to return to the shell.
	// Convention: 1 = failed generation, 130 = cancelled generation.
	Code int
}

// Error implements the error interface, matching the os/exec format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if an error is an [ExitError] and extracts its exit code.
//
// Returns (code, true) if err is or wraps an *ExitError, (0, false)
// otherwise.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
