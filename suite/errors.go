package suite

import (
	"errors"
	"fmt"
)

// Error represents a suite-management failure: an invalid suite name shape,
// or a scaffolding target that already exists.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap implements the errors.Unwrap interface.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new suite Error.
func NewError(err error) *Error {
	return &Error{Err: err}
}

// NewErrorf creates a new suite Error from a format string.
func NewErrorf(format string, args ...any) *Error {
	return &Error{Err: fmt.Errorf(format, args...)}
}

// IsError checks if the error is or wraps a suite Error.
func IsError(err error) bool {
	var suiteErr *Error
	return err != nil && errors.As(err, &suiteErr)
}

// InstallerError represents a dependency installation failure. The
// installer's captured output is surfaced before this error halts the run.
type InstallerError struct {
	Err error
}

func (e *InstallerError) Error() string {
	return e.Err.Error()
}

// Unwrap implements the errors.Unwrap interface.
func (e *InstallerError) Unwrap() error {
	return e.Err
}

// NewInstallerError creates a new InstallerError.
func NewInstallerError(err error) *InstallerError {
	return &InstallerError{Err: err}
}

// NewInstallerErrorf creates a new InstallerError from a format string.
func NewInstallerErrorf(format string, args ...any) *InstallerError {
	return &InstallerError{Err: fmt.Errorf(format, args...)}
}

// IsInstallerError checks if the error is or wraps an InstallerError.
func IsInstallerError(err error) bool {
	var instErr *InstallerError
	return err != nil && errors.As(err, &instErr)
}
