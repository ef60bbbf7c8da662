package config

import (
	"errors"
	"fmt"
)

// Error represents an invalid configuration detected before any feature
// area runs: bad flags, a missing suite, disallowed environment overrides,
// malformed path specifiers, and similar input errors. It is reported as a
// clean diagnostic, never as a stack trace.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ConfigError: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new configuration Error.
func NewError(err error) *Error {
	return &Error{Err: err}
}

// NewErrorf creates a new configuration Error from a format string.
func NewErrorf(format string, args ...any) *Error {
	return &Error{Err: fmt.Errorf(format, args...)}
}

// IsError checks if the error is or wraps a configuration Error.
func IsError(err error) bool {
	var cfgErr *Error
	return err != nil && errors.As(err, &cfgErr)
}
