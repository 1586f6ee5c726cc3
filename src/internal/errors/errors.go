// Package errors provides domain-specific error types for uplinkctl.
//
// Every failure surfaced by the CLI carries one of a small set of codes so that
// callers (and tests) can tell a bad operator input from a missing interface or
// a missing OS tool without parsing messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a category of error that can occur in the application.
type ErrorCode string

const (
	// ErrCodeConfig indicates an unknown segment, a malformed target, an unknown
	// tunnel name or an invalid configuration file.
	ErrCodeConfig ErrorCode = "CONFIGURATION_ERROR"

	// ErrCodeNotFound indicates that a target could not be resolved to a live
	// interface (VPN interface absent, WAN egress undeterminable).
	ErrCodeNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// ErrCodeDependency indicates that OS tooling (netlink, iptables, nft,
	// systemctl) is missing or failed to execute.
	ErrCodeDependency ErrorCode = "DEPENDENCY_UNAVAILABLE"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinels usable with errors.Is; matching is done by code only.
var (
	ErrConfiguration         = &Error{Code: ErrCodeConfig}
	ErrResourceNotFound      = &Error{Code: ErrCodeNotFound}
	ErrDependencyUnavailable = &Error{Code: ErrCodeDependency}
	ErrInternal              = &Error{Code: ErrCodeInternal}
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeConfig, message, cause)
}

// NewNotFoundError creates a new resource-not-found error.
func NewNotFoundError(message string, cause error) *Error {
	return Wrap(ErrCodeNotFound, message, cause)
}

// NewDependencyError creates a new dependency-unavailable error.
func NewDependencyError(message string, cause error) *Error {
	return Wrap(ErrCodeDependency, message, cause)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCodeInternal, message, cause)
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or ErrCodeInternal when err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
