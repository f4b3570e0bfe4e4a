package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Sieve error code.
type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "INVALID_REQUEST"          // 400
	ErrNotFound                ErrorCode = "NOT_FOUND"                // 404
	ErrAlreadyHandled          ErrorCode = "ALREADY_HANDLED"          // 409
	ErrConfigurationMissing    ErrorCode = "CONFIGURATION_MISSING"    // 412
	ErrCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE" // 502
	ErrInternal                ErrorCode = "INTERNAL"                 // 500
)

// SieveError represents a structured error with code, status, and details.
type SieveError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *SieveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *SieveError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for malformed input.
func NewInvalidRequest(msg string) *SieveError {
	return &SieveError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown candidate id.
func NewNotFound(identifier string) *SieveError {
	return &SieveError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("candidate not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewAlreadyHandled creates a 409 error for a candidate that has left the drafted state.
func NewAlreadyHandled(identifier, status string) *SieveError {
	return &SieveError{
		Code:    ErrAlreadyHandled,
		Status:  409,
		Message: fmt.Sprintf("candidate %s already handled (%s)", identifier, status),
		Details: map[string]any{"identifier": identifier, "status": status},
	}
}

// NewConfigurationMissing creates a 412 error when a required binding or credential is unset.
func NewConfigurationMissing(setting string) *SieveError {
	return &SieveError{
		Code:    ErrConfigurationMissing,
		Status:  412,
		Message: fmt.Sprintf("%s is not configured", setting),
		Details: map[string]any{"setting": setting},
	}
}

// NewCollaboratorUnavailable creates a 502 error for a failed call to an
// external service. The message carries the service's diagnostic verbatim.
func NewCollaboratorUnavailable(service string, err error) *SieveError {
	msg := service + " unavailable"
	if err != nil {
		msg = fmt.Sprintf("%s: %s", service, err.Error())
	}
	return &SieveError{
		Code:    ErrCollaboratorUnavailable,
		Status:  502,
		Message: msg,
		Details: map[string]any{"service": service},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *SieveError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &SieveError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a SieveError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *SieveError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// CodeOf returns the code of a SieveError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var sErr *SieveError
	if stderrors.As(err, &sErr) {
		return sErr.Code
	}
	return ErrInternal
}
