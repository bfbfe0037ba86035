// Package apperr carries the typed failures surfaced by the gamification engine.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown    Code = "UNKNOWN"
	CodeNotFound   Code = "NOT_FOUND"
	CodeStore      Code = "STORE_UNAVAILABLE"
	CodeConflict   Code = "CONFLICT"
	CodeValidation Code = "VALIDATION"
)

// HTTPStatus maps a code to the status returned to API callers.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may safely retry the failed operation.
func (c Code) Retryable() bool {
	return c == CodeStore || c == CodeConflict
}

// Error is a domain error with a code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(err error, format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

// Store wraps an I/O or backend failure.
func Store(err error, format string, args ...any) *Error {
	return &Error{Code: CodeStore, Message: fmt.Sprintf(format, args...), Err: err}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}
