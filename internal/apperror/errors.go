// Package apperror defines the application error taxonomy. Every failure that
// reaches a client is an *Error carrying an HTTP status; anything else is
// rendered as a 500 by HTTPErrorHandler.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidation      Code = "VALIDATION_FAILED"
	CodeLimitExceeded   Code = "LIMIT_EXCEEDED"
	CodeConflict        Code = "CONFLICT"
	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Error is the uniform application error.
type Error struct {
	Code     Code
	Message  string
	Details  any
	HTTPCode int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error with an explicit code and status.
func New(code Code, message string, httpCode int) *Error {
	return &Error{Code: code, Message: message, HTTPCode: httpCode}
}

// Wrap attaches a cause that is logged but never sent to the client.
func Wrap(err error, code Code, message string, httpCode int) *Error {
	return &Error{Code: code, Message: message, HTTPCode: httpCode, Err: err}
}

// WithDetails returns a copy carrying per-field details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func Unauthenticated(message string) *Error {
	return New(CodeUnauthenticated, message, http.StatusUnauthorized)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message, http.StatusForbidden)
}

func NotFound(message string) *Error {
	return New(CodeNotFound, message, http.StatusNotFound)
}

func Validation(message string) *Error {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// LimitExceeded is returned by entitlement checks. It shares 403 with
// Forbidden but keeps its own code.
func LimitExceeded(message string) *Error {
	return New(CodeLimitExceeded, message, http.StatusForbidden)
}

func Conflict(message string) *Error {
	return New(CodeConflict, message, http.StatusConflict)
}

func TooManyRequests(message string) *Error {
	return New(CodeTooManyRequests, message, http.StatusTooManyRequests)
}

func Internal(err error) *Error {
	return Wrap(err, CodeInternal, "internal server error", http.StatusInternalServerError)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
