// Package apierr provides the shared error taxonomy used across every
// component (spec §7): Invalid, NotFound, Unauthorized, Conflict, Exhausted,
// Upstream, Integrity, Timeout, Fatal.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies which bucket of the taxonomy an error belongs to.
type Code string

const (
	Invalid      Code = "INVALID"
	NotFound     Code = "NOT_FOUND"
	Unauthorized Code = "UNAUTHORIZED"
	Conflict     Code = "CONFLICT"
	Exhausted    Code = "EXHAUSTED"
	Upstream     Code = "UPSTREAM"
	Integrity    Code = "INTEGRITY"
	Timeout      Code = "TIMEOUT"
	Fatal        Code = "FATAL"
)

// httpStatus maps each taxonomy bucket to its natural HTTP status, used only
// by the out-of-core HTTP surfaces that sit in front of these components.
var httpStatus = map[Code]int{
	Invalid:      http.StatusBadRequest,
	NotFound:     http.StatusNotFound,
	Unauthorized: http.StatusUnauthorized,
	Conflict:     http.StatusConflict,
	Exhausted:    http.StatusServiceUnavailable,
	Upstream:     http.StatusBadGateway,
	Integrity:    http.StatusUnprocessableEntity,
	Timeout:      http.StatusGatewayTimeout,
	Fatal:        http.StatusInternalServerError,
}

// Error is a structured error carrying a taxonomy code, an optional
// machine-readable tag (e.g. "CONTENT_BLOCKED"), and arbitrary details.
type Error struct {
	Code    Code
	Tag     string
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the conventional HTTP status for this error's code.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithDetail attaches a key/value pair and returns the same error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithTag sets the user-visible failure tag (spec §7) and returns the error.
func (e *Error) WithTag(tag string) *Error {
	e.Tag = tag
	return e
}

// New creates a bare Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error that carries an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given code.
func Is(err error, code Code) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code == code
	}
	return false
}

// Convenience constructors for the taxonomy's recurring shapes.

func InvalidInput(field, reason string) *Error {
	return New(Invalid, "invalid input").WithDetail("field", field).WithDetail("reason", reason)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Unauthorizedf(format string, args ...interface{}) *Error {
	return New(Unauthorized, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

func Exhaustedf(format string, args ...interface{}) *Error {
	return New(Exhausted, fmt.Sprintf(format, args...))
}

func UpstreamWrap(err error, format string, args ...interface{}) *Error {
	return Wrap(Upstream, fmt.Sprintf(format, args...), err).WithTag("UPSTREAM_UNAVAILABLE")
}

func Integrityf(format string, args ...interface{}) *Error {
	return New(Integrity, fmt.Sprintf(format, args...))
}

func Timeoutf(format string, args ...interface{}) *Error {
	return New(Timeout, fmt.Sprintf(format, args...))
}

func Fatalf(format string, args ...interface{}) *Error {
	return New(Fatal, fmt.Sprintf(format, args...))
}
