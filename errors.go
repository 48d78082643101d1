package gantry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code is a canonical error code from the framework taxonomy. Codes are
// stable wire values; clients may switch on them.
type Code string

// The error taxonomy. Every error leaving the pipeline carries one of these.
const (
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeInternal         Code = "INTERNAL"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeTimeout          Code = "TIMEOUT"
)

var codeStatus = map[Code]int{
	CodeInvalidRequest:   http.StatusBadRequest,
	CodeUnauthenticated:  http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeValidationFailed: http.StatusUnprocessableEntity,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeInternal:         http.StatusInternalServerError,
	CodeUnavailable:      http.StatusServiceUnavailable,
	CodeTimeout:          http.StatusGatewayTimeout,
}

// Status returns the HTTP status mapped to the code, or 500 for an
// unrecognized code.
func (c Code) Status() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FieldError describes one field-level failure, typically from validation.
type FieldError struct {
	Source string `json:"source"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error is a request-path error with a taxonomy code, an optional set of
// field-level details, and an optional wrapped cause. It is what
// ErrorNormalization serializes into the canonical envelope.
type Error struct {
	Code    Code
	Message string
	Details []FieldError

	cause error
}

// NewError returns an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf returns an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError returns an Error carrying err as its cause.
func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithDetails attaches field-level details and returns the error.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// Error returns the message, including the cause when present.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// StatusCode returns the HTTP status for the error's code.
func (e *Error) StatusCode() int { return e.Code.Status() }

// AsError classifies an arbitrary error into an *Error. Typed errors pass
// through; context deadline expiry maps to TIMEOUT; anything else becomes
// INTERNAL with the original error as cause.
func AsError(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WrapError(CodeTimeout, "request deadline exceeded", err)
	}
	return WrapError(CodeInternal, "internal error", err)
}

// envelope is the canonical wire shape for errors.
type envelope struct {
	Error envelopeBody `json:"error"`
}

type envelopeBody struct {
	Code      Code         `json:"code"`
	Message   string       `json:"message"`
	RequestID string       `json:"request_id"`
	Details   []FieldError `json:"details,omitempty"`
}
