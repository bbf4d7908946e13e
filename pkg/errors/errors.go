// Package errors defines the coded error type shared by every layer. A code
// decides the HTTP status, whether a retry may help and how much of the error
// the caller gets to see.
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeStateConflict        Code = "STATE_CONFLICT"
	CodeRateLimit            Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal             Code = "INTERNAL_ERROR"
	CodeDependency           Code = "DEPENDENCY_ERROR"
	CodeNotificationDelivery Code = "NOTIFICATION_DELIVERY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable   = true
	withDetails = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:           {http.StatusBadRequest, !retryable, "validation failed", withDetails},
	CodeUnauthorized:         {http.StatusUnauthorized, !retryable, "authentication required", !withDetails},
	CodeForbidden:            {http.StatusForbidden, !retryable, "access denied", !withDetails},
	CodeNotFound:             {http.StatusNotFound, !retryable, "resource not found", !withDetails},
	CodeConflict:             {http.StatusConflict, !retryable, "conflict detected", !withDetails},
	CodeStateConflict:        {http.StatusUnprocessableEntity, !retryable, "state transition disallowed", withDetails},
	CodeRateLimit:            {http.StatusTooManyRequests, !retryable, "rate limit exceeded", !withDetails},
	CodeInternal:             {http.StatusInternalServerError, retryable, "internal server error", !withDetails},
	CodeDependency:           {http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails},
	CodeNotificationDelivery: {http.StatusBadGateway, !retryable, "notification delivery failed", !withDetails},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error with the same code, so callers can test with
// errors.Is(err, errors.New(CodeNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HTTPStatus is the status a handler should answer err with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return MetadataFor(As(err).Code()).HTTPStatus
}

// IsRetryable reports whether another attempt may succeed. Uncoded errors
// count as internal failures and are retried; deadlines always are while
// cancellation never is.
func IsRetryable(err error) bool {
	switch {
	case err == nil, stdErrors.Is(err, context.Canceled):
		return false
	case stdErrors.Is(err, context.DeadlineExceeded):
		return true
	}
	if typed := As(err); typed != nil {
		return MetadataFor(typed.Code()).Retryable
	}
	return true
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
