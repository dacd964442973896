// Package apierr defines the error taxonomy surfaced at the HTTP boundary
// and used by the store fallback fabric to decide whether to fall through
// to a secondary backend.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping and fallback routing.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
	KindTimeout            Kind = "timeout"
	KindUnavailable        Kind = "unavailable"
	KindInternal           Kind = "internal_error"
	KindPayloadTooLarge    Kind = "payload_too_large"
	KindRateLimited        Kind = "rate_limited"
)

// Error is the canonical application error. It carries a Kind for status
// mapping, a human message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error         { return newErr(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error           { return newErr(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error           { return newErr(KindConflict, format, args...) }
func PreconditionFailed(format string, args ...any) *Error { return newErr(KindPreconditionFailed, format, args...) }
func Timeout(format string, args ...any) *Error            { return newErr(KindTimeout, format, args...) }
func Unavailable(format string, args ...any) *Error        { return newErr(KindUnavailable, format, args...) }
func Internal(format string, args ...any) *Error           { return newErr(KindInternal, format, args...) }
func PayloadTooLarge(format string, args ...any) *Error    { return newErr(KindPayloadTooLarge, format, args...) }
func RateLimited(format string, args ...any) *Error        { return newErr(KindRateLimited, format, args...) }

// Wrap attaches a cause to a new Error of the given kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := newErr(kind, format, args...)
	e.Cause = cause
	return e
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to KindInternal if err is not
// an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
