// Package apperrors defines the error taxonomy shared by every agentlens
// component: a small set of kinds that map 1:1 onto HTTP status codes and
// client retry behavior.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry purposes.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindRateLimit      Kind = "rate_limit"
	KindQuotaExceeded  Kind = "quota_exceeded"
	KindUnavailable    Kind = "unavailable"
	KindInternal       Kind = "internal"
)

// Retryable reports whether the client SDK should retry an error of this
// kind (RateLimit, Unavailable) per spec §7.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindUnavailable:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the status code this kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindAuthentication:
		return 401
	case KindAuthorization:
		return 403
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindRateLimit:
		return 429
	case KindQuotaExceeded:
		return 402
	case KindUnavailable:
		return 503
	default:
		return 500
	}
}

// Error is the concrete error type carrying a Kind, a message and an
// optional wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds; only meaningful for KindRateLimit
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, apperrors.KindX) style checks via a sentinel
// wrapper — see the Kind-typed constructors below, which are the intended
// comparison targets instead.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error     { return newf(KindValidation, format, args...) }
func Authentication(format string, args ...any) *Error  { return newf(KindAuthentication, format, args...) }
func Authorization(format string, args ...any) *Error   { return newf(KindAuthorization, format, args...) }
func NotFound(format string, args ...any) *Error        { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error        { return newf(KindConflict, format, args...) }
func QuotaExceeded(format string, args ...any) *Error   { return newf(KindQuotaExceeded, format, args...) }
func Unavailable(format string, args ...any) *Error     { return newf(KindUnavailable, format, args...) }
func Internal(format string, args ...any) *Error        { return newf(KindInternal, format, args...) }

// RateLimit builds a KindRateLimit error carrying the Retry-After hint.
func RateLimit(retryAfterSeconds int, format string, args ...any) *Error {
	e := newf(KindRateLimit, format, args...)
	e.RetryAfter = retryAfterSeconds
	return e
}

// Wrap attaches a cause to an existing *Error, returning a new value.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := newf(kind, format, args...)
	e.Cause = cause
	return e
}

// HashChainError signals that a batch violated the per-session hash chain
// invariant (spec §4.3). It is always a KindConflict error.
func HashChainError(format string, args ...any) *Error {
	return newf(KindConflict, "hash chain violation: "+format, args...)
}

// ValidationError signals that an event's payload failed type-specific
// validation (spec §4.3/§4.1).
func ValidationError(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// ConflictError signals a duplicate non-idempotent resource.
func ConflictError(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// errors that don't carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
