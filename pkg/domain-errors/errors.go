// Package domainerrors provides coded errors for the service and transport
// layers. Stores return sentinel errors (pkg/platform/sentinel); services
// translate them into coded errors here so handlers can map them onto HTTP
// responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers. Codes are part of the API surface:
// they appear verbatim in HTTP error envelopes.
type Code string

const (
	// CodeBadRequest covers malformed requests (unparseable body, bad path params).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput covers values that fail parsing at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation covers well-formed input rejected by business rules,
	// e.g. a duplicate role name.
	CodeValidation Code = "validation_error"
	// CodeNotFound covers references to entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict covers mutations blocked by a precondition, e.g. any
	// attempt to modify a system role.
	CodeConflict Code = "conflict"
	// CodeConcurrency covers lost optimistic-update races. Retryable.
	CodeConcurrency Code = "concurrency_conflict"
	// CodeInvariantViolation marks broken model invariants. Services translate
	// these before they reach a caller.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnauthorized covers missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden covers authenticated callers lacking permission.
	CodeForbidden Code = "forbidden"
	// CodeTimeout covers aborted work due to deadline expiry.
	CodeTimeout Code = "timeout"
	// CodeInternal covers storage failures and everything else the caller
	// cannot fix. Detail is never surfaced.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. It optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable via errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, or "" when err carries none.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
