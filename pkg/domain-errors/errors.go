// Package domainerrors carries coded domain errors across service boundaries.
// Services construct these; transport layers translate codes to HTTP statuses
// without inspecting message text.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error for callers. The code, not the message,
// decides retry behavior: conflict means retry with fresh state, unavailable
// means try again later, everything else is terminal.
type Code string

const (
	// CodeForbidden is a policy denial. The message never explains which rule
	// matched beyond the action being denied.
	CodeForbidden Code = "forbidden"
	// CodeNotFound covers unresolvable record, request, or actor ids.
	CodeNotFound Code = "not_found"
	// CodeInvalidInput covers malformed patches and missing required fields.
	CodeInvalidInput Code = "invalid_input"
	// CodeConflict is a lost compare-and-set race; retryable with a fresh read.
	CodeConflict Code = "conflict"
	// CodeAlreadyPending rejects a correction request while another is open.
	CodeAlreadyPending Code = "already_pending"
	// CodeUnavailable is a transient storage fault surfaced after retries.
	CodeUnavailable Code = "unavailable"
	// CodeUnauthorized is a missing or invalid identity token, distinct from a
	// policy denial for an authenticated caller.
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Error is the concrete coded error. Wrapped causes are preserved for logs but
// never serialized to clients.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with a caller-facing message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause to a coded error. The cause stays server-side.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode used at handler call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so transport never leaks internals.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller should retry at all. Conflict requires
// a fresh read first; unavailable is a plain retry-later.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeUnavailable:
		return true
	default:
		return false
	}
}

// ToHTTPStatus maps a code to its HTTP status. Keeping the mapping here keeps
// handlers free of status arithmetic.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict, CodeAlreadyPending:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
