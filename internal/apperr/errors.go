// Package apperr defines the connector's error taxonomy and its mapping onto
// HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Wrap them with fmt.Errorf("...: %w") or New and test with errors.Is.
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrValidation       = errors.New("validation error")
	ErrSubmission       = errors.New("submission failure")
	ErrUpstreamFetch    = errors.New("upstream fetch error")
)

// Error carries a caller-facing message alongside one of the sentinel kinds.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// New builds an Error of the given kind. cause may be nil.
func New(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Malformed is shorthand for New(ErrMalformedPayload, ...).
func Malformed(message string, cause error) *Error {
	return New(ErrMalformedPayload, message, cause)
}

// Validation is shorthand for New(ErrValidation, ...).
func Validation(message string, cause error) *Error {
	return New(ErrValidation, message, cause)
}

// Submission is shorthand for New(ErrSubmission, ...).
func Submission(message string, cause error) *Error {
	return New(ErrSubmission, message, cause)
}

// UpstreamFetch is shorthand for New(ErrUpstreamFetch, ...).
func UpstreamFetch(message string, cause error) *Error {
	return New(ErrUpstreamFetch, message, cause)
}

// HTTPStatus maps an error onto the status code returned to webhook callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedPayload), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrSubmission), errors.Is(err, ErrUpstreamFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing text for err. Errors outside the taxonomy
// are reported generically so internals do not leak to webhook callers.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "Malformed payload"
	case errors.Is(err, ErrValidation):
		return "Validation failed"
	case errors.Is(err, ErrSubmission):
		return "Failed to submit features"
	case errors.Is(err, ErrUpstreamFetch):
		return "Failed to fetch upstream CAD state"
	default:
		return "Internal server error"
	}
}
