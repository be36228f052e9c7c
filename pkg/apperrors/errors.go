// Package apperrors defines the error kinds shared by every lunchbox service.
//
// Each kind is a sentinel matched with errors.Is. Errors built with New or
// Newf carry a user-displayable message and unwrap to their kind, so a
// handler can both classify the failure and show the message unchanged.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput is returned for malformed dates, negative counts and
	// other rejected arguments. Nothing is written when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a payment, order, account or off-day is missing
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when a record belongs to another user
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDataIntegrity is returned when stored records break an invariant,
	// e.g. a duplicated checkout session id or an order payment without its order
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrUnauthenticated is returned when no verified identity is attached to a request
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error is a kinded error with a message safe to show to the end user
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the kind so errors.Is(err, ErrNotFound) works
func (e *Error) Unwrap() error {
	return e.Kind
}

// New creates a kinded error
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a kinded error with a formatted message
func Newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput is shorthand for Newf(ErrInvalidInput, ...)
func InvalidInput(format string, args ...interface{}) error {
	return Newf(ErrInvalidInput, format, args...)
}

// NotFound is shorthand for Newf(ErrNotFound, ...)
func NotFound(format string, args ...interface{}) error {
	return Newf(ErrNotFound, format, args...)
}

// PermissionDenied is shorthand for Newf(ErrPermissionDenied, ...)
func PermissionDenied(format string, args ...interface{}) error {
	return Newf(ErrPermissionDenied, format, args...)
}

// DataIntegrity is shorthand for Newf(ErrDataIntegrity, ...)
func DataIntegrity(format string, args ...interface{}) error {
	return Newf(ErrDataIntegrity, format, args...)
}

// Unauthenticated is shorthand for Newf(ErrUnauthenticated, ...)
func Unauthenticated(format string, args ...interface{}) error {
	return Newf(ErrUnauthenticated, format, args...)
}

// StatusCode maps an error to the HTTP status a handler should answer with.
// Unclassified errors are internal errors.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDataIntegrity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-displayable message of a kinded error, or a
// generic message for anything else so internal details are not leaked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
