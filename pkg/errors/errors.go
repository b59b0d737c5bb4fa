// Package errors defines the typed error taxonomy surfaced by the SDK.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Error types
const (
	// ErrUser is returned when the server rejects the caller's input,
	// credentials, or permissions
	ErrUser = "user"

	// ErrSystem is returned when the server reports an internal malfunction
	ErrSystem = "system"

	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = "not_found"

	// ErrTransport is returned when the connection or I/O to the server fails
	ErrTransport = "transport"

	// ErrVersionUnsupported is returned when the server rejects the client's
	// protocol version
	ErrVersionUnsupported = "version_unsupported"

	// ErrInvalidState is returned on programmer misuse, e.g. logging out of a
	// session that is not logged in
	ErrInvalidState = "invalid_state"
)

// User error codes, carried on ErrUser errors. They mirror the server's
// error codes for the subcases the SDK reacts to.
const (
	// CodeAuthExpired marks an expired or revoked auth token. The dispatch
	// gateway treats this code as a signal to force re-authentication.
	CodeAuthExpired = "auth_expired"

	// CodePermissionDenied marks an operation the account may not perform
	CodePermissionDenied = "permission_denied"

	// CodeRateLimited marks a request rejected for exceeding rate limits
	CodeRateLimited = "rate_limited"

	// CodeBadRequest marks malformed or otherwise invalid input
	CodeBadRequest = "bad_request"
)

// Error represents an error surfaced by the SDK
type Error struct {
	// Type is the error type
	Type string

	// Code refines ErrUser errors; empty for other types
	Code string

	// Parameter names the request field the server blamed, when it did
	Parameter string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewUserError creates a new user error with the given code
func NewUserError(code, parameter, message string, cause error) *Error {
	return &Error{
		Type:      ErrUser,
		Code:      code,
		Parameter: parameter,
		Message:   message,
		Cause:     cause,
	}
}

// NewSystemError creates a new system error
func NewSystemError(message string, cause error) *Error {
	return NewError(ErrSystem, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewTransportError creates a new transport error
func NewTransportError(message string, cause error) *Error {
	return NewError(ErrTransport, message, cause)
}

// NewVersionUnsupportedError creates a new version unsupported error
func NewVersionUnsupportedError(message string, cause error) *Error {
	return NewError(ErrVersionUnsupported, message, cause)
}

// NewInvalidStateError creates a new invalid state error
func NewInvalidStateError(message string, cause error) *Error {
	return NewError(ErrInvalidState, message, cause)
}

// as extracts an *Error from err, matching through wrapping.
func as(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// IsUser checks if the error is a user error
func IsUser(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrUser
}

// IsSystem checks if the error is a system error
func IsSystem(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrSystem
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrNotFound
}

// IsTransport checks if the error is a transport error
func IsTransport(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrTransport
}

// IsVersionUnsupported checks if the error is a version unsupported error
func IsVersionUnsupported(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrVersionUnsupported
}

// IsInvalidState checks if the error is an invalid state error
func IsInvalidState(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrInvalidState
}

// IsAuthExpired checks if the error is a user error carrying the auth
// expired code. Callers use this to decide whether a failed call should
// force the session back to the login screen.
func IsAuthExpired(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrUser && e.Code == CodeAuthExpired
}

// IsPermissionDenied checks if the error is a permission denied user error
func IsPermissionDenied(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrUser && e.Code == CodePermissionDenied
}

// IsRateLimited checks if the error is a rate limited user error
func IsRateLimited(err error) bool {
	e, ok := as(err)
	return ok && e.Type == ErrUser && e.Code == CodeRateLimited
}
