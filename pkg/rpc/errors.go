package rpc

import (
	stderrors "errors"
	"fmt"

	"github.com/notewell/notewell-go/pkg/errors"
)

// Exception kinds carried on the wire.
const (
	KindUser     = "USER"
	KindSystem   = "SYSTEM"
	KindNotFound = "NOT_FOUND"
)

// Wire error codes for user exceptions.
const (
	CodeAuthExpired      = "AUTH_EXPIRED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeRateLimitReached = "RATE_LIMIT_REACHED"
	CodeBadDataFormat    = "BAD_DATA_FORMAT"
	CodeDataRequired     = "DATA_REQUIRED"
	CodeInvalidAuth      = "INVALID_AUTH"
)

// ServiceError is the typed exception generated stubs raise when the server
// returns a protocol-level failure. Transport failures are returned as plain
// errors instead.
type ServiceError struct {
	// Kind is one of KindUser, KindSystem, KindNotFound.
	Kind string

	// Code refines user exceptions, e.g. CodeAuthExpired.
	Code string

	// Parameter names the request field the server blamed, when any.
	Parameter string

	// Message is the server-provided message.
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("%s(%s) on %q: %s", e.Kind, e.Code, e.Parameter, e.Message)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
}

// wireCodeToErrorCode maps wire user-exception codes onto the SDK taxonomy.
func wireCodeToErrorCode(code string) string {
	switch code {
	case CodeAuthExpired, CodeInvalidAuth:
		return errors.CodeAuthExpired
	case CodePermissionDenied:
		return errors.CodePermissionDenied
	case CodeRateLimitReached:
		return errors.CodeRateLimited
	default:
		return errors.CodeBadRequest
	}
}

// TranslateError converts a stub-layer error into the SDK taxonomy.
// Already-typed errors pass through unchanged; ServiceErrors map by kind;
// anything else is a transport failure.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return err
	}

	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		switch svcErr.Kind {
		case KindUser:
			code := wireCodeToErrorCode(svcErr.Code)
			// An expired/invalid auth error only forces re-authentication
			// when the server blamed the auth token itself.
			if code == errors.CodeAuthExpired &&
				svcErr.Parameter != "" && svcErr.Parameter != "authenticationToken" {
				code = errors.CodeBadRequest
			}
			return errors.NewUserError(code, svcErr.Parameter, svcErr.Message, svcErr)
		case KindNotFound:
			return errors.NewNotFoundError(svcErr.Message, svcErr)
		default:
			return errors.NewSystemError(svcErr.Message, svcErr)
		}
	}

	return errors.NewTransportError("rpc call failed", err)
}
