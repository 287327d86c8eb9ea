package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the request handler can map it to a response
// code with a single switch.
type Kind int

const (
	// KindUnexpected covers bugs and unmodelled conditions.
	KindUnexpected Kind = iota
	// KindValidation is a client-correctable payload problem.
	KindValidation
	// KindAuthentication means the caller could not be identified.
	KindAuthentication
	// KindAuthorization means the caller is known but not allowed.
	KindAuthorization
	// KindTransport is an infrastructure failure talking to a collaborator.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindTransport:
		return "transport"
	default:
		return "unexpected"
	}
}

// Error is a classified failure. Message is safe to return to callers; Err
// carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Authentication returns a KindAuthentication error.
func Authentication(msg string) error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

// Authorization returns a KindAuthorization error.
func Authorization(msg string) error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

// Transport wraps a collaborator failure as KindTransport.
func Transport(msg string, err error) error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

// Unexpected wraps err as KindUnexpected.
func Unexpected(msg string, err error) error {
	return &Error{Kind: KindUnexpected, Message: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain. Untyped errors
// are unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// StatusCode maps a kind to its HTTP status code.
func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
