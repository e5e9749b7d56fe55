package advisoryapi

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide how to render it and
// whether it is safe to retry.
type Kind int

const (
	// KindInternal covers failures outside the API taxonomy, e.g. a corrupt
	// local credential store.
	KindInternal Kind = iota
	// KindValidation is malformed local input caught before any request.
	KindValidation
	// KindAuth is an HTTP 401: the session is invalid or the code was rejected.
	KindAuth
	// KindServer is any other non-2xx response, message passed through.
	KindServer
	// KindNetwork means the request never completed. Always transient.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation error"
	case KindAuth:
		return "auth error"
	case KindServer:
		return "server error"
	case KindNetwork:
		return "network error"
	default:
		return "internal error"
	}
}

// Error is the single error type returned by the client and by the session
// and advisory layers built on top of it.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // user-facing text, verbatim from the server when it sent one
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the Kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsAuth reports whether err is a rejected session or code.
func IsAuth(err error) bool {
	return err != nil && KindOf(err) == KindAuth
}

// IsTransient reports whether err should leave persisted state untouched.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindNetwork
}
