package signal

import "errors"

// Error codes surfaced to clients. Anything else collapses to internal
// with the detail logged server-side only.
const (
	ErrorBadRequest         = "bad-request"
	ErrorNotFound           = "not-found"
	ErrorInvalidState       = "invalid-state"
	ErrorIncompatibleCodecs = "incompatible-codecs"
	ErrorInternal           = "internal"
)

// Error pairs a client-visible code with the underlying cause. The code
// crosses the wire; the cause stays in the logs.
type Error struct {
	Code  string
	cause error
}

func NewError(code string, cause error) *Error {
	return &Error{Code: code, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.cause.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the client-visible code from an error chain, defaulting
// to internal.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrorInternal
}
