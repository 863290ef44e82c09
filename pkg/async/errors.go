package async

import (
	"errors"
	"fmt"
)

// Sentinel errors for async resolution failures.
// Use errors.Is() to check for these errors.
var (
	// ErrProtocolViolation is returned when required async metadata is missing,
	// e.g. a 202 Accepted response without a Location header.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrMalformedHeader is returned when a header is present but cannot be parsed.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrInvalidState is returned when an operation is not legal in the
	// current lifecycle state (composing after dispatch, executing twice).
	ErrInvalidState = errors.New("invalid state")
)

// Error describes a failed resolution or lifecycle step.
type Error struct {
	// Kind is one of the sentinel errors above.
	Kind error

	// Header is the offending header name, if any.
	Header string

	// Value is the offending header value, if any.
	Value string

	Message string
	Err     error
}

// NewError creates an Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("async %v: %s", e.Kind, e.Message)
	if e.Header != "" {
		msg = fmt.Sprintf("%s (%s: %q)", msg, e.Header, e.Value)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func malformedHeader(header, value string, err error) *Error {
	return &Error{
		Kind:    ErrMalformedHeader,
		Header:  header,
		Value:   value,
		Message: "cannot parse header",
		Err:     err,
	}
}
