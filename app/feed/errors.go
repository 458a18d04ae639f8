package feed

import (
	"errors"
	"fmt"
)

// ErrDone is returned by Iterator.Next once a sequence is exhausted.
var ErrDone = errors.New("no more records")

// ErrSourceDisabled is returned when a disabled source is asked for by name.
var ErrSourceDisabled = errors.New("source is disabled")

// TransportError reports a failure reaching a source: the request could not
// be performed or the source answered with a non-200 status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type DecodeErrorKind int

const (
	// ParseFailure means the body is not a well-formed document.
	ParseFailure DecodeErrorKind = iota + 1
	// MissingFields means the document parsed but lacks required structure.
	MissingFields
)

func (k DecodeErrorKind) String() string {
	switch k {
	case ParseFailure:
		return "parse failure"
	case MissingFields:
		return "missing fields"
	default:
		return "unknown"
	}
}

// DecodeError reports a malformed or structurally incomplete response body.
// Message and Code carry the underlying parser's message and position.
type DecodeError struct {
	URL     string
	Kind    DecodeErrorKind
	Code    int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("failed to decode %s: %s: %s (code %d)", e.URL, e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("failed to decode %s: %s: %s", e.URL, e.Kind, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsDecodeError reports whether err wraps a *DecodeError of the given kind.
// A zero kind matches any decode error.
func IsDecodeError(err error, kind DecodeErrorKind) bool {
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		return false
	}
	return kind == 0 || decodeErr.Kind == kind
}
