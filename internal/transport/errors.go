package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure. The coordinator never receives a raw
// fault from a sync attempt; everything is converted to an *Error at the
// client boundary.
type Kind int

const (
	// KindUnavailable means the transport had no usable connection and no
	// I/O was attempted.
	KindUnavailable Kind = iota
	// KindNetwork covers timeouts, resets and 5xx responses. Retryable on
	// the next cycle from the unchanged watermark.
	KindNetwork
	// KindBadRequest is a 400: the payload shape itself is rejected.
	// Retrying the same payload cannot succeed.
	KindBadRequest
	// KindCodec is a serialization or deserialization failure. Not
	// retryable, distinct from network errors.
	KindCodec
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindBadRequest:
		return "bad_request"
	case KindCodec:
		return "codec"
	default:
		return "unavailable"
	}
}

// Error is a classified transport failure tagged with the subsystem that
// produced it.
type Error struct {
	Kind      Kind
	Subsystem string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Subsystem, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Subsystem, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a classified transport error.
func NewError(kind Kind, subsystem string, err error) *Error {
	return &Error{Kind: kind, Subsystem: subsystem, Err: err}
}

// Errorf is NewError with a formatted message.
func Errorf(kind Kind, subsystem, format string, args ...any) *Error {
	return &Error{Kind: kind, Subsystem: subsystem, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, or KindNetwork when err is not a
// transport error (unknown failures are safe to retry).
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindNetwork
}

// Retryable reports whether the next timer tick should retry from the
// unchanged watermark.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindUnavailable:
		return true
	}
	return false
}
