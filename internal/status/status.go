// Package status defines the gateway's single error taxonomy. Leaf ports
// (persistence, Wi-Fi, Zigbee) return native errors; a single translation
// layer here maps them to a Kind at the boundary where it matters (the
// HTTP response envelope and the job queue's result JSON).
package status

import (
	"errors"
	"net/http"
)

// Kind is the gateway's sum-type error classification.
type Kind int

const (
	Ok Kind = iota
	InvalidArg
	NotFound
	NoMem
	NotSupported
	InvalidState
	Timeout
	Fail
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case InvalidArg:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case NoMem:
		return "no_memory"
	case NotSupported:
		return "not_supported"
	case InvalidState:
		return "invalid_state"
	case Timeout:
		return "timeout"
	default:
		return "fail"
	}
}

// Error is the gateway's canonical error type. Use New/Wrap to build one;
// use As/KindOf to recover the Kind from an arbitrary error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a status error with a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a Kind to an underlying error.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Fail when err does not
// carry one.
func KindOf(err error) Kind {
	if err == nil {
		return Ok
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Fail
}

// HTTPCode maps a Kind to the HTTP status code the envelope uses.
func HTTPCode(k Kind) int {
	switch k {
	case Ok:
		return http.StatusOK
	case InvalidArg:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case InvalidState:
		return http.StatusConflict
	case NoMem:
		return http.StatusServiceUnavailable
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
