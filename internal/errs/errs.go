// Package errs defines the error taxonomy shared across the engine:
// OutOfRange, InvalidArgument, IOError, and Corruption. The fifth kind
// the design calls out, program error, is not a value in this package —
// refcount violations, double-release, and arena use-after-free panic
// instead, since those indicate a bug in the caller, not a recoverable
// condition.
package errs

import "github.com/pkg/errors"

// Kind classifies an Error.
type Kind int

const (
	// OutOfRange: an address, axis, or slot index is outside its valid domain.
	OutOfRange Kind = iota
	// InvalidArgument: zero dimension, inverted interval, charge exceeds ceiling.
	InvalidArgument
	// IOError: read/write of a backing file failed.
	IOError
	// Corruption: deserialized metadata violates an invariant.
	Corruption
)

func (k Kind) String() string {
	switch k {
	case OutOfRange:
		return "out_of_range"
	case InvalidArgument:
		return "invalid_argument"
	case IOError:
		return "io_error"
	case Corruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Error is the engine's error value; Kind lets callers branch on the
// failure category without string matching, and the wrapped cause (via
// github.com/pkg/errors) preserves an underlying I/O error for inspection.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.msg
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }

// New constructs an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Wrap constructs an Error of the given kind, wrapping cause with
// github.com/pkg/errors so the stack trace at the wrap site is retained.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, msg: msg, err: errors.Wrap(cause, msg)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
