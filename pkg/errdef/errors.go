// Package errdef defines the error taxonomy shared by every stratum component.
//
// Four kinds cover all synchronous failures: Conflict (uniqueness violation),
// NotFound (referenced entity absent or out of visible scope), InvalidReference
// (an edge or binding points at a non-existent or invisible target) and
// InvalidArgument (malformed input, unsupported operator pairing). A rejected
// relation check is a normal outcome and is never represented as an error.
package errdef

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the taxonomy classes.
type Kind int

const (
	// KindUnknown is the zero value; errors from outside the taxonomy map here.
	KindUnknown Kind = iota
	// KindConflict indicates a uniqueness violation (duplicate code, duplicate binding triple).
	KindConflict
	// KindNotFound indicates a referenced parent/domain/kind/item/relation is absent or invisible.
	KindNotFound
	// KindInvalidReference indicates a relation or binding points at a non-existent or invisible target.
	KindInvalidReference
	// KindInvalidArgument indicates malformed input or an unsupported operator/attribute pairing.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidReference:
		return "invalid_reference"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-classified error. It supports errors.As/Is and unwraps
// to any wrapped cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the taxonomy class of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

// Conflictf creates a Conflict error with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return &Error{kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a NotFound error with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// InvalidReferencef creates an InvalidReference error with a formatted message.
func InvalidReferencef(format string, args ...interface{}) error {
	return &Error{kind: KindInvalidReference, msg: fmt.Sprintf(format, args...)}
}

// InvalidArgumentf creates an InvalidArgument error with a formatted message.
func InvalidArgumentf(format string, args ...interface{}) error {
	return &Error{kind: KindInvalidArgument, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a taxonomy kind to an underlying error, preserving the cause
// for errors.Is/As inspection.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: err}
}

// KindOf extracts the taxonomy kind from an error chain, or KindUnknown if no
// taxonomy error is present.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsConflict reports whether the error chain contains a Conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports whether the error chain contains a NotFound error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidReference reports whether the error chain contains an InvalidReference error.
func IsInvalidReference(err error) bool { return KindOf(err) == KindInvalidReference }

// IsInvalidArgument reports whether the error chain contains an InvalidArgument error.
func IsInvalidArgument(err error) bool { return KindOf(err) == KindInvalidArgument }
