// Package mberr defines the error kinds surfaced by the core: index store,
// inventory, solver and installer all fail through these, never through
// ad-hoc error strings, so a collaborator (the CLI) can decide how to react
// without parsing messages.
package mberr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// NotFound covers a missing package in an index, a missing file in a
	// repository, or a missing key in configuration.
	NotFound Kind = iota
	// InvalidRef covers a write/push/revert attempted on a tag ref.
	InvalidRef
	// Corrupt covers an index or cache document that fails to parse.
	Corrupt
	// Upstream covers a non-2xx HTTP response or a Git transport failure.
	Upstream
	// Unsolvable covers a solver that could not satisfy the constraints.
	Unsolvable
	// IO covers a local filesystem failure.
	IO
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case InvalidRef:
		return "InvalidRef"
	case Corrupt:
		return "Corrupt"
	case Upstream:
		return "Upstream"
	case Unsolvable:
		return "Unsolvable"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised throughout the core. It carries a
// Kind for programmatic dispatch and a human-readable message; Cause, when
// present, is the underlying error that triggered it.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a Kind-tagged error with no underlying cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and a message to an existing error, preserving it as
// Cause. If err is nil, Wrap returns nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Cause: errors.WithStack(err)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: errors.WithStack(err)}
}

// Is reports whether err is an *Error of the given Kind, looking through
// Unwrap chains.
func Is(err error, kind Kind) bool {
	var me *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			me = e
			break
		}
		err = errors.Unwrap(err)
	}
	return me != nil && me.Kind == kind
}
