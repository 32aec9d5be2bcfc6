// Package fault defines the error taxonomy surfaced across the boundary.
// Every error that reaches a client carries one of these kinds so front ends
// can tell, for example, a failed verification apart from a generic write
// error.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a stable, wire-visible error class.
type Kind string

const (
	PathRejected    Kind = "path_rejected"
	CompileError    Kind = "compile_error"
	RunFault        Kind = "run_fault"
	Timeout         Kind = "timeout"
	Verification    Kind = "verification_error"
	ImportParse     Kind = "import_parse_error"
	ImportCollision Kind = "import_collision"
	ProjectNotOpen  Kind = "project_not_open"
	NotFound        Kind = "not_found"
	InvalidArgument Kind = "invalid_argument"
	Internal        Kind = "internal"
)

// Error is a classified error. Err, when set, is the underlying cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New returns a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. The message is prefixed to the cause's text.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	if e.msg == "" {
		return e.err.Error()
	}
	return e.msg + ": " + e.err.Error()
}

// Kind returns the error class.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.err }

// kinded is implemented by every classified error, including the
// package-local ones that carry extra fields (compile diagnostics).
type kinded interface {
	Kind() Kind
}

// KindOf returns the class of the first classified error in err's chain,
// or Internal when there is none.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Internal
}

// Is reports whether err's class is kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
