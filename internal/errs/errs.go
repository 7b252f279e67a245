// Package errs holds the error kinds surfaced to the operator.
package errs

import (
	"errors"
	"fmt"
	"os"
)

// Kind classifies an error for reporting
type Kind int

const (
	Unknown Kind = iota
	// Permission means the process is not elevated or a path is not writable
	Permission
	// NotFound means a required tool, binary or helper is absent
	NotFound
	// Validation means a malformed descriptor or unusable tool output
	Validation
	// ExternalTool means a required external command failed or timed out
	ExternalTool
)

func (k Kind) String() string {
	switch k {
	case Permission:
		return "PermissionError"
	case NotFound:
		return "NotFoundError"
	case Validation:
		return "ValidationError"
	case ExternalTool:
		return "ExternalToolError"
	default:
		return "Error"
	}
}

// Sentinels usable with errors.Is
var (
	ErrPermission   = &Error{Kind: Permission}
	ErrNotFound     = &Error{Kind: NotFound}
	ErrValidation   = &Error{Kind: Validation}
	ErrExternalTool = &Error{Kind: ExternalTool}
)

// Error is a classified error
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var s string
	if e.Op != "" {
		s = e.Op + ": "
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		s += fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		s += e.Msg
	case e.Err != nil:
		s += e.Err.Error()
	default:
		s += e.Kind.String()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// New creates a classified error
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err; a nil err stays nil
func Wrap(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Raw filesystem permission/not-exist errors map to Permission/NotFound.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, os.ErrPermission):
		return Permission
	case errors.Is(err, os.ErrNotExist):
		return NotFound
	}
	return Unknown
}
