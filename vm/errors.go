package vm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fault.
type ErrorKind int

const (
	// SyntaxError is reported by the parser.
	SyntaxError ErrorKind = iota
	// ResolutionError is an identifier that resolves nowhere, reported at compile time.
	ResolutionError
	// TypeError is an operator or built-in applied to the wrong kinds or arity.
	TypeError
	// ResourceError is stack or frame exhaustion, or an exhausted step budget.
	ResourceError
	// InternalError marks a broken invariant inside the engine itself.
	InternalError
)

var errorKindNames = map[ErrorKind]string{
	SyntaxError:     "SyntaxError",
	ResolutionError: "ResolutionError",
	TypeError:       "TypeError",
	ResourceError:   "ResourceError",
	InternalError:   "InternalError",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinel errors, one per kind. Every *Error unwraps to exactly one of them.
var (
	ErrSyntax     = errors.New("syntax error")
	ErrResolution = errors.New("resolution error")
	ErrType       = errors.New("type error")
	ErrResource   = errors.New("resource error")
	ErrInternal   = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	SyntaxError:     ErrSyntax,
	ResolutionError: ErrResolution,
	TypeError:       ErrType,
	ResourceError:   ErrResource,
	InternalError:   ErrInternal,
}

// Error is the Monkey error value. It is both a Value, so faults can be
// handed to the host as data, and a Go error.
type Error struct {
	Kind    ErrorKind
	Message string
	Line    int   // 1-based source line, 0 when unknown
	Column  int   // 1-based source column, 0 when unknown
	Cause   error // optional underlying error (e.g. context cancellation)
}

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an *Error of the given kind around cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	e := Errorf(kind, format, args...)
	e.Cause = cause
	return e
}

// At returns a copy of e positioned at line/column.
func (e *Error) At(line, column int) *Error {
	c := *e
	c.Line = line
	c.Column = column
	return &c
}

func (e *Error) Type() Type      { return ErrorType }
func (e *Error) Inspect() string { return "ERROR: " + e.Message }

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Kind, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the kind sentinel and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// AsError extracts a *Error from err, converting foreign errors to InternalError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapError(InternalError, err, "%v", err)
}

// KindOf reports the kind of err, or InternalError for foreign errors.
func KindOf(err error) ErrorKind {
	return AsError(err).Kind
}
