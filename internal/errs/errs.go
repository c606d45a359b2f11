// Package errs defines the error kinds returned by the workflow core.
//
// Every rejected operation carries a stable Kind plus a human-readable message.
// Callers test for a kind with errors.Is against the sentinel values:
//
//	if errors.Is(err, errs.ErrForbidden) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of workflow error
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindDuplicateMember   Kind = "duplicate_member"
	KindConflict          Kind = "conflict"
	KindDependencyFailure Kind = "dependency_failure"
)

// Sentinels for errors.Is
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrDuplicateMember   = &Error{Kind: KindDuplicateMember}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrDependencyFailure = &Error{Kind: KindDependencyFailure}
)

// Error is a workflow error with a stable kind
type Error struct {
	Kind    Kind
	Message string
	// Reconcile is set when the operation may have left a publication half-applied
	Reconcile bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation is shorthand for New(KindValidation, ...)
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// Forbidden is shorthand for New(KindForbidden, ...)
func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

// NotFound is shorthand for New(KindNotFound, ...)
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Dependency wraps a collaborator failure
func Dependency(err error, format string, args ...any) *Error {
	return Wrap(KindDependencyFailure, err, format, args...)
}

// KindOf returns the kind of err, or "" if err carries none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NeedsReconcile reports whether err flags a possibly half-applied publication
func NeedsReconcile(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Reconcile
	}
	return false
}

// Message returns the human-readable reason carried by err
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
