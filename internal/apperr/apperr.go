// Package apperr defines the error taxonomy that the RPC dispatcher maps
// onto wire error-type strings. Every layer below the dispatcher returns
// plain errors; only the dispatcher needs to know these kinds exist.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error-type values the wire protocol recognises.
type Kind string

const (
	Malformed        Kind = "malformed"
	UnknownOp        Kind = "unknown-op"
	GraphNotFound    Kind = "graph-not-found"
	VersionMismatch  Kind = "version-mismatch"
	StorageError     Kind = "storage-error"
	Timeout          Kind = "timeout"
	InternalError    Kind = "internal-error"
)

// Error wraps an underlying cause with a wire-visible Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap is a convenience for apperr.New with a formatted message.
func Wrap(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// KindOf resolves the wire error-type for any error. Errors not produced
// through this package map to InternalError, matching spec §7's
// catch-all policy.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return InternalError
}

// GraphNotFoundf builds a graph-not-found error for the named graph.
func GraphNotFoundf(graphID string) *Error {
	return Wrap(GraphNotFound, "", "graph %q is not registered", graphID)
}

// UnknownOpf builds an unknown-op error for the given op name.
func UnknownOpf(op string) *Error {
	return Wrap(UnknownOp, op, "unrecognised operation %q", op)
}
