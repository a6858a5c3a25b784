// Package errors provides error handling for tempo.
//
// This package re-exports github.com/cockroachdb/errors, so every error
// created or wrapped here carries a stack trace. Job failure traces are
// rendered with "%+v", which prints that stack.
//
// Usage:
//
//	if err := store.MarkWorking(ctx, id, now); err != nil {
//	    return errors.Wrapf(err, "mark job %d working", id)
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions and panics
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors. Wrap them with errors.Wrap() to add context while
// keeping errors.Is() working.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates the resource is in a state that forbids the operation
	ErrConflict = New("resource conflict")

	// ErrStore marks failures of the persistent job store itself.
	// These are the only errors allowed to abort a scheduler pass.
	ErrStore = New("job store unavailable")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// IsConflictError checks if an error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// IsStoreError reports whether err was marked as a store failure.
func IsStoreError(err error) bool {
	return err != nil && Is(err, ErrStore)
}

// MarkStore wraps err with msg and marks it as a store failure.
// Returns nil for a nil err.
func MarkStore(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, msg), ErrStore)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, fmt.Sprintf(format, args...))
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Trace renders err with its full cause chain and stack trace.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}
