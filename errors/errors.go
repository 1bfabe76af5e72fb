// Package errors provides error handling for idjoin.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrStorage) {
//	    // handle persistence failure
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
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
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors for the materialization cache.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrInconsistentIDSet indicates that the persisted row count for a key
	// disagrees with the size of the id set presented for reuse. This means
	// either a key collision or corrupted storage; it is fatal and must not
	// be retried.
	ErrInconsistentIDSet = New("persisted id set is inconsistent with its key")

	// ErrStorage wraps any failure from an independent-transaction
	// persistence call (insert, delete, reset). The triggering transaction
	// has been rolled back; the caller's ambient transaction is unaffected.
	ErrStorage = New("id set storage operation failed")
)

// IsConsistencyError checks if an error is or wraps ErrInconsistentIDSet.
func IsConsistencyError(err error) bool {
	return err != nil && Is(err, ErrInconsistentIDSet)
}

// IsStorageError checks if an error is or wraps ErrStorage.
func IsStorageError(err error) bool {
	return err != nil && Is(err, ErrStorage)
}

// NewConsistencyError creates a consistency error with a formatted message.
func NewConsistencyError(format string, args ...interface{}) error {
	return Wrap(ErrInconsistentIDSet, Newf(format, args...).Error())
}

// WrapStorage wraps a persistence failure as a storage error with context.
func WrapStorage(err error, context string) error {
	return Wrap(Wrap(ErrStorage, err.Error()), context)
}
