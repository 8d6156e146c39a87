// Package dataerr defines the error taxonomy shared by the store, the
// adapters and the data bindings.
//
// Record-level conditions (not found, conflicting id, invalid record) and
// backend failures are returned as *Error values and are always recoverable.
// Only CodeConfig is treated as fatal, and only at process start.
package dataerr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// CodeNotFound indicates an update or delete referenced an absent id.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict indicates an insert supplied an id already present in the table.
	CodeConflict Code = "CONFLICT"

	// CodeInvalidRecord indicates a record or patch failed validation.
	CodeInvalidRecord Code = "INVALID_RECORD"

	// CodeAuth indicates a failed authentication call.
	CodeAuth Code = "AUTH"

	// CodeBackend indicates the backing service failed.
	CodeBackend Code = "BACKEND"

	// CodeConfig indicates an unusable process configuration.
	CodeConfig Code = "CONFIG"
)

// Error is the structured error returned across the adapter boundary.
type Error struct {
	Code    Code
	Message string
	Table   string
	ID      string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	switch {
	case e.Table != "" && e.ID != "":
		return fmt.Sprintf("%s: %s (table=%s, id=%s)", e.Code, msg, e.Table, e.ID)
	case e.Table != "":
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, msg, e.Table)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so errors.Is(err, dataerr.ErrNotFound)
// works on wrapped errors.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Code-only sentinels for errors.Is.
var (
	ErrNotFound      = &Error{Code: CodeNotFound}
	ErrConflict      = &Error{Code: CodeConflict}
	ErrInvalidRecord = &Error{Code: CodeInvalidRecord}
	ErrAuth          = &Error{Code: CodeAuth}
	ErrBackend       = &Error{Code: CodeBackend}
	ErrConfig        = &Error{Code: CodeConfig}
)

// NotFound reports an absent record.
func NotFound(table, id string) *Error {
	return &Error{Code: CodeNotFound, Message: "record not found", Table: table, ID: id}
}

// Conflict reports a duplicate id on insert.
func Conflict(table, id string) *Error {
	return &Error{Code: CodeConflict, Message: "record id already exists", Table: table, ID: id}
}

// InvalidRecord reports a record that cannot be stored.
func InvalidRecord(table, message string) *Error {
	return &Error{Code: CodeInvalidRecord, Message: message, Table: table}
}

// Auth reports a failed sign-in or sign-up.
func Auth(message string) *Error {
	return &Error{Code: CodeAuth, Message: message}
}

// Backend wraps a failure of the backing service.
func Backend(message string, cause error) *Error {
	return &Error{Code: CodeBackend, Message: message, Cause: cause}
}

// Config reports an unusable configuration value.
func Config(message string) *Error {
	return &Error{Code: CodeConfig, Message: message}
}

// CodeOf extracts the code of the first *Error in the chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err carries CodeConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsConfig reports whether err carries CodeConfig.
func IsConfig(err error) bool { return errors.Is(err, ErrConfig) }
