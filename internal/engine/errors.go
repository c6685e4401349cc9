package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dayplan/internal/schedule"
)

// Error is returned by every engine operation that fails.
//
// No-op outcomes (undo at the oldest snapshot, a template whose slots are
// all occupied) are reported through result values, never as an Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation: "apply", "add", "reschedule", "undo", "redo".
	Op string

	// Message is a human-readable description.
	Message string

	// EntryID identifies the affected entry, if any.
	EntryID string

	// Failed lists the titles of entries that were not persisted during a
	// best-effort batch insert.
	Failed []string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeValidation rejects malformed input before any mutation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodePersistence reports that the remote store rejected or failed
	// a write.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeNotFound reports an unknown entry id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s", e.Op, e.Code, e.Message)
	if e.EntryID != "" {
		fmt.Fprintf(&b, " (entry=%s)", e.EntryID)
	}
	if len(e.Failed) > 0 {
		fmt.Fprintf(&b, " (failed=%s)", strings.Join(e.Failed, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsPersistence reports whether err is a persistence error.
func IsPersistence(err error) bool {
	return hasCode(err, ErrCodePersistence)
}

// IsNotFound reports whether err refers to an unknown entry.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func validationError(op string, err error) *Error {
	msg := "invalid input"
	if errors.Is(err, schedule.ErrInvalid) {
		msg = strings.TrimPrefix(err.Error(), schedule.ErrInvalid.Error()+": ")
	}
	return &Error{Code: ErrCodeValidation, Op: op, Message: msg, Err: err}
}

func persistenceError(op, entryID string, err error) *Error {
	return &Error{
		Code:    ErrCodePersistence,
		Op:      op,
		Message: "remote store write failed",
		EntryID: entryID,
		Err:     err,
	}
}

func notFoundError(op, entryID string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Op:      op,
		Message: "no such entry",
		EntryID: entryID,
	}
}
