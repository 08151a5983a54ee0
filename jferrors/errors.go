// Package jferrors provides the shared error taxonomy used across the
// journal engine packages: a small closed set of kinds, one wrapping error
// type, and a KindOf helper that extracts the Kind from an error chain.
package jferrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the categories the engine's callers
// need to branch on.
type Kind string

const (
	KindFormat      Kind = "format"      // invalid magic, object type, size, or offset
	KindLookup      Kind = "lookup"      // missing hash table entry, empty chain, unset cursor
	KindConcurrency Kind = "concurrency" // value guard still in use, SIGBUS handler failure
	KindFilter      Kind = "filter"      // malformed filter expression, invalid field
	KindCompression Kind = "compression" // unknown method, decompressor failure
	KindIO          Kind = "io"          // propagated OS failure
)

// Error wraps a cause with a Kind and optional structured context.
type Error struct {
	Kind    Kind
	Op      string
	Cause   error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Details, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, jferrors.ErrFormat)-style comparisons by
// matching on Kind when the target is itself a *Error with no cause set.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Cause == nil && t.Op == "" && t.Details == "" {
		return e.Kind == t.Kind
	}
	return false
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, details string) *Error {
	return &Error{Kind: kind, Op: op, Details: details}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// WrapDetails is Wrap plus structured context appended to the message.
func WrapDetails(kind Kind, op, details string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause, Details: details}
}

// Sentinel markers usable with errors.Is via the Kind-only comparison in Is.
var (
	ErrFormat      = &Error{Kind: KindFormat}
	ErrLookup      = &Error{Kind: KindLookup}
	ErrConcurrency = &Error{Kind: KindConcurrency}
	ErrFilter      = &Error{Kind: KindFilter}
	ErrCompression = &Error{Kind: KindCompression}
	ErrIO          = &Error{Kind: KindIO}
)

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
