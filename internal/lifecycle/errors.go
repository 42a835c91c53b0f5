package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when no visit exists for the given id. Stores
	// implementing VisitStore and IdentityStore must map their own missing-row
	// condition onto this sentinel.
	ErrNotFound = errors.New("visit not found")

	// ErrHostNotFound covers both an unknown host and an ambiguous host-name
	// lookup; callers are not told which.
	ErrHostNotFound = errors.New("host not found")

	// ErrNotPending is returned by Decide when the visit has already been
	// decided (or never was pending, as with pre-approvals).
	ErrNotPending = errors.New("visit is not pending")

	// ErrInvalidState marks any other illegal transition attempt.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrUnauthorized means the acting identity does not own the visit.
	ErrUnauthorized = errors.New("not authorized for this visit")
)

// ValidationError collects every failing field of a create request so the
// caller sees them all in one response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// WindowError reports which pre-approval window rule was violated.
type WindowError struct {
	Reason string
}

func (e *WindowError) Error() string {
	return "invalid time window: " + e.Reason
}

func windowErrorf(format string, args ...interface{}) *WindowError {
	return &WindowError{Reason: fmt.Sprintf(format, args...)}
}
