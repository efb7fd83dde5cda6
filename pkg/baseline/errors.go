package baseline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow errors for the external interface.
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindForbidden         ErrorKind = "forbidden"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindValidation        ErrorKind = "validation_error"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInternal          ErrorKind = "internal"
)

// Blocker names a module that prevents submission and why.
type Blocker struct {
	ModuleType ModuleType `json:"moduleType"`
	Reason     string     `json:"reason"`
}

// Error is the workflow error taxonomy. Every failure crossing the service
// boundary is one of these; raw storage errors never do.
type Error struct {
	Kind    ErrorKind
	Message string

	// ExistingDraftID is set on Conflict so callers can navigate to the
	// draft that blocked creation.
	ExistingDraftID string

	// Blockers is set on submit ValidationError.
	Blockers []Blocker

	cause error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the ErrorKind of err, or KindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindInternal
}

// AsError returns err as a workflow *Error, or nil.
func AsError(err error) *Error {
	var we *Error
	if errors.As(err, &we) {
		return we
	}
	return nil
}

func errUnauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func errForbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func errConflict(msg, existingDraftID string) *Error {
	return &Error{Kind: KindConflict, Message: msg, ExistingDraftID: existingDraftID}
}

func errValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func errInvalidTransition(action Action, current Status) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("Cannot %s a %s baseline", action, current),
	}
}

func errInternal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}
