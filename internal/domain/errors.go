package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors. Every typed error below unwraps to one of these so
// callers can branch with errors.Is without knowing the concrete type.
var (
	// ErrValidation indicates malformed input such as an out-of-range score.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates that an operation was attempted outside its
	// valid project-status window.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict indicates a concurrent write that the store could not absorb.
	ErrConflict = errors.New("conflict")

	// ErrForbidden indicates that the calling principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf adds a formatted error message to the validation error.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// OrNil returns e when it holds at least one message and nil otherwise, so a
// collector can be returned directly from a validating function.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string, msgs ...string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: append(make([]string, 0, len(msgs)), msgs...),
	}
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	// Entity is the kind of record, e.g. "project" or "submission".
	Entity string

	// ID is the identifier that failed to resolve.
	ID string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// StateError reports an operation attempted while the project was in a status
// that does not allow it.
type StateError struct {
	// ProjectID identifies the project whose status blocked the operation.
	ProjectID string

	// Operation describes what was being attempted.
	Operation string

	// Status is the status observed when the operation was rejected.
	Status ProjectStatus

	// Reason optionally refines the message.
	Reason string
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	msg := fmt.Sprintf("state error: operation=%s, project=%s, status=%s", e.Operation, e.ProjectID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap returns ErrInvalidState.
func (e *StateError) Unwrap() error { return ErrInvalidState }

// NewStateError creates a new StateError with the given details.
func NewStateError(projectID, operation string, status ProjectStatus) *StateError {
	return &StateError{
		ProjectID: projectID,
		Operation: operation,
		Status:    status,
	}
}

// ConflictError reports a uniqueness violation that escaped conflict
// resolution. Stores should absorb conflicts; this type exists so the rare
// escape is still classifiable.
type ConflictError struct {
	// Entity is the table or record kind involved.
	Entity string

	// Key describes the conflicting natural key.
	Key string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface for ConflictError.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s key=%s: %v", e.Entity, e.Key, e.Err)
}

// Unwrap returns both ErrConflict and the underlying error.
func (e *ConflictError) Unwrap() []error { return []error{ErrConflict, e.Err} }

// NewConflictError creates a new ConflictError.
func NewConflictError(entity, key string, err error) *ConflictError {
	return &ConflictError{Entity: entity, Key: key, Err: err}
}
