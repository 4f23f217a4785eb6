/*
errors.go - Error taxonomy for the schedule engine

ERROR CATEGORIES:
  ValidationError     malformed input (recurrence parameters, states, dates)
  ReadOnlyViolation   program status forbids the mutation
  NotFoundError       program, item or instance does not exist
  ConflictError       optimistic version check lost; retry with fresh state
  AlreadyExistsError  create with an ID that is already taken
  PartialFailureError regeneration: some items failed, the rest committed

Every structured error unwraps to a sentinel, so callers can branch with
errors.Is and still reach the details with errors.As:

    var ro *schedule.ReadOnlyViolation
    if errors.As(err, &ro) {
        log.Printf("program %s is %s", ro.ProgramID, ro.Status)
    }

Anything that does not unwrap to one of the sentinels is an internal error.
*/
package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation     = errors.New("validation failed")
	ErrReadOnly       = errors.New("program is read-only")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("concurrent modification detected")
	ErrAlreadyExists  = errors.New("already exists")
	ErrPartialFailure = errors.New("regeneration partially failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Series SeriesKey // zero when the error is not about a series
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Series.ID != "" {
		return fmt.Sprintf("invalid %s for %s: %s", e.Field, e.Series, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type ReadOnlyViolation struct {
	ProgramID ProgramID
	Status    ProgramStatus
	Action    string
}

func (e *ReadOnlyViolation) Error() string {
	return fmt.Sprintf("cannot %s: program %s is %s", e.Action, e.ProgramID, e.Status)
}

func (e *ReadOnlyViolation) Unwrap() error { return ErrReadOnly }

type NotFoundError struct {
	Resource string // "program", "item", "instance"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type ConflictError struct {
	Key             InstanceKey
	ExpectedVersion int
	ActualVersion   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("instance %s changed concurrently (expected version %d, found %d)",
		e.Key, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// AlreadyExistsError is returned when a create would overwrite an existing record.
type AlreadyExistsError struct {
	Resource string
	ID       string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// ItemFailure is one item that could not be regenerated.
type ItemFailure struct {
	ItemID ItemID
	Name   string
	Err    error
}

type PartialFailureError struct {
	ProgramID ProgramID
	Failures  []ItemFailure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.ItemID, f.Err)
	}
	return fmt.Sprintf("regeneration of program %s failed for %d item(s): %s",
		e.ProgramID, len(e.Failures), strings.Join(parts, "; "))
}

func (e *PartialFailureError) Unwrap() error { return ErrPartialFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry with fresh state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to the caller's request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrReadOnly) || errors.Is(err, ErrAlreadyExists)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
