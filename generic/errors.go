/*
errors.go - Centralized error types

PURPOSE:
  The evaluators never return errors: bad input degrades to zero minutes or
  an omitted finding. Errors exist only for the outer layers that parse,
  validate and persist records (factory, store, api).

ERROR CATEGORIES:
  1. Parse errors - Unreadable instants, times of day, rule documents
  2. Validation errors - Records the store must refuse
  3. Store errors - Missing records, missing capabilities

USAGE:
  if generic.IsNotFound(err) {
      writeError(w, http.StatusNotFound, "Duty not found", err)
  }

SEE ALSO:
  - duty/validate.go: Produces ValidationError
  - store/sqlite/sqlite.go: Returns ErrDutyNotFound / ErrSleepNotFound
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInstant is returned when a timestamp or time of day cannot be read.
	ErrInvalidInstant = errors.New("invalid instant")

	// ErrInvalidInterval is returned when an end is not after its start.
	ErrInvalidInterval = errors.New("invalid interval: end not after start")

	// ErrInvalidDuty is returned when a duty record fails validation.
	ErrInvalidDuty = errors.New("invalid duty")

	// ErrInvalidSleep is returned when a sleep record fails validation.
	ErrInvalidSleep = errors.New("invalid sleep entry")

	// ErrInvalidRules is returned when a rules document cannot be used.
	ErrInvalidRules = errors.New("invalid rules")

	// ErrInvalidSettings is returned when fatigue settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrDutyNotFound is returned when a referenced duty doesn't exist.
	ErrDutyNotFound = errors.New("duty not found")

	// ErrSleepNotFound is returned when a referenced sleep entry doesn't exist.
	ErrSleepNotFound = errors.New("sleep entry not found")

	// ErrScenarioNotFound is returned for an unknown demo scenario name.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrStoreRequired is returned when a component is built without a store.
	ErrStoreRequired = errors.New("store is required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
	kind   error
}

// NewValidationError builds a ValidationError that unwraps to kind.
func NewValidationError(kind error, field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, kind: kind}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.kind == nil {
		return ErrInvalidDuty
	}
	return e.kind
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInstant) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidDuty) ||
		errors.Is(err, ErrInvalidSleep) ||
		errors.Is(err, ErrInvalidRules) ||
		errors.Is(err, ErrInvalidSettings)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDutyNotFound) ||
		errors.Is(err, ErrSleepNotFound) ||
		errors.Is(err, ErrScenarioNotFound)
}
