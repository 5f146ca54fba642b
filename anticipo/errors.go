/*
errors.go - Centralized error types for the advance-request engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every denial carries a machine-readable reason code so the boundary
  layer can render a precise message and tests can assert on cause.

ERROR CATEGORIES:
  1. ValidationError - a proposed action violates an invariant (window,
     quota, amount, or state guard); recoverable by correcting input
  2. NotFoundError   - referenced id does not exist
  3. ConflictError   - state changed between check and commit
  4. StoreError      - the persistence layer itself failed; fatal for the
     current operation, never swallowed, never auto-retried

USAGE:
  Callers branch with errors.As / errors.Is:

    var verr *anticipo.ValidationError
    if errors.As(err, &verr) && verr.Code == anticipo.ReasonQuotaExceeded {
        ...
    }

SEE ALSO:
  - validator.go: Produces the reason codes
  - engine.go: Wraps store failures into StoreError
*/
package anticipo

import (
	"errors"
	"fmt"
)

// =============================================================================
// REASON CODES - Machine-readable denial causes
// =============================================================================

type ReasonCode string

const (
	// ReasonOutOfWindow: today is outside the configured solicitation
	// window (day-of-month bounds, inclusive).
	ReasonOutOfWindow ReasonCode = "OUT_OF_WINDOW"

	// ReasonQuotaExceeded: the employee already has a request this
	// calendar month, regardless of that request's status.
	ReasonQuotaExceeded ReasonCode = "QUOTA_EXCEEDED"

	// ReasonInvalidAmount: the amount is not a currently-active catalog
	// value.
	ReasonInvalidAmount ReasonCode = "INVALID_AMOUNT"

	// ReasonCatalogUnavailable: the catalog is empty or unreachable.
	// Create/edit fail closed on this code, never open.
	ReasonCatalogUnavailable ReasonCode = "CATALOG_UNAVAILABLE"

	// ReasonNotPending: the request has already been resolved; mutation
	// is only permitted while pending.
	ReasonNotPending ReasonCode = "NOT_PENDING"

	// ReasonInvalidStatus: the target of a resolution is not a terminal
	// status.
	ReasonInvalidStatus ReasonCode = "INVALID_STATUS"

	// ReasonNothingEligible: a bulk resolution matched zero pending
	// requests. Reported distinctly, never a silent no-op.
	ReasonNothingEligible ReasonCode = "NOTHING_ELIGIBLE"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base of every rule denial.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced request does not exist.
	ErrNotFound = errors.New("request not found")

	// ErrConflict is returned when the pending-state guard detects that
	// another caller resolved the request between check and commit.
	ErrConflict = errors.New("request state changed concurrently")

	// ErrStore is returned when the persistence layer fails.
	ErrStore = errors.New("store operation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError is a rule denial with its reason code.
type ValidationError struct {
	Code    ReasonCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies the missing request.
type NotFoundError struct {
	ID RequestID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("request %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports the state observed after losing a resolution
// race. Surfaced distinctly from a plain validation failure so callers
// can decide to re-fetch and retry.
type ConflictError struct {
	ID       RequestID
	Observed Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("request %s resolved concurrently, now %s", e.ID, e.Observed)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StoreError wraps a persistence failure. The engine never retries these.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return ErrStore }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// and can be fixed by the caller.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error came from losing a check/commit race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// ReasonOf extracts the reason code from a validation error, or "" when
// the error is not a denial.
func ReasonOf(err error) ReasonCode {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	return ""
}
