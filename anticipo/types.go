/*
Package anticipo provides the core advance-request lifecycle engine.

PURPOSE:
  This package contains the domain types and decision logic for employee
  salary-advance requests ("anticipos"). An employee asks for one of a
  small catalog of fixed amounts; the request waits in a pending state
  until a supervisor approves or rejects it, singly or in bulk.

KEY CONCEPTS IN THIS FILE (types.go):
  - AdvanceRequest: The central entity, keyed by id
  - Status: Closed variant Pending | Approved | Rejected
  - CatalogEntry: One permitted advance amount
  - Employee/Request/Actor IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Monotonic lifecycle: Pending -> Approved or Pending -> Rejected, never back
  2. Precision: Uses decimal.Decimal for money, never floats
  3. Type Safety: Strong typing for IDs prevents mixing employee/request IDs
  4. Injected time: "today" is always a parameter, never read from the wall clock
     inside decision logic

SEE ALSO:
  - validator.go: Pure allow/deny decisions for every lifecycle action
  - engine.go: Orchestration of single and bulk mutations against the store
  - normalize.go: Coercion of heterogeneous upstream payloads into this model
  - catalog.go: The permitted-amount catalog
*/
package anticipo

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequestID string
type EmployeeID string

// =============================================================================
// STATUS - Closed lifecycle variant
// =============================================================================

// Status is the canonical lifecycle state of an advance request.
// All string matching against upstream spellings lives in normalize.go;
// nothing downstream of normalization ever compares against raw strings.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the three canonical states.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// =============================================================================
// ADVANCE REQUEST - The central entity
// =============================================================================

// AdvanceRequest records an employee's intent to receive a salary advance
// of a fixed catalog amount, and the approval status of that intent.
// It is not a ledger entry: no disbursement, interest, or payroll
// deduction is derived from it.
type AdvanceRequest struct {
	ID         RequestID
	EmployeeID EmployeeID

	// Amount must equal a currently-active catalog value at creation or
	// edit time. Mutable only while Status is pending.
	Amount decimal.Decimal

	// RequestedAt is set at creation and reset on every edit: an edit
	// re-dates the request.
	RequestedAt time.Time

	Status Status

	// Resolution stamp. Empty/nil while pending; set exactly once when
	// the request leaves the pending state.
	ResolvedBy string
	ResolvedAt *time.Time
}

// Resolved reports whether the request has left the pending state.
func (r *AdvanceRequest) Resolved() bool {
	return r.Status.Terminal()
}

// =============================================================================
// CATALOG ENTRY - One permitted advance amount
// =============================================================================

// CatalogEntry is read-only to the core. An amount not present (and
// active) in the catalog is invalid for create/edit.
type CatalogEntry struct {
	ID     string
	Amount decimal.Decimal
	Active bool
}

// =============================================================================
// EMPLOYEE - Directory record for display/enrichment
// =============================================================================

// Employee is the directory record the approval screens enrich requests
// with. The core never mutates it.
type Employee struct {
	ID        EmployeeID
	Name      string
	Email     string
	CreatedAt time.Time
}
