/*
validator.go - Pure lifecycle decisions for advance requests

PURPOSE:
  Given a candidate action and the current state of the system, decide
  allow or deny. No side effects, no clock reads, no store access: the
  caller supplies today's date, the employee's month count, and a catalog
  snapshot, so every decision is deterministic and directly testable.

DECISION MATRIX:
  Create:  inside window, amount in active catalog, month quota free
  Edit:    request pending, new amount in active catalog
  Delete:  request pending
  Resolve: request pending, target is approved or rejected

  A rejected request still consumes the month's quota: the quota counts
  all of the employee's requests in the calendar month regardless of
  status.

EVERY DENIAL HAS A REASON CODE:
  OUT_OF_WINDOW, QUOTA_EXCEEDED, INVALID_AMOUNT, CATALOG_UNAVAILABLE,
  NOT_PENDING, INVALID_STATUS. Callers present precise feedback and
  tests assert on cause, not just failure.

SEE ALSO:
  - engine.go: Applies these decisions against the store, re-checking
    per record immediately before each mutation
  - window.go: Solicitation window and calendar-month helpers
*/
package anticipo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DECISION - Allow or Deny(reason)
// =============================================================================

type Decision struct {
	Allowed bool
	Reason  ReasonCode
	Message string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason ReasonCode, message string) Decision {
	return Decision{Allowed: false, Reason: reason, Message: message}
}

// Err converts a denial into its ValidationError, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &ValidationError{Code: d.Reason, Message: d.Message}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator holds the configured solicitation window. Everything else a
// decision needs arrives as a parameter.
type Validator struct {
	Window SolicitationWindow
}

// CanCreate decides whether an employee may create a request for amount
// today. existingThisMonth is the count of the employee's requests in
// today's calendar month, any status.
func (v Validator) CanCreate(amount decimal.Decimal, today time.Time, existingThisMonth int, catalog *Catalog) Decision {
	if catalog.Empty() {
		return Deny(ReasonCatalogUnavailable, "amount catalog is empty or unreachable")
	}
	if !v.Window.Contains(today) {
		return Deny(ReasonOutOfWindow, fmt.Sprintf(
			"requests are only accepted between day %d and day %d of the month",
			v.Window.FromDay, v.Window.ToDay))
	}
	if existingThisMonth >= 1 {
		return Deny(ReasonQuotaExceeded, "employee already has a request this month")
	}
	if !catalog.IsValid(amount) {
		return Deny(ReasonInvalidAmount, fmt.Sprintf("%s is not a permitted advance amount", amount))
	}
	return Allow()
}

// CanEdit decides whether the request's amount may be replaced. A
// successful edit atomically replaces the amount and resets RequestedAt.
func (v Validator) CanEdit(request *AdvanceRequest, newAmount decimal.Decimal, catalog *Catalog) Decision {
	if request.Status != StatusPending {
		return Deny(ReasonNotPending, fmt.Sprintf("request is %s, only pending requests can be edited", request.Status))
	}
	if catalog.Empty() {
		return Deny(ReasonCatalogUnavailable, "amount catalog is empty or unreachable")
	}
	if !catalog.IsValid(newAmount) {
		return Deny(ReasonInvalidAmount, fmt.Sprintf("%s is not a permitted advance amount", newAmount))
	}
	return Allow()
}

// CanDelete decides whether the request may be removed. Resolved
// requests are retained for history and never deleted.
func (v Validator) CanDelete(request *AdvanceRequest) Decision {
	if request.Status != StatusPending {
		return Deny(ReasonNotPending, fmt.Sprintf("request is %s, only pending requests can be deleted", request.Status))
	}
	return Allow()
}

// CanResolve decides whether the request may transition to target.
// The only legal transitions are pending -> approved and pending ->
// rejected; terminal states never change again.
func (v Validator) CanResolve(request *AdvanceRequest, target Status) Decision {
	if !target.Terminal() {
		return Deny(ReasonInvalidStatus, fmt.Sprintf("%q is not a terminal status", target))
	}
	if request.Status != StatusPending {
		return Deny(ReasonNotPending, fmt.Sprintf("request is already %s", request.Status))
	}
	return Allow()
}
