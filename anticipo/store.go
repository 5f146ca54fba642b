/*
store.go - Persistence interfaces for advance requests

PURPOSE:
  Defines the interface between the lifecycle engine and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage; the engine is the only component permitted to mutate the
  request table through these interfaces.

GUARDED MUTATIONS:
  Every write that requires the pending state takes the guard into the
  store itself: UpdateAmount, Delete, ResolveOne and ResolveMany only
  touch rows whose status is still pending at commit time, and report
  what they actually changed. That per-record guard is the engine's sole
  concurrency-safety mechanism - whichever caller's guarded mutation
  commits first wins, and the loser observes the now-resolved state.

ATOMIC BULK:
  ResolveMany applies one persistence operation scoped to exactly the
  eligible subset. A batch never partially commits some eligible records
  while leaving others eligible-but-unprocessed.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - anticipo/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The only caller of the mutating methods
*/
package anticipo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore persists advance requests. Get-style methods return
// (nil, nil) when the id does not exist; the engine converts that into
// NotFoundError.
type RequestStore interface {
	// Insert persists a new request. The id must not already exist.
	Insert(ctx context.Context, req AdvanceRequest) error

	// Get returns the current snapshot of one request.
	Get(ctx context.Context, id RequestID) (*AdvanceRequest, error)

	// GetMany returns current snapshots for all existing ids in one
	// read. Missing ids are simply absent from the result.
	GetMany(ctx context.Context, ids []RequestID) ([]AdvanceRequest, error)

	// UpdateAmount replaces the amount and re-dates the request, only if
	// it is still pending. Returns false when the guard did not match.
	UpdateAmount(ctx context.Context, id RequestID, amount decimal.Decimal, requestedAt time.Time) (bool, error)

	// Delete removes the request, only if it is still pending.
	// Returns false when the guard did not match.
	Delete(ctx context.Context, id RequestID) (bool, error)

	// ResolveOne transitions one request to target and stamps the
	// resolution, only if it is still pending. Returns false when the
	// guard did not match.
	ResolveOne(ctx context.Context, id RequestID, target Status, actor string, at time.Time) (bool, error)

	// ResolveMany transitions every still-pending id in ids to target in
	// a single atomic persistence operation and returns the ids actually
	// transitioned. Ids that lost a race or do not exist are absent from
	// the result, never an error.
	ResolveMany(ctx context.Context, ids []RequestID, target Status, actor string, at time.Time) ([]RequestID, error)

	// CountForMonth counts the employee's requests whose RequestedAt
	// falls in the calendar month containing day, regardless of status.
	CountForMonth(ctx context.Context, employeeID EmployeeID, day time.Time) (int, error)

	// ListByEmployee returns all of an employee's requests, newest first.
	ListByEmployee(ctx context.Context, employeeID EmployeeID) ([]AdvanceRequest, error)

	// ListByStatus returns all requests in the given state, oldest first
	// so approval queues drain fairly.
	ListByStatus(ctx context.Context, status Status) ([]AdvanceRequest, error)
}

// =============================================================================
// CATALOG STORE
// =============================================================================

// CatalogStore reads the permitted-amount reference table. The core
// reads it but never writes it.
type CatalogStore interface {
	// Snapshot returns the catalog as it exists right now. The engine
	// validates an entire operation against one snapshot.
	Snapshot(ctx context.Context) (*Catalog, error)
}

// =============================================================================
// AUDIT LOG - Who did what when. Append-only.
// =============================================================================

type AuditAction string

const (
	AuditRequestCreated  AuditAction = "request_created"
	AuditRequestEdited   AuditAction = "request_edited"
	AuditRequestDeleted  AuditAction = "request_deleted"
	AuditRequestApproved AuditAction = "request_approved"
	AuditRequestRejected AuditAction = "request_rejected"
)

type AuditEntry struct {
	ID         string
	At         time.Time
	ActorID    string
	Action     AuditAction
	RequestID  RequestID
	EmployeeID EmployeeID
	Payload    map[string]string
}

// AuditLog stores audit entries. Writes are best-effort from the
// engine's point of view: a failed audit write is logged, not fatal.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, requestID RequestID) ([]AuditEntry, error)
}
