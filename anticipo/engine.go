/*
engine.go - Orchestration of advance-request mutations

PURPOSE:
  Executes validated mutations against the RequestStore and orchestrates
  bulk resolution with defined partial-failure semantics.

REQUEST FLOW:
  Create:  snapshot catalog -> count month quota -> CanCreate -> insert
  Edit:    load -> CanEdit -> guarded amount update (still pending?)
  Delete:  load -> CanDelete -> guarded delete
  Resolve: load -> CanResolve -> guarded status update
  Bulk:    one read for all ids -> partition eligible/ineligible ->
           one guarded write for the eligible subset -> BulkResult

RE-CHECK BEFORE MUTATION:
  The engine never trusts a caller's earlier check - state may have
  changed concurrently. Every mutation re-validates against a fresh
  snapshot and then relies on the store's pending-state guard as the
  transition's guard condition. A caller that loses the race gets
  ConflictError (single) or lands in SkippedIDs (bulk), never a silent
  overwrite.

PARTIAL SUCCESS IS SUCCESS:
  If 3 of 5 requested ids were eligible, the bulk operation reports
  success for those 3 and lists the other 2 as skipped. Only a store
  failure on the shared write aborts a batch. Zero eligible ids is a
  distinct NOTHING_ELIGIBLE denial, never a silent no-op.

SEE ALSO:
  - validator.go: The decisions applied here
  - store.go: The guarded persistence primitives
*/
package anticipo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the only component that mutates the request store.
type Engine struct {
	Requests  RequestStore
	Catalog   CatalogStore
	Audit     AuditLog // optional
	Validator Validator

	// Clock supplies "today". Injected so decision logic stays
	// deterministic under test.
	Clock func() time.Time

	Log zerolog.Logger
}

// NewEngine wires an engine with the default solicitation window, the
// real clock, and a no-op logger.
func NewEngine(requests RequestStore, catalog CatalogStore) *Engine {
	return &Engine{
		Requests:  requests,
		Catalog:   catalog,
		Validator: Validator{Window: DefaultWindow},
		Clock:     time.Now,
		Log:       zerolog.Nop(),
	}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// snapshot loads the catalog, failing closed: an unreachable catalog
// denies rather than erroring open.
func (e *Engine) snapshot(ctx context.Context) (*Catalog, error) {
	catalog, err := e.Catalog.Snapshot(ctx)
	if err != nil {
		e.Log.Warn().Err(err).Msg("catalog unreachable, failing closed")
		return nil, &ValidationError{Code: ReasonCatalogUnavailable, Message: "amount catalog is unreachable"}
	}
	return catalog, nil
}

// =============================================================================
// CREATE / EDIT / DELETE
// =============================================================================

// Create validates the solicitation window, the monthly quota and the
// amount, then persists a new pending request.
func (e *Engine) Create(ctx context.Context, employeeID EmployeeID, amount decimal.Decimal) (*AdvanceRequest, error) {
	today := e.now()

	catalog, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	count, err := e.Requests.CountForMonth(ctx, employeeID, today)
	if err != nil {
		return nil, &StoreError{Op: "count month quota", Err: err}
	}

	if d := e.Validator.CanCreate(amount, today, count, catalog); !d.Allowed {
		return nil, d.Err()
	}

	req := AdvanceRequest{
		ID:          RequestID(uuid.NewString()),
		EmployeeID:  employeeID,
		Amount:      amount,
		RequestedAt: today,
		Status:      StatusPending,
	}

	if err := e.Requests.Insert(ctx, req); err != nil {
		return nil, &StoreError{Op: "insert request", Err: err}
	}

	e.audit(ctx, AuditEntry{
		Action:     AuditRequestCreated,
		ActorID:    string(employeeID),
		RequestID:  req.ID,
		EmployeeID: employeeID,
		Payload:    map[string]string{"amount": amount.String()},
	})

	return &req, nil
}

// Edit atomically replaces the amount and resets RequestedAt, only while
// the request is still pending.
func (e *Engine) Edit(ctx context.Context, id RequestID, newAmount decimal.Decimal) (*AdvanceRequest, error) {
	req, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	catalog, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if d := e.Validator.CanEdit(req, newAmount, catalog); !d.Allowed {
		return nil, d.Err()
	}

	now := e.now()
	ok, err := e.Requests.UpdateAmount(ctx, id, newAmount, now)
	if err != nil {
		return nil, &StoreError{Op: "update amount", Err: err}
	}
	if !ok {
		return nil, e.conflictFor(ctx, id)
	}

	req.Amount = newAmount
	req.RequestedAt = now

	e.audit(ctx, AuditEntry{
		Action:     AuditRequestEdited,
		ActorID:    string(req.EmployeeID),
		RequestID:  id,
		EmployeeID: req.EmployeeID,
		Payload:    map[string]string{"amount": newAmount.String()},
	})

	return req, nil
}

// Delete removes a still-pending request. Resolved requests are retained
// for history and can never be deleted.
func (e *Engine) Delete(ctx context.Context, id RequestID) error {
	req, err := e.load(ctx, id)
	if err != nil {
		return err
	}

	if d := e.Validator.CanDelete(req); !d.Allowed {
		return d.Err()
	}

	ok, err := e.Requests.Delete(ctx, id)
	if err != nil {
		return &StoreError{Op: "delete request", Err: err}
	}
	if !ok {
		return e.conflictFor(ctx, id)
	}

	e.audit(ctx, AuditEntry{
		Action:     AuditRequestDeleted,
		ActorID:    string(req.EmployeeID),
		RequestID:  id,
		EmployeeID: req.EmployeeID,
	})

	return nil
}

// =============================================================================
// RESOLUTION - Single
// =============================================================================

// ResolveOne transitions one request to target, stamping who resolved it
// and when. Re-invoking on an already-resolved id denies with
// NOT_PENDING rather than changing anything.
func (e *Engine) ResolveOne(ctx context.Context, id RequestID, target Status, actor string) (*AdvanceRequest, error) {
	req, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if d := e.Validator.CanResolve(req, target); !d.Allowed {
		return nil, d.Err()
	}

	at := e.now()
	ok, err := e.Requests.ResolveOne(ctx, id, target, actor, at)
	if err != nil {
		return nil, &StoreError{Op: "resolve request", Err: err}
	}
	if !ok {
		return nil, e.conflictFor(ctx, id)
	}

	req.Status = target
	req.ResolvedBy = actor
	req.ResolvedAt = &at

	e.audit(ctx, AuditEntry{
		Action:     auditActionFor(target),
		ActorID:    actor,
		RequestID:  id,
		EmployeeID: req.EmployeeID,
	})

	return req, nil
}

// =============================================================================
// RESOLUTION - Bulk
// =============================================================================

// BulkResult reports a bulk resolution. A partial success is a success:
// stale ids land in SkippedIDs, they never fail the batch.
type BulkResult struct {
	TotalRequested int
	UpdatedCount   int
	Updated        []AdvanceRequest
	SkippedIDs     []RequestID
}

// ResolveBulk transitions every currently-pending id in ids to target.
// Snapshots are fetched in one read, the transition is applied to the
// eligible subset in one guarded persistence operation, and ids that
// were already resolved, nonexistent, or lost the race are reported as
// skipped. Zero eligible ids denies with NOTHING_ELIGIBLE.
func (e *Engine) ResolveBulk(ctx context.Context, ids []RequestID, target Status, actor string) (*BulkResult, error) {
	if !target.Terminal() {
		return nil, &ValidationError{Code: ReasonInvalidStatus, Message: "bulk target must be approved or rejected"}
	}

	snapshots, err := e.Requests.GetMany(ctx, ids)
	if err != nil {
		return nil, &StoreError{Op: "load bulk snapshots", Err: err}
	}

	byID := make(map[RequestID]AdvanceRequest, len(snapshots))
	for _, snap := range snapshots {
		byID[snap.ID] = snap
	}

	var eligible []RequestID
	var skipped []RequestID
	for _, id := range ids {
		snap, found := byID[id]
		if found && snap.Status == StatusPending {
			eligible = append(eligible, id)
		} else {
			skipped = append(skipped, id)
		}
	}

	if len(eligible) == 0 {
		return nil, &ValidationError{Code: ReasonNothingEligible, Message: "no pending requests among the given ids"}
	}

	at := e.now()
	updatedIDs, err := e.Requests.ResolveMany(ctx, eligible, target, actor, at)
	if err != nil {
		// Only a store failure on the shared write aborts the batch.
		return nil, &StoreError{Op: "resolve bulk", Err: err}
	}

	updatedSet := make(map[RequestID]bool, len(updatedIDs))
	for _, id := range updatedIDs {
		updatedSet[id] = true
	}

	result := &BulkResult{TotalRequested: len(ids), SkippedIDs: skipped}
	for _, id := range eligible {
		if !updatedSet[id] {
			// Lost the race between snapshot and write.
			result.SkippedIDs = append(result.SkippedIDs, id)
			continue
		}
		rec := byID[id]
		rec.Status = target
		rec.ResolvedBy = actor
		rec.ResolvedAt = &at
		result.Updated = append(result.Updated, rec)

		e.audit(ctx, AuditEntry{
			Action:     auditActionFor(target),
			ActorID:    actor,
			RequestID:  id,
			EmployeeID: rec.EmployeeID,
		})
	}
	result.UpdatedCount = len(result.Updated)

	return result, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (e *Engine) Get(ctx context.Context, id RequestID) (*AdvanceRequest, error) {
	return e.load(ctx, id)
}

func (e *Engine) ListByEmployee(ctx context.Context, employeeID EmployeeID) ([]AdvanceRequest, error) {
	reqs, err := e.Requests.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, &StoreError{Op: "list by employee", Err: err}
	}
	return reqs, nil
}

func (e *Engine) ListByStatus(ctx context.Context, status Status) ([]AdvanceRequest, error) {
	if !status.Valid() {
		return nil, &ValidationError{Code: ReasonInvalidStatus, Message: "unknown status"}
	}
	reqs, err := e.Requests.ListByStatus(ctx, status)
	if err != nil {
		return nil, &StoreError{Op: "list by status", Err: err}
	}
	return reqs, nil
}

// ActiveCatalog exposes the current catalog snapshot for display.
func (e *Engine) ActiveCatalog(ctx context.Context) ([]CatalogEntry, error) {
	catalog, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.ListActive(), nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (e *Engine) load(ctx context.Context, id RequestID) (*AdvanceRequest, error) {
	req, err := e.Requests.Get(ctx, id)
	if err != nil {
		return nil, &StoreError{Op: "get request", Err: err}
	}
	if req == nil {
		return nil, &NotFoundError{ID: id}
	}
	return req, nil
}

// conflictFor classifies a failed guarded mutation: the row either
// vanished or was resolved by a concurrent caller.
func (e *Engine) conflictFor(ctx context.Context, id RequestID) error {
	fresh, err := e.Requests.Get(ctx, id)
	if err != nil {
		return &StoreError{Op: "re-check after guard miss", Err: err}
	}
	if fresh == nil {
		return &NotFoundError{ID: id}
	}
	return &ConflictError{ID: id, Observed: fresh.Status}
}

func (e *Engine) audit(ctx context.Context, entry AuditEntry) {
	if e.Audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.At = e.now()
	if err := e.Audit.AppendAudit(ctx, entry); err != nil {
		e.Log.Warn().Err(err).Str("request_id", string(entry.RequestID)).Msg("audit write failed")
	}
}

func auditActionFor(target Status) AuditAction {
	if target == StatusApproved {
		return AuditRequestApproved
	}
	return AuditRequestRejected
}
