/*
sqlite_test.go - Unit tests for the SQLite store

Tests for:
- Request round-trips and absent-row semantics (nil, nil)
- Guarded mutations: pending-only update/delete/resolve
- Bulk resolution: exactly the pending subset transitions
- Month quota counting across month boundaries
- Catalog snapshots and soft deactivation
- Audit trail append and query
*/
package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/advance-engine/anticipo"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func pendingRequest(id, employee string, day int) anticipo.AdvanceRequest {
	return anticipo.AdvanceRequest{
		ID:          anticipo.RequestID(id),
		EmployeeID:  anticipo.EmployeeID(employee),
		Amount:      decimal.NewFromInt(100),
		RequestedAt: time.Date(2026, time.March, day, 10, 0, 0, 0, time.UTC),
		Status:      anticipo.StatusPending,
	}
}

func TestInsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	req := pendingRequest("req-1", "emp-1", 5)
	require.NoError(t, store.Insert(ctx, req))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, req.EmployeeID, got.EmployeeID)
	assert.True(t, got.Amount.Equal(req.Amount))
	assert.Equal(t, anticipo.StatusPending, got.Status)
	assert.Nil(t, got.ResolvedAt)
}

func TestGet_AbsentRowIsNilNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "req-missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateAmount_GuardedOnPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, pendingRequest("req-1", "emp-1", 5)))

	// Pending: guard matches
	newDate := time.Date(2026, time.March, 8, 10, 0, 0, 0, time.UTC)
	ok, err := store.UpdateAmount(ctx, "req-1", decimal.NewFromInt(250), newDate)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, 8, got.RequestedAt.Day())

	// Resolved: guard misses, row untouched
	_, err = store.ResolveOne(ctx, "req-1", anticipo.StatusApproved, "mgr-1", time.Now())
	require.NoError(t, err)

	ok, err = store.UpdateAmount(ctx, "req-1", decimal.NewFromInt(100), time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(250)))
}

func TestDelete_GuardedOnPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, pendingRequest("req-1", "emp-1", 5)))
	require.NoError(t, store.Insert(ctx, pendingRequest("req-2", "emp-2", 5)))

	_, err := store.ResolveOne(ctx, "req-2", anticipo.StatusRejected, "mgr-1", time.Now())
	require.NoError(t, err)

	ok, err := store.Delete(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Resolved rows are never deleted.
	ok, err = store.Delete(ctx, "req-2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, "req-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, anticipo.StatusRejected, got.Status)
}

func TestResolveOne_StampsResolution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, pendingRequest("req-1", "emp-1", 5)))

	at := time.Date(2026, time.March, 9, 16, 30, 0, 0, time.UTC)
	ok, err := store.ResolveOne(ctx, "req-1", anticipo.StatusApproved, "mgr-7", at)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, anticipo.StatusApproved, got.Status)
	assert.Equal(t, "mgr-7", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(at))

	// Second resolution misses the guard.
	ok, err = store.ResolveOne(ctx, "req-1", anticipo.StatusRejected, "mgr-8", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveMany_OnlyPendingSubset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, pendingRequest("req-a", "emp-a", 5)))
	require.NoError(t, store.Insert(ctx, pendingRequest("req-b", "emp-b", 5)))
	require.NoError(t, store.Insert(ctx, pendingRequest("req-c", "emp-c", 5)))

	_, err := store.ResolveOne(ctx, "req-b", anticipo.StatusApproved, "mgr-0", time.Now())
	require.NoError(t, err)

	at := time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC)
	updated, err := store.ResolveMany(ctx,
		[]anticipo.RequestID{"req-a", "req-b", "req-c", "req-ghost"},
		anticipo.StatusApproved, "mgr-1", at)
	require.NoError(t, err)

	assert.ElementsMatch(t, []anticipo.RequestID{"req-a", "req-c"}, updated)

	// req-b keeps its original resolver.
	got, err := store.Get(ctx, "req-b")
	require.NoError(t, err)
	assert.Equal(t, "mgr-0", got.ResolvedBy)

	got, err = store.Get(ctx, "req-a")
	require.NoError(t, err)
	assert.Equal(t, anticipo.StatusApproved, got.Status)
	assert.Equal(t, "mgr-1", got.ResolvedBy)
}

func TestResolveMany_NoPendingRows(t *testing.T) {
	store := newTestStore(t)

	updated, err := store.ResolveMany(context.Background(),
		[]anticipo.RequestID{"req-ghost"}, anticipo.StatusApproved, "mgr-1", time.Now())
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestCountForMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Two in March, one in April, one for another employee.
	require.NoError(t, store.Insert(ctx, pendingRequest("req-1", "emp-1", 5)))
	require.NoError(t, store.Insert(ctx, pendingRequest("req-2", "emp-1", 28)))
	april := pendingRequest("req-3", "emp-1", 5)
	april.RequestedAt = time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, april))
	require.NoError(t, store.Insert(ctx, pendingRequest("req-4", "emp-2", 5)))

	// Resolved requests still count.
	_, err := store.ResolveOne(ctx, "req-2", anticipo.StatusRejected, "mgr-1", time.Now())
	require.NoError(t, err)

	count, err := store.CountForMonth(ctx, "emp-1",
		time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountForMonth(ctx, "emp-1",
		time.Date(2026, time.April, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListByEmployeeAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, pendingRequest("req-old", "emp-1", 3)))
	require.NoError(t, store.Insert(ctx, pendingRequest("req-new", "emp-1", 9)))
	require.NoError(t, store.Insert(ctx, pendingRequest("req-other", "emp-2", 5)))

	// Newest first for an employee's history
	byEmployee, err := store.ListByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, byEmployee, 2)
	assert.Equal(t, anticipo.RequestID("req-new"), byEmployee[0].ID)
	assert.Equal(t, anticipo.RequestID("req-old"), byEmployee[1].ID)

	// Oldest first for the approval queue
	pending, err := store.ListByStatus(ctx, anticipo.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, anticipo.RequestID("req-old"), pending[0].ID)
}

func TestCatalog_SnapshotAndDeactivate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCatalogEntry(ctx, anticipo.CatalogEntry{
		ID: "amt-100", Amount: decimal.NewFromInt(100), Active: true}))
	require.NoError(t, store.UpsertCatalogEntry(ctx, anticipo.CatalogEntry{
		ID: "amt-250", Amount: decimal.NewFromInt(250), Active: true}))

	catalog, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, catalog.IsValid(decimal.NewFromInt(100)))
	assert.True(t, catalog.IsValid(decimal.NewFromInt(250)))

	// Deactivation is soft: the entry still resolves by id but no longer
	// validates amounts.
	require.NoError(t, store.DeactivateCatalogEntry(ctx, "amt-100"))

	catalog, err = store.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, catalog.IsValid(decimal.NewFromInt(100)))
	assert.True(t, catalog.IsValid(decimal.NewFromInt(250)))

	entry, found := catalog.Resolve("amt-100")
	require.True(t, found)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(100)))
}

func TestEmployees_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	emp := anticipo.Employee{ID: "emp-1", Name: "Maria Lopez", Email: "maria@example.com"}
	require.NoError(t, store.SaveEmployee(ctx, emp))

	got, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Maria Lopez", got.Name)

	missing, err := store.GetEmployee(ctx, "emp-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAudit_AppendAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := anticipo.AuditEntry{
		ID:         "audit-1",
		At:         time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC),
		ActorID:    "emp-1",
		Action:     anticipo.AuditRequestCreated,
		RequestID:  "req-1",
		EmployeeID: "emp-1",
		Payload:    map[string]string{"amount": "100"},
	}
	second := anticipo.AuditEntry{
		ID:         "audit-2",
		At:         time.Date(2026, time.March, 9, 16, 0, 0, 0, time.UTC),
		ActorID:    "mgr-1",
		Action:     anticipo.AuditRequestApproved,
		RequestID:  "req-1",
		EmployeeID: "emp-1",
	}
	require.NoError(t, store.AppendAudit(ctx, first))
	require.NoError(t, store.AppendAudit(ctx, second))
	require.NoError(t, store.AppendAudit(ctx, anticipo.AuditEntry{
		ID: "audit-3", At: time.Now(), ActorID: "emp-2",
		Action: anticipo.AuditRequestCreated, RequestID: "req-2", EmployeeID: "emp-2",
	}))

	entries, err := store.QueryAudit(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Oldest first
	assert.Equal(t, anticipo.AuditRequestCreated, entries[0].Action)
	assert.Equal(t, "100", entries[0].Payload["amount"])
	assert.Equal(t, anticipo.AuditRequestApproved, entries[1].Action)
}
