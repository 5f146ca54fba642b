// Package store provides RequestStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/advance-engine/anticipo"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements anticipo.RequestStore, CatalogStore and AuditLog
// with the same guarded-mutation semantics as the SQLite store.
type Memory struct {
	mu       sync.RWMutex
	requests map[anticipo.RequestID]anticipo.AdvanceRequest
	catalog  []anticipo.CatalogEntry
	audit    []anticipo.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{requests: make(map[anticipo.RequestID]anticipo.AdvanceRequest)}
}

// SeedCatalog replaces the catalog entries.
func (m *Memory) SeedCatalog(entries []anticipo.CatalogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = append([]anticipo.CatalogEntry(nil), entries...)
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) Insert(_ context.Context, req anticipo.AdvanceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	m.requests[req.ID] = req
	return nil
}

func (m *Memory) Get(_ context.Context, id anticipo.RequestID) (*anticipo.AdvanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	copied := req
	return &copied, nil
}

func (m *Memory) GetMany(_ context.Context, ids []anticipo.RequestID) ([]anticipo.AdvanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []anticipo.AdvanceRequest
	for _, id := range ids {
		if req, ok := m.requests[id]; ok {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *Memory) UpdateAmount(_ context.Context, id anticipo.RequestID, amount decimal.Decimal, requestedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok || req.Status != anticipo.StatusPending {
		return false, nil
	}
	req.Amount = amount
	req.RequestedAt = requestedAt
	m.requests[id] = req
	return true, nil
}

func (m *Memory) Delete(_ context.Context, id anticipo.RequestID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok || req.Status != anticipo.StatusPending {
		return false, nil
	}
	delete(m.requests, id)
	return true, nil
}

func (m *Memory) ResolveOne(_ context.Context, id anticipo.RequestID, target anticipo.Status, actor string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(id, target, actor, at), nil
}

func (m *Memory) ResolveMany(_ context.Context, ids []anticipo.RequestID, target anticipo.Status, actor string, at time.Time) ([]anticipo.RequestID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updated []anticipo.RequestID
	for _, id := range ids {
		if m.resolveLocked(id, target, actor, at) {
			updated = append(updated, id)
		}
	}
	return updated, nil
}

func (m *Memory) resolveLocked(id anticipo.RequestID, target anticipo.Status, actor string, at time.Time) bool {
	req, ok := m.requests[id]
	if !ok || req.Status != anticipo.StatusPending {
		return false
	}
	req.Status = target
	req.ResolvedBy = actor
	resolvedAt := at
	req.ResolvedAt = &resolvedAt
	m.requests[id] = req
	return true
}

func (m *Memory) CountForMonth(_ context.Context, employeeID anticipo.EmployeeID, day time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, req := range m.requests {
		if req.EmployeeID == employeeID && anticipo.SameMonth(req.RequestedAt, day) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) ListByEmployee(_ context.Context, employeeID anticipo.EmployeeID) ([]anticipo.AdvanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []anticipo.AdvanceRequest
	for _, req := range m.requests {
		if req.EmployeeID == employeeID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (m *Memory) ListByStatus(_ context.Context, status anticipo.Status) ([]anticipo.AdvanceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []anticipo.AdvanceRequest
	for _, req := range m.requests {
		if req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

func (m *Memory) Snapshot(_ context.Context) (*anticipo.Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return anticipo.NewCatalog(m.catalog), nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry anticipo.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, requestID anticipo.RequestID) ([]anticipo.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []anticipo.AuditEntry
	for _, entry := range m.audit {
		if entry.RequestID == requestID {
			out = append(out, entry)
		}
	}
	return out, nil
}
