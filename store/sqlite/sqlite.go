/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements persistence for advance requests, the amount catalog, the
  employee directory and the audit log. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  anticipo.RequestStore: Advance request persistence with guarded mutations
  anticipo.CatalogStore: Permitted-amount snapshots
  anticipo.AuditLog:     Append-only audit trail

GUARDED MUTATIONS:
  Every mutation that requires the pending state carries the guard in its
  WHERE clause (status = 'pending'). RowsAffected tells the engine
  whether the guard matched; losing a resolution race surfaces as a
  guard miss, never a silent overwrite.

KEY TABLES:
  requests:       One row per advance request
  amount_catalog: Small reference table of permitted amounts
  employees:      Directory records for display enrichment
  audit_log:      Append-only record of who did what when

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite WAL mode. In
  production with PostgreSQL, database-level concurrency control handles
  this instead.

USAGE:
  st, err := sqlite.New("./data/anticipos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  engine := anticipo.NewEngine(st, st)

SEE ALSO:
  - anticipo/store.go: Interface definitions
  - anticipo/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/advance-engine/anticipo"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Advance requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		requested_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		resolved_by TEXT,
		resolved_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id, requested_at);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status, requested_at);

	-- Permitted advance amounts (reference table, read-only to the core)
	CREATE TABLE IF NOT EXISTS amount_catalog (
		id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Employees (directory for display enrichment)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		created_at TEXT NOT NULL
	);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_request
		ON audit_log(request_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE (anticipo.RequestStore interface)
// =============================================================================

// Insert persists a new request.
func (s *Store) Insert(ctx context.Context, req anticipo.AdvanceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO requests (id, employee_id, amount, requested_at, status, resolved_by, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.EmployeeID,
		req.Amount.String(),
		req.RequestedAt.UTC().Format(time.RFC3339),
		req.Status,
		nullString(req.ResolvedBy),
		nullTime(req.ResolvedAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// Get returns the current snapshot of one request, or nil when absent.
func (s *Store) Get(ctx context.Context, id anticipo.RequestID) (*anticipo.AdvanceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, amount, requested_at, status, resolved_by, resolved_at
		FROM requests WHERE id = ?
	`

	reqs, err := s.queryRequests(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

// GetMany returns snapshots for all existing ids in one read.
func (s *Store) GetMany(ctx context.Context, ids []anticipo.RequestID) ([]anticipo.AdvanceRequest, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT id, employee_id, amount, requested_at, status, resolved_by, resolved_at
		FROM requests WHERE id IN (%s)
	`, placeholders(len(ids)))

	return s.queryRequests(ctx, query, idArgs(ids)...)
}

// UpdateAmount replaces the amount and re-dates the request, guarded on
// the pending state.
func (s *Store) UpdateAmount(ctx context.Context, id anticipo.RequestID, amount decimal.Decimal, requestedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET amount = ?, requested_at = ? WHERE id = ? AND status = 'pending'`,
		amount.String(), requestedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update amount: %w", err)
	}
	return affected(res)
}

// Delete removes the request, guarded on the pending state.
func (s *Store) Delete(ctx context.Context, id anticipo.RequestID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM requests WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete request: %w", err)
	}
	return affected(res)
}

// ResolveOne transitions one request, guarded on the pending state.
func (s *Store) ResolveOne(ctx context.Context, id anticipo.RequestID, target anticipo.Status, actor string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, resolved_by = ?, resolved_at = ?
		 WHERE id = ? AND status = 'pending'`,
		target, actor, at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve request: %w", err)
	}
	return affected(res)
}

// ResolveMany transitions every still-pending id in one SQL transaction:
// select the pending subset, update exactly that subset, commit. The
// returned ids are the rows actually transitioned.
func (s *Store) ResolveMany(ctx context.Context, ids []anticipo.RequestID, target anticipo.Status, actor string, at time.Time) ([]anticipo.RequestID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`SELECT id FROM requests WHERE status = 'pending' AND id IN (%s)`,
		placeholders(len(ids))), idArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending subset: %w", err)
	}

	var pending []anticipo.RequestID
	for rows.Next() {
		var id anticipo.RequestID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		pending = append(pending, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		return nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE requests SET status = ?, resolved_by = ?, resolved_at = ?
		 WHERE status = 'pending' AND id IN (%s)`, placeholders(len(pending))),
		append([]any{target, actor, at.UTC().Format(time.RFC3339)}, idArgs(pending)...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bulk: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk resolution: %w", err)
	}
	return pending, nil
}

// CountForMonth counts the employee's requests in the calendar month
// containing day, regardless of status.
func (s *Store) CountForMonth(ctx context.Context, employeeID anticipo.EmployeeID, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := anticipo.MonthBounds(day)

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests
		 WHERE employee_id = ? AND requested_at >= ? AND requested_at < ?`,
		employeeID,
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count month quota: %w", err)
	}
	return count, nil
}

// ListByEmployee returns all of an employee's requests, newest first.
func (s *Store) ListByEmployee(ctx context.Context, employeeID anticipo.EmployeeID) ([]anticipo.AdvanceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, amount, requested_at, status, resolved_by, resolved_at
		FROM requests
		WHERE employee_id = ?
		ORDER BY requested_at DESC
	`

	return s.queryRequests(ctx, query, employeeID)
}

// ListByStatus returns all requests in the given state, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status anticipo.Status) ([]anticipo.AdvanceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, amount, requested_at, status, resolved_by, resolved_at
		FROM requests
		WHERE status = ?
		ORDER BY requested_at ASC
	`

	return s.queryRequests(ctx, query, status)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]anticipo.AdvanceRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []anticipo.AdvanceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(rows *sql.Rows) (anticipo.AdvanceRequest, error) {
	var (
		req         anticipo.AdvanceRequest
		amount      string
		requestedAt string
		resolvedBy  sql.NullString
		resolvedAt  sql.NullString
	)

	err := rows.Scan(&req.ID, &req.EmployeeID, &amount, &requestedAt, &req.Status, &resolvedBy, &resolvedAt)
	if err != nil {
		return req, fmt.Errorf("failed to scan request: %w", err)
	}

	req.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return req, fmt.Errorf("corrupt amount %q for request %s: %w", amount, req.ID, err)
	}
	req.RequestedAt, _ = time.Parse(time.RFC3339, requestedAt)
	req.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, resolvedAt.String)
		req.ResolvedAt = &t
	}

	return req, nil
}

// =============================================================================
// CATALOG STORE (anticipo.CatalogStore interface)
// =============================================================================

// Snapshot returns the permitted-amount table as it exists right now.
func (s *Store) Snapshot(ctx context.Context) (*anticipo.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, active FROM amount_catalog ORDER BY amount`)
	if err != nil {
		return nil, fmt.Errorf("failed to read amount catalog: %w", err)
	}
	defer rows.Close()

	var entries []anticipo.CatalogEntry
	for rows.Next() {
		var e anticipo.CatalogEntry
		var amount string
		if err := rows.Scan(&e.ID, &amount, &e.Active); err != nil {
			return nil, err
		}
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt catalog amount %q: %w", amount, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return anticipo.NewCatalog(entries), nil
}

// UpsertCatalogEntry inserts or updates a permitted amount. Owned by
// the boundary layer; the core only reads the catalog.
func (s *Store) UpsertCatalogEntry(ctx context.Context, entry anticipo.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO amount_catalog (id, amount, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Amount.String(), entry.Active,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeactivateCatalogEntry soft-disables an amount. Historic requests keep
// referencing it; new creates/edits no longer accept it.
func (s *Store) DeactivateCatalogEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE amount_catalog SET active = FALSE WHERE id = ?`, id)
	return err
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

// SaveEmployee saves an employee record.
func (s *Store) SaveEmployee(ctx context.Context, emp anticipo.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Email,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee retrieves an employee by ID, or nil when absent.
func (s *Store) GetEmployee(ctx context.Context, id anticipo.EmployeeID) (*anticipo.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emp anticipo.Employee
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Name, &emp.Email, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]anticipo.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, created_at FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []anticipo.Employee
	for rows.Next() {
		var emp anticipo.Employee
		var createdAt string
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Email, &createdAt); err != nil {
			return nil, err
		}
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// AUDIT LOG (anticipo.AuditLog interface)
// =============================================================================

// AppendAudit adds an audit entry. Append-only: no update, no delete.
func (s *Store) AppendAudit(ctx context.Context, entry anticipo.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, _ := json.Marshal(entry.Payload)

	query := `
		INSERT INTO audit_log (id, at, actor_id, action, request_id, employee_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.At.UTC().Format(time.RFC3339),
		entry.ActorID,
		entry.Action,
		entry.RequestID,
		entry.EmployeeID,
		string(payloadJSON),
	)
	return err
}

// QueryAudit returns the audit trail for one request, oldest first.
func (s *Store) QueryAudit(ctx context.Context, requestID anticipo.RequestID) ([]anticipo.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, actor_id, action, request_id, employee_id, payload_json
		 FROM audit_log WHERE request_id = ? ORDER BY at ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []anticipo.AuditEntry
	for rows.Next() {
		var e anticipo.AuditEntry
		var at string
		var payloadJSON sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action, &e.RequestID, &e.EmployeeID, &payloadJSON); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		if payloadJSON.Valid && payloadJSON.String != "" {
			json.Unmarshal([]byte(payloadJSON.String), &e.Payload)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"requests", "amount_catalog", "employees", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []anticipo.RequestID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
