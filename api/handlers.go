/*
handlers.go - HTTP API handlers for the advance-request system

PURPOSE:
  Exposes the lifecycle engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List all employees
    POST   /api/employees                    Create employee
    GET    /api/employees/{id}               Get employee details
    GET    /api/employees/{id}/advances      Employee's advance history
    POST   /api/employees/{id}/advances      Create advance request

  Advances:
    GET    /api/advances?status=pending      List by status (enriched with names)
    GET    /api/advances/{id}                Get one advance
    PUT    /api/advances/{id}                Edit amount (pending only)
    DELETE /api/advances/{id}                Delete (pending only)
    POST   /api/advances/{id}/approve        Approve one
    POST   /api/advances/{id}/reject         Reject one
    POST   /api/advances/bulk/approve        Approve many (partial success)
    POST   /api/advances/bulk/reject         Reject many (partial success)
    GET    /api/advances/{id}/audit          Audit trail

  Catalog:
    GET    /api/catalog                      Active permitted amounts
    POST   /api/catalog                      Upsert entry (admin)
    DELETE /api/catalog/{id}                 Deactivate entry (admin)

  Normalization:
    POST   /api/normalize                    Coerce upstream records to canonical form

ERROR HANDLING:
  Engine errors map onto HTTP status by taxonomy:
  - 400: ValidationError (reason code in "code")
  - 404: NotFoundError
  - 409: ConflictError (state changed between check and commit)
  - 500: StoreError and everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/advance-engine/anticipo"
	"github.com/warp/advance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *anticipo.Engine
	Log    zerolog.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler around the store and engine.
func NewHandler(store *sqlite.Store, engine *anticipo.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Engine:   engine,
		Log:      log,
		validate: validator.New(),
	}
}

// decode parses and validates a JSON request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload", err)
		return false
	}
	return true
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := anticipo.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	emp := anticipo.Employee{
		ID:    anticipo.EmployeeID(req.ID),
		Name:  req.Name,
		Email: req.Email,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// ADVANCE HANDLERS
// =============================================================================

// CreateAdvance creates an advance request for an employee.
// POST /api/employees/{id}/advances
func (h *Handler) CreateAdvance(w http.ResponseWriter, r *http.Request) {
	employeeID := anticipo.EmployeeID(chi.URLParam(r, "id"))

	var req CreateAdvanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.EmployeeID != "" && anticipo.EmployeeID(req.EmployeeID) != employeeID {
		writeError(w, http.StatusBadRequest, "Employee id in body does not match URL", nil)
		return
	}

	created, err := h.Engine.Create(r.Context(), employeeID, decimal.NewFromFloat(req.Amount))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdvanceDTO(*created))
}

// ListEmployeeAdvances returns an employee's advance history.
// GET /api/employees/{id}/advances
func (h *Handler) ListEmployeeAdvances(w http.ResponseWriter, r *http.Request) {
	employeeID := anticipo.EmployeeID(chi.URLParam(r, "id"))

	advances, err := h.Engine.ListByEmployee(r.Context(), employeeID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"advances": toAdvanceDTOs(advances)})
}

// ListAdvances returns requests in a given state, enriched with employee
// names for the approval screens. Defaults to the pending queue.
// GET /api/advances?status=pending
func (h *Handler) ListAdvances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := anticipo.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = anticipo.StatusPending
	}

	advances, err := h.Engine.ListByStatus(ctx, status)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]AdvanceDTO, 0, len(advances))
	for _, adv := range advances {
		dto := toAdvanceDTO(adv)
		if emp, _ := h.Store.GetEmployee(ctx, adv.EmployeeID); emp != nil {
			dto.EmployeeName = emp.Name
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"advances": dtos})
}

// GetAdvance returns one advance request.
func (h *Handler) GetAdvance(w http.ResponseWriter, r *http.Request) {
	id := anticipo.RequestID(chi.URLParam(r, "id"))

	adv, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceDTO(*adv))
}

// EditAdvance replaces the amount of a pending advance.
// PUT /api/advances/{id}
func (h *Handler) EditAdvance(w http.ResponseWriter, r *http.Request) {
	id := anticipo.RequestID(chi.URLParam(r, "id"))

	var req EditAdvanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.Engine.Edit(r.Context(), id, decimal.NewFromFloat(req.Amount))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceDTO(*updated))
}

// DeleteAdvance removes a pending advance.
// DELETE /api/advances/{id}
func (h *Handler) DeleteAdvance(w http.ResponseWriter, r *http.Request) {
	id := anticipo.RequestID(chi.URLParam(r, "id"))

	if err := h.Engine.Delete(r.Context(), id); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// ApproveAdvance approves one pending advance.
// POST /api/advances/{id}/approve
func (h *Handler) ApproveAdvance(w http.ResponseWriter, r *http.Request) {
	h.resolveOne(w, r, anticipo.StatusApproved)
}

// RejectAdvance rejects one pending advance.
// POST /api/advances/{id}/reject
func (h *Handler) RejectAdvance(w http.ResponseWriter, r *http.Request) {
	h.resolveOne(w, r, anticipo.StatusRejected)
}

func (h *Handler) resolveOne(w http.ResponseWriter, r *http.Request, target anticipo.Status) {
	id := anticipo.RequestID(chi.URLParam(r, "id"))

	var req ResolveAdvanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	resolved, err := h.Engine.ResolveOne(r.Context(), id, target, req.Actor)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdvanceDTO(*resolved))
}

// BulkApprove approves every pending id in the batch.
// POST /api/advances/bulk/approve
func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	h.resolveBulk(w, r, anticipo.StatusApproved)
}

// BulkReject rejects every pending id in the batch.
// POST /api/advances/bulk/reject
func (h *Handler) BulkReject(w http.ResponseWriter, r *http.Request) {
	h.resolveBulk(w, r, anticipo.StatusRejected)
}

func (h *Handler) resolveBulk(w http.ResponseWriter, r *http.Request, target anticipo.Status) {
	var req BulkResolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids := make([]anticipo.RequestID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = anticipo.RequestID(id)
	}

	result, err := h.Engine.ResolveBulk(r.Context(), ids, target, req.Actor)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(result))
}

// GetAuditTrail returns the audit entries for one advance.
// GET /api/advances/{id}/audit
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := anticipo.RequestID(chi.URLParam(r, "id"))

	entries, err := h.Store.QueryAudit(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit trail", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:         e.ID,
			At:         e.At.Format(time.RFC3339),
			ActorID:    e.ActorID,
			Action:     string(e.Action),
			RequestID:  string(e.RequestID),
			EmployeeID: string(e.EmployeeID),
			Payload:    e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": dtos})
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// GetCatalog returns the active permitted amounts.
// GET /api/catalog
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.ActiveCatalog(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]CatalogEntryDTO, len(entries))
	for i, e := range entries {
		amount, _ := e.Amount.Float64()
		dtos[i] = CatalogEntryDTO{ID: e.ID, Amount: amount}
	}
	writeJSON(w, http.StatusOK, map[string]any{"catalog": dtos})
}

// UpsertCatalogEntry creates or updates a permitted amount.
// POST /api/catalog
func (h *Handler) UpsertCatalogEntry(w http.ResponseWriter, r *http.Request) {
	var req UpsertCatalogRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry := anticipo.CatalogEntry{
		ID:     req.ID,
		Amount: decimal.NewFromFloat(req.Amount),
		Active: req.Active,
	}
	if err := h.Store.UpsertCatalogEntry(r.Context(), entry); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save catalog entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": req.ID})
}

// DeactivateCatalogEntry soft-disables a permitted amount.
// DELETE /api/catalog/{id}
func (h *Handler) DeactivateCatalogEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Store.DeactivateCatalogEntry(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to deactivate catalog entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deactivated": id})
}

// =============================================================================
// NORMALIZATION HANDLER
// =============================================================================

// NormalizeRecords coerces heterogeneous upstream records onto the
// canonical model, resolving amount references against the current
// catalog snapshot. Nothing is persisted; the caller decides what to do
// with flagged records.
// POST /api/normalize
func (h *Handler) NormalizeRecords(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !h.decode(w, r, &req) {
		return
	}

	catalog, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read catalog", err)
		return
	}

	dtos := make([]NormalizedDTO, 0, len(req.Records))
	for _, raw := range req.Records {
		normalized, err := anticipo.Normalize(raw, catalog)
		if err != nil {
			dtos = append(dtos, NormalizedDTO{Error: err.Error()})
			continue
		}

		dto := NormalizedDTO{
			Request:   toAdvanceDTO(normalized.Request),
			RawStatus: normalized.RawStatus,
		}
		for _, flag := range normalized.Flags {
			dto.Flags = append(dto.Flags, string(flag.Code))
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": dtos})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps the domain error taxonomy onto HTTP status.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var verr *anticipo.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Code: string(verr.Code)})
		return
	}

	var nferr *anticipo.NotFoundError
	if errors.As(err, &nferr) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: nferr.Error(), Code: "NOT_FOUND"})
		return
	}

	var cerr *anticipo.ConflictError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: cerr.Error(), Code: "CONFLICT"})
		return
	}

	h.Log.Error().Err(err).Msg("internal error")
	writeError(w, http.StatusInternalServerError, "Internal error", err)
}

func toEmployeeDTO(e anticipo.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:    string(e.ID),
		Name:  e.Name,
		Email: e.Email,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}
