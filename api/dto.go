/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Inbound types carry validate struct tags, checked with
  go-playground/validator in the handlers before any domain logic runs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/advance-engine/anticipo"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AdvanceDTO represents an advance request in API responses.
type AdvanceDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	EmployeeName string  `json:"employee_name,omitempty"`
	Amount       float64 `json:"amount"`
	RequestedAt  string  `json:"requested_at"`
	Status       string  `json:"status"`
	ResolvedBy   string  `json:"resolved_by,omitempty"`
	ResolvedAt   string  `json:"resolved_at,omitempty"`
}

// CreateAdvanceRequest is the request to create an advance.
type CreateAdvanceRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
}

// EditAdvanceRequest replaces the amount of a pending advance.
type EditAdvanceRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// ResolveAdvanceRequest identifies who approves or rejects.
type ResolveAdvanceRequest struct {
	Actor string `json:"actor" validate:"required"`
}

// BulkResolveRequest is the request to approve or reject many advances.
type BulkResolveRequest struct {
	IDs   []string `json:"ids" validate:"required,min=1,dive,required"`
	Actor string   `json:"actor" validate:"required"`
}

// BulkResultDTO reports a bulk resolution. Partial success is success:
// stale ids are listed as skipped, never an error.
type BulkResultDTO struct {
	TotalRequested int          `json:"total_requested"`
	UpdatedCount   int          `json:"updated_count"`
	Updated        []AdvanceDTO `json:"updated"`
	SkippedIDs     []string     `json:"skipped_ids"`
}

// CatalogEntryDTO represents one permitted advance amount.
type CatalogEntryDTO struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
}

// UpsertCatalogRequest creates or updates a catalog entry.
type UpsertCatalogRequest struct {
	ID     string  `json:"id" validate:"required"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Active bool    `json:"active"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

// NormalizeRequest carries heterogeneous upstream records.
type NormalizeRequest struct {
	Records []anticipo.RawRequest `json:"records" validate:"required,min=1"`
}

// NormalizedDTO is one normalized record plus everything suspicious
// about its input.
type NormalizedDTO struct {
	Request   AdvanceDTO `json:"request"`
	RawStatus string     `json:"raw_status,omitempty"`
	Flags     []string   `json:"flags,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// AuditEntryDTO is one audit trail line.
type AuditEntryDTO struct {
	ID         string            `json:"id"`
	At         string            `json:"at"`
	ActorID    string            `json:"actor_id"`
	Action     string            `json:"action"`
	RequestID  string            `json:"request_id"`
	EmployeeID string            `json:"employee_id"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAdvanceDTO(req anticipo.AdvanceRequest) AdvanceDTO {
	amount, _ := req.Amount.Float64()
	dto := AdvanceDTO{
		ID:          string(req.ID),
		EmployeeID:  string(req.EmployeeID),
		Amount:      amount,
		RequestedAt: req.RequestedAt.Format(time.RFC3339),
		Status:      string(req.Status),
		ResolvedBy:  req.ResolvedBy,
	}
	if req.ResolvedAt != nil {
		dto.ResolvedAt = req.ResolvedAt.Format(time.RFC3339)
	}
	return dto
}

func toAdvanceDTOs(reqs []anticipo.AdvanceRequest) []AdvanceDTO {
	dtos := make([]AdvanceDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toAdvanceDTO(req)
	}
	return dtos
}

func toBulkResultDTO(result *anticipo.BulkResult) BulkResultDTO {
	skipped := make([]string, len(result.SkippedIDs))
	for i, id := range result.SkippedIDs {
		skipped[i] = string(id)
	}
	return BulkResultDTO{
		TotalRequested: result.TotalRequested,
		UpdatedCount:   result.UpdatedCount,
		Updated:        toAdvanceDTOs(result.Updated),
		SkippedIDs:     skipped,
	}
}
