/*
normalize.go - Reconciling heterogeneous upstream payloads

PURPOSE:
  The systems that feed advance requests into this engine disagree on
  almost everything: field names come in Spanish or English (amount vs
  monto, status vs estado), statuses arrive in either language and any
  casing, and some feeds carry a catalog reference id instead of a
  numeric amount. This file maps all of that onto the canonical
  AdvanceRequest shape before any validation runs.

RULES:
  - Status matching is case-insensitive and substring-tolerant:
    "pend" -> Pending, "aprob"/"approv" -> Approved,
    "rech"/"reject" -> Rejected. Unrecognized values are preserved in
    RawStatus and flagged, never silently coerced, so callers can detect
    drift in upstream data.
  - Amount resolution prefers an explicit numeric amount; if absent it
    falls back to resolving a catalog reference id against the snapshot
    taken at normalization time, not at original creation time.
  - An amount that resolves to <= 0 or non-numeric is normalized to 0 and
    flagged invalid. Downstream validation then denies it as a
    non-catalog amount.

SEE ALSO:
  - types.go: The canonical model this produces
  - catalog.go: Reference-id resolution
*/
package anticipo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW PAYLOAD - Union of the upstream shapes we have observed
// =============================================================================

// RawRequest is the permissive inbound shape. Amount fields are `any`
// because upstream systems send numbers, numeric strings, and garbage.
type RawRequest struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Empleado   string `json:"empleado"`

	Amount      any    `json:"amount"`
	Monto       any    `json:"monto"`
	AmountRefID string `json:"amount_id"`
	MontoRefID  string `json:"monto_id"`

	Status string `json:"status"`
	Estado string `json:"estado"`

	RequestedAt string `json:"requested_at"`
	Fecha       string `json:"fecha"`

	ResolvedBy string `json:"resolved_by"`
	ResolvedAt string `json:"resolved_at"`
}

// =============================================================================
// FLAGS - Anomalies detected during normalization
// =============================================================================

type FlagCode string

const (
	FlagUnrecognizedStatus FlagCode = "UNRECOGNIZED_STATUS"
	FlagInvalidAmount      FlagCode = "INVALID_AMOUNT"
	FlagUnknownAmountRef   FlagCode = "UNKNOWN_AMOUNT_REF"
	FlagMissingAmount      FlagCode = "MISSING_AMOUNT"
)

type Flag struct {
	Code FlagCode
	Raw  string
}

// Normalized is the result of one normalization: the canonical record
// plus everything suspicious about the input.
type Normalized struct {
	Request AdvanceRequest

	// RawStatus holds the original status string when it matched no
	// known spelling. Empty when the status was recognized.
	RawStatus string

	Flags []Flag
}

// Flagged reports whether any anomaly was detected.
func (n *Normalized) Flagged() bool { return len(n.Flags) > 0 }

// NormalizationError means the record is structurally unusable, not
// merely anomalous: it identifies no employee.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return "cannot normalize record: " + e.Reason
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalize maps one upstream record onto the canonical model, resolving
// amount references against the given catalog snapshot.
func Normalize(raw RawRequest, catalog *Catalog) (*Normalized, error) {
	out := &Normalized{}

	employeeID := firstNonEmpty(raw.EmployeeID, raw.Empleado)
	if employeeID == "" {
		return nil, &NormalizationError{Reason: "no employee identifier in any known field"}
	}

	out.Request.ID = RequestID(raw.ID)
	out.Request.EmployeeID = EmployeeID(employeeID)

	// Status. Default to pending when absent: every observed feed omits
	// the status on freshly-created requests.
	rawStatus := firstNonEmpty(raw.Status, raw.Estado)
	if rawStatus == "" {
		out.Request.Status = StatusPending
	} else if status, ok := ParseStatus(rawStatus); ok {
		out.Request.Status = status
	} else {
		out.Request.Status = StatusPending
		out.RawStatus = rawStatus
		out.Flags = append(out.Flags, Flag{Code: FlagUnrecognizedStatus, Raw: rawStatus})
	}

	out.Request.Amount = normalizeAmount(raw, catalog, out)

	out.Request.RequestedAt = parseWhen(firstNonEmpty(raw.RequestedAt, raw.Fecha))
	if raw.ResolvedBy != "" || raw.ResolvedAt != "" {
		out.Request.ResolvedBy = raw.ResolvedBy
		if t := parseWhen(raw.ResolvedAt); !t.IsZero() {
			out.Request.ResolvedAt = &t
		}
	}

	return out, nil
}

// ParseStatus coerces an upstream status spelling onto the closed
// variant. The match is case-insensitive and substring-tolerant; ok is
// false when no known fragment appears.
func ParseStatus(s string) (Status, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(v, "pend"):
		return StatusPending, true
	case strings.Contains(v, "aprob"), strings.Contains(v, "approv"):
		return StatusApproved, true
	case strings.Contains(v, "rech"), strings.Contains(v, "reject"):
		return StatusRejected, true
	default:
		return "", false
	}
}

func normalizeAmount(raw RawRequest, catalog *Catalog, out *Normalized) decimal.Decimal {
	// Explicit numeric amount wins, amount before monto.
	for _, v := range []any{raw.Amount, raw.Monto} {
		if v == nil {
			continue
		}
		amount, ok := parseAmountValue(v)
		if !ok || !amount.IsPositive() {
			out.Flags = append(out.Flags, Flag{Code: FlagInvalidAmount, Raw: fmt.Sprint(v)})
			return decimal.Zero
		}
		return amount
	}

	// Fall back to a catalog reference id, resolved against the snapshot
	// taken now.
	if ref := firstNonEmpty(raw.AmountRefID, raw.MontoRefID); ref != "" {
		entry, ok := catalog.Resolve(ref)
		if !ok {
			out.Flags = append(out.Flags, Flag{Code: FlagUnknownAmountRef, Raw: ref})
			return decimal.Zero
		}
		return entry.Amount
	}

	out.Flags = append(out.Flags, Flag{Code: FlagMissingAmount})
	return decimal.Zero
}

func parseAmountValue(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	case decimal.Decimal:
		return x, true
	default:
		return decimal.Zero, false
	}
}

func parseWhen(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
