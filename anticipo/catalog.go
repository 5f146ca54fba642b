package anticipo

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT CATALOG - Reference set of permitted advance amounts
// =============================================================================

// Catalog is an immutable snapshot of the permitted-amount table, taken
// at the start of an operation. Validation always runs against one
// snapshot so an amount cannot be valid and invalid within the same call.
//
// An empty snapshot fails closed: IsValid returns false for everything,
// which denies all create/edit operations.
type Catalog struct {
	entries []CatalogEntry
}

// NewCatalog builds a snapshot from the stored entries. Inactive entries
// are kept (normalization may still resolve references against them) but
// never satisfy IsValid.
func NewCatalog(entries []CatalogEntry) *Catalog {
	c := &Catalog{entries: make([]CatalogEntry, len(entries))}
	copy(c.entries, entries)
	sort.Slice(c.entries, func(i, j int) bool {
		return c.entries[i].Amount.LessThan(c.entries[j].Amount)
	})
	return c
}

// ListActive returns the active entries ordered by ascending amount.
func (c *Catalog) ListActive() []CatalogEntry {
	var out []CatalogEntry
	for _, e := range c.entries {
		if e.Active {
			out = append(out, e)
		}
	}
	return out
}

// IsValid reports whether amount equals a currently-active catalog value.
func (c *Catalog) IsValid(amount decimal.Decimal) bool {
	for _, e := range c.entries {
		if e.Active && e.Amount.Equal(amount) {
			return true
		}
	}
	return false
}

// Resolve looks up an entry by its reference id, active or not.
// Used by normalization when an upstream record carries a catalog
// reference instead of a numeric amount.
func (c *Catalog) Resolve(id string) (CatalogEntry, bool) {
	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// Empty reports whether the snapshot holds no entries at all, active or
// inactive. The validator treats an empty snapshot as catalog-unavailable.
func (c *Catalog) Empty() bool {
	return c == nil || len(c.entries) == 0
}
