package anticipo

import "time"

// =============================================================================
// SOLICITATION WINDOW - Day-of-month bounds for new requests
// =============================================================================

// SolicitationWindow is the configured day-of-month range, inclusive on
// both ends, during which new advance requests may be created. A window
// of {1, 31} effectively disables the gate.
type SolicitationWindow struct {
	FromDay int
	ToDay   int
}

// DefaultWindow keeps solicitations in the first half of the month so
// payroll can process approved advances before the pay run.
var DefaultWindow = SolicitationWindow{FromDay: 1, ToDay: 15}

// Contains reports whether today falls inside the window.
func (w SolicitationWindow) Contains(today time.Time) bool {
	d := today.Day()
	return d >= w.FromDay && d <= w.ToDay
}

// =============================================================================
// CALENDAR MONTH HELPERS - Quota is per employee per calendar month
// =============================================================================

// MonthOf returns the first instant of t's calendar month in UTC.
// Used as the canonical key when counting an employee's requests for the
// monthly quota.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthBounds returns the inclusive start and exclusive end of t's
// calendar month, for range queries against the store.
func MonthBounds(t time.Time) (start, end time.Time) {
	start = MonthOf(t)
	end = start.AddDate(0, 1, 0)
	return start, end
}
