// Package recurrence computes due dates for repeating tasks.
//
// The arithmetic is deliberately calendar-aware only where it has to be:
// daily and weekly patterns are fixed offsets, monthly and yearly
// patterns roll the calendar fields and clamp the day-of-month so that
// Jan 31 + 1 month lands on the last day of February rather than
// spilling into March.
package recurrence

import "time"

// Pattern types understood by Next.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
	Yearly  = "yearly"
)

// Rule describes how a task repeats.
type Rule struct {
	// Type is one of Daily, Weekly, Monthly, Yearly.
	Type string `json:"type"`
	// Interval is the number of periods between occurrences. Zero or
	// negative is treated as 1.
	Interval int `json:"interval,omitempty"`
	// EndDate, when set, is the last date an occurrence may fall on.
	EndDate *time.Time `json:"end_date,omitempty"`
}

// Next returns the occurrence that follows current for the given pattern
// type and interval. An unknown type falls back to daily.
func Next(current time.Time, patternType string, interval int) time.Time {
	if interval <= 0 {
		interval = 1
	}

	switch patternType {
	case Weekly:
		return current.AddDate(0, 0, 7*interval)
	case Monthly:
		return addMonthsClamped(current, interval)
	case Yearly:
		return addMonthsClamped(current, 12*interval)
	default:
		// Daily, and the fallback for anything unrecognized.
		return current.AddDate(0, 0, interval)
	}
}

// NextOccurrence applies a Rule to current, honoring the end date.
// Returns the zero time and false when the rule has expired or is nil.
func NextOccurrence(rule *Rule, current time.Time) (time.Time, bool) {
	if rule == nil || rule.Type == "" {
		return time.Time{}, false
	}

	next := Next(current, rule.Type, rule.Interval)
	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return time.Time{}, false
	}
	return next, true
}

// addMonthsClamped adds months to t, clamping the day-of-month to the
// length of the target month. time.AddDate normalizes overflow (Jan 31
// + 1 month = Mar 2/3), which is not what a "monthly on the 31st" task
// wants.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()

	m := int(month) + months
	y := year + (m-1)/12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		y--
	}

	if max := daysInMonth(y, time.Month(m)); day > max {
		day = max
	}

	return time.Date(y, time.Month(m), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
