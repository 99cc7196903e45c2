package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates. Rentals are billed in
// whole days; no time-of-day component is ever stored.
const DateLayout = "2006-01-02"

// DateRange is an inclusive calendar-date interval. Both Start and End are
// use-days: a range 2024-03-10..2024-03-12 occupies three days, and a
// single-day range has Start == End.
type DateRange struct {
	Start time.Time `json:"start_date" bson:"start_date"`
	End   time.Time `json:"end_date" bson:"end_date"`
}

// NewDateRange builds a range from two already-normalized dates.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: NormalizeDate(start), End: NormalizeDate(end)}
}

// ParseDate parses a YYYY-MM-DD string into a UTC-midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDate renders a date in the YYYY-MM-DD wire format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// NormalizeDate strips any time-of-day component, anchoring the date at
// UTC midnight so ranges from different sources compare correctly.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsValid reports whether the range is well-formed (End >= Start).
func (r DateRange) IsValid() bool {
	return !r.End.Before(r.Start)
}

// Conflicts reports whether two inclusive ranges share at least one
// calendar day: a.start <= b.end AND b.start <= a.end. Back-to-back
// rentals that end and start on the same day DO conflict, because the
// boundary day is a use-day of both.
func (r DateRange) Conflicts(other DateRange) bool {
	return !r.Start.After(other.End) && !other.Start.After(r.End)
}

// Contains reports whether the given day falls inside the range.
func (r DateRange) Contains(day time.Time) bool {
	day = NormalizeDate(day)
	return !day.Before(r.Start) && !day.After(r.End)
}

// Days returns the inclusive day count: (End - Start) + 1.
// A single-day range counts as one billable day.
func (r DateRange) Days() int64 {
	return int64(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return FormatDate(r.Start) + ".." + FormatDate(r.End)
}
