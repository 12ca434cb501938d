package timeline

import (
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

// ParseDate parses a strict YYYY-MM-DD date at the given hour in loc.
func ParseDate(dateISO string, hour int, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(dateISO)
	if len(s) != len(isoLayout) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(isoLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc), true
}

// FormatDate renders t as YYYY-MM-DD in its own location.
func FormatDate(t time.Time) string {
	return t.Format(isoLayout)
}

// Today is the local calendar day of now in loc.
func Today(now time.Time, loc *time.Location) string {
	return FormatDate(now.In(loc))
}

// ComputeStatus derives upcoming/overdue from an effective date and today.
// Dates that cannot be resolved count as upcoming. Completed is never
// derived here.
func ComputeStatus(effectiveDate, today string) Status {
	d := strings.TrimSpace(effectiveDate)
	if _, ok := ParseDate(d, 0, time.UTC); !ok {
		return StatusUpcoming
	}
	if d < today {
		return StatusOverdue
	}
	return StatusUpcoming
}
