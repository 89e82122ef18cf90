// Package schedule decides when a job may run again.
package schedule

import (
	"strings"
	"time"
)

// Frequency codes understood by NextRun.
const (
	Daily     = "DAILY"
	Weekly    = "WEEKLY"
	Monthly   = "MONTHLY"
	Quarterly = "QUARTERLY"
	Yearly    = "YEARLY"
)

// NextRun returns the next eligible run date after current for a frequency code.
// Unknown and empty codes behave like DAILY. The result is always a calendar
// date strictly after current, in current's location.
func NextRun(current time.Time, code string) time.Time {
	day := Truncate(current)
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case Weekly:
		return day.AddDate(0, 0, 7)
	case Monthly:
		return addMonthsClamped(day, 1)
	case Quarterly, "QRTRLY", "QUARTER":
		return addMonthsClamped(day, 3)
	case Yearly:
		return addMonthsClamped(day, 12)
	default:
		return day.AddDate(0, 0, 1)
	}
}

// addMonthsClamped moves forward n months keeping the day of month, clamped to
// the last day of the target month (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// Truncate drops the time of day, keeping the location.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateString formats a date the way the metadata store expects it.
func DateString(t time.Time) string {
	return t.Format(time.DateOnly)
}
