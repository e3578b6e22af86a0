package timeutils

import "time"

// DayKey returns the UTC calendar-day bucket used for daily quota counters.
// The reset boundary is midnight UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NextUTCMidnight returns the next quota reset instant after t.
func NextUTCMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// LeadSatisfied reports whether a scheduled post time leaves at least the
// generation lead time between now and the deadline.
func LeadSatisfied(scheduledAt, now time.Time, lead time.Duration) bool {
	return !scheduledAt.Before(now.Add(lead))
}

// TriggerAt returns the instant at which a planned job must start generating
// so the pipeline can finish before its scheduled post time.
func TriggerAt(scheduledAt time.Time, lead time.Duration) time.Time {
	return scheduledAt.Add(-lead)
}

// InRange reports whether t falls in the half-open window [start, end).
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
