package timeutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayKey(t *testing.T) {
	// 23:30 in UTC-3 is already the next day in UTC
	loc := time.FixedZone("UTC-3", -3*60*60)
	local := time.Date(2026, 8, 24, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-08-25", DayKey(local))
	assert.Equal(t, "2026-08-24", DayKey(time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)))
}

func TestNextUTCMidnight(t *testing.T) {
	at := time.Date(2026, 8, 24, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), NextUTCMidnight(at))

	// at midnight the next reset is a full day away
	midnight := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), NextUTCMidnight(midnight))
}

func TestLeadSatisfied(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	lead := time.Hour

	assert.True(t, LeadSatisfied(now.Add(time.Hour), now, lead), "exactly the lead is enough")
	assert.True(t, LeadSatisfied(now.Add(2*time.Hour), now, lead))
	assert.False(t, LeadSatisfied(now.Add(59*time.Minute), now, lead))
	assert.False(t, LeadSatisfied(now.Add(-time.Hour), now, lead))
}

func TestTriggerAt(t *testing.T) {
	post := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, post.Add(-time.Hour), TriggerAt(post, time.Hour))
}

func TestInRange(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	assert.True(t, InRange(start, start, end), "start is inclusive")
	assert.True(t, InRange(end.Add(-time.Nanosecond), start, end))
	assert.False(t, InRange(end, start, end), "end is exclusive")
	assert.False(t, InRange(start.Add(-time.Nanosecond), start, end))
}
