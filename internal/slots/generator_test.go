package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

func workweekRules(gap time.Duration) Rules {
	days := make(map[models.Weekday]DayRule)
	for _, day := range models.Weekdays {
		days[day] = DayRule{Available: day != models.DaySaturday && day != models.DaySunday, Start: "09:00", End: "17:00"}
	}
	return Rules{Days: days, Gap: gap, Location: time.UTC}
}

// 2025-01-06 is a Monday.
var monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func starts(slots []Window) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.UTC().Format("15:04")
	}
	return out
}

func TestGenerateBufferedExclusion(t *testing.T) {
	rules := workweekRules(15 * time.Minute)
	booked := []Window{{
		Start: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC),
	}}
	now := monday.Add(-24 * time.Hour)

	got, err := Generate(rules, monday, 30*time.Minute, booked, now)
	require.NoError(t, err)

	list := starts(got)
	assert.Contains(t, list, "09:00")
	assert.NotContains(t, list, "09:30", "ends inside the buffer before the booking")
	assert.NotContains(t, list, "10:00")
	assert.NotContains(t, list, "10:30", "starts inside the buffer after the booking")
	assert.Contains(t, list, "11:00")
	// 09:00-17:00 stepping by 30m yields 16 candidates, 3 removed.
	assert.Len(t, got, 13)
}

func TestGenerateUnavailableDayEmpty(t *testing.T) {
	rules := workweekRules(0)
	saturday := monday.AddDate(0, 0, 5)

	got, err := Generate(rules, saturday, 30*time.Minute, nil, monday)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateDiscardsPastSlots(t *testing.T) {
	rules := workweekRules(0)
	now := time.Date(2025, 1, 6, 12, 15, 0, 0, time.UTC)

	got, err := Generate(rules, monday, 60*time.Minute, nil, now)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "13:00", got[0].Start.Format("15:04"))
	for _, s := range got {
		assert.False(t, s.Start.Before(now))
	}
}

func TestGenerateDurationLongerThanWindow(t *testing.T) {
	rules := workweekRules(0)
	rules.Days[models.DayMonday] = DayRule{Available: true, Start: "09:00", End: "10:00"}

	got, err := Generate(rules, monday, 2*time.Hour, nil, monday)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateLastSlotEndsExactlyAtClose(t *testing.T) {
	rules := workweekRules(0)
	got, err := Generate(rules, monday, 30*time.Minute, nil, monday)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, "16:30", last.Start.Format("15:04"))
	assert.Equal(t, "17:00", last.End.Format("15:04"))
}

func TestGenerateIsDeterministic(t *testing.T) {
	rules := workweekRules(10 * time.Minute)
	booked := []Window{{
		Start: time.Date(2025, 1, 6, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 6, 14, 45, 0, 0, time.UTC),
	}}
	now := time.Date(2025, 1, 6, 9, 31, 0, 0, time.UTC)

	first, err := Generate(rules, monday, 45*time.Minute, booked, now)
	require.NoError(t, err)
	second, err := Generate(rules, monday, 45*time.Minute, booked, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateResolvesTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	rules := workweekRules(0)
	rules.Location = loc
	nyMonday := time.Date(2025, 1, 6, 0, 0, 0, 0, loc)

	got, err := Generate(rules, nyMonday, 60*time.Minute, nil, monday)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	// 09:00 in New York is 14:00 UTC in January.
	assert.Equal(t, "14:00", got[0].Start.UTC().Format("15:04"))
}

func TestGenerateRejectsNonPositiveDuration(t *testing.T) {
	_, err := Generate(workweekRules(0), monday, 0, nil, monday)
	require.Error(t, err)
}

func TestFromAvailabilityRejectsUnknownTimezone(t *testing.T) {
	_, err := FromAvailability(&models.Availability{Timezone: "Not/AZone"})
	require.Error(t, err)
}
