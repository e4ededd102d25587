// Package slots derives bookable time windows from a weekly schedule.
// Generation is a pure function of its inputs: the same rules, date,
// duration, bookings and clock always yield the same slots.
package slots

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/schedulrr/schedulrr-api/internal/models"
)

// Window is a half-open [Start, End) interval in UTC.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DayRule is the availability rule for a single weekday.
type DayRule struct {
	Available bool
	Start     string // "HH:MM" wall clock
	End       string
}

// Rules is a resolved weekly schedule.
type Rules struct {
	Days     map[models.Weekday]DayRule
	Gap      time.Duration
	Location *time.Location
}

// FromAvailability resolves a stored availability into generation rules.
func FromAvailability(av *models.Availability) (Rules, error) {
	loc := time.UTC
	if av.Timezone != "" {
		parsed, err := time.LoadLocation(av.Timezone)
		if err != nil {
			return Rules{}, fmt.Errorf("resolve timezone %q: %w", av.Timezone, err)
		}
		loc = parsed
	}

	days := make(map[models.Weekday]DayRule, len(av.Days))
	for _, d := range av.Days {
		days[d.Day] = DayRule{Available: d.IsAvailable, Start: d.StartTime, End: d.EndTime}
	}

	return Rules{
		Days:     days,
		Gap:      time.Duration(av.TimeGap) * time.Minute,
		Location: loc,
	}, nil
}

// Generate enumerates slots of the given duration on date. Candidates step
// by the event duration from the day's start time; a candidate is dropped
// when it would end after the day's end time, when it starts before now,
// or when it overlaps any booked window widened by the buffer gap on both
// sides. Date is interpreted in the rules' timezone; output is UTC.
func Generate(rules Rules, date time.Time, duration time.Duration, booked []Window, now time.Time) ([]Window, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}

	loc := rules.Location
	if loc == nil {
		loc = time.UTC
	}
	localDate := date.In(loc)

	rule, ok := rules.Days[models.WeekdayOf(localDate)]
	if !ok || !rule.Available {
		return nil, nil
	}

	dayStart, err := atClock(localDate, rule.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("day start: %w", err)
	}
	dayEnd, err := atClock(localDate, rule.End, loc)
	if err != nil {
		return nil, fmt.Errorf("day end: %w", err)
	}

	var result []Window
	for cur := dayStart; !cur.Add(duration).After(dayEnd); cur = cur.Add(duration) {
		slot := Window{Start: cur.UTC(), End: cur.Add(duration).UTC()}

		if slot.Start.Before(now) {
			continue
		}
		if overlapsAny(slot, booked, rules.Gap) {
			continue
		}
		result = append(result, slot)
	}

	return result, nil
}

func overlapsAny(slot Window, booked []Window, gap time.Duration) bool {
	for _, b := range booked {
		if slot.Start.Before(b.End.Add(gap)) && slot.End.After(b.Start.Add(-gap)) {
			return true
		}
	}
	return false
}

// ParseClock validates an "HH:MM" wall-clock string.
func ParseClock(clock string) (hour, minute int, err error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed time %q", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("malformed hour in %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("malformed minute in %q", clock)
	}
	return hour, minute, nil
}

// atClock anchors an "HH:MM" wall-clock string on the given date.
func atClock(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc), nil
}
