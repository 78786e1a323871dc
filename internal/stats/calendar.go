package stats

import (
	"fmt"
	"time"
)

// DayLayout is the date format accepted and printed for calendar days.
const DayLayout = "2006-01-02"

// Calendar computes day boundaries in one location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for loc. A nil loc means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	return c.loc
}

// DayStart returns the first instant of the local day containing t. That is
// local midnight, or the end of the DST gap on days where midnight is skipped.
func (c Calendar) DayStart(t time.Time) time.Time {
	t = t.In(c.loc)
	return c.dayStart(t.Year(), t.Month(), t.Day())
}

// dayStart accepts out-of-range days the way time.Date does.
func (c Calendar) dayStart(y int, m time.Month, d int) time.Time {
	y, m, d = time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, c.loc)
	if start.Day() != d {
		// Midnight fell into a gap and resolved into the previous day.
		_, end := start.ZoneBounds()
		start = end
	}
	return start
}

// Days returns the day starts in [start, end), stepping one calendar date at
// a time. Both bounds are normalized to their day start first.
func (c Calendar) Days(start, end time.Time) []time.Time {
	start, end = c.DayStart(start), c.DayStart(end)
	y, m, d := start.Date()
	var days []time.Time
	for i := 0; ; i++ {
		day := c.dayStart(y, m, d+i)
		if !day.Before(end) {
			return days
		}
		days = append(days, day)
	}
}

// ParseDay parses a DayLayout date as the start of that local day.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want %s)", s, DayLayout)
	}
	return c.dayStart(t.Year(), t.Month(), t.Day()), nil
}
