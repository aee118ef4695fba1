package sla

import (
	"time"

	"github.com/spec-kit/ticket-sla/internal/domain"
)

const holidayLayout = "2006-01-02"

// Calendar describes working time for business-hours reporting. The zero
// value is disabled and counts wall-clock time.
type Calendar struct {
	Enabled   bool
	Location  *time.Location
	WorkDays  []time.Weekday
	StartHour int
	EndHour   int
	// Holidays are local dates formatted as YYYY-MM-DD.
	Holidays []string
}

// DefaultCalendar is Monday to Friday, 09:00 to 18:00 in loc.
func DefaultCalendar(loc *time.Location) Calendar {
	return Calendar{
		Enabled:   true,
		Location:  loc,
		WorkDays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartHour: 9,
		EndHour:   18,
	}
}

// BusinessElapsed walks from start to end one hour at a time and counts the
// steps that begin inside working time. Each counted step is a full hour.
func (c Calendar) BusinessElapsed(start, end time.Time) time.Duration {
	if !end.After(start) {
		return 0
	}
	if !c.Enabled {
		return end.Sub(start)
	}

	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	holidays := make(map[string]struct{}, len(c.Holidays))
	for _, h := range c.Holidays {
		holidays[h] = struct{}{}
	}

	var total time.Duration
	for cur := start; cur.Before(end); cur = cur.Add(time.Hour) {
		if c.counts(cur.In(loc), holidays) {
			total += time.Hour
		}
	}
	return total
}

func (c Calendar) counts(local time.Time, holidays map[string]struct{}) bool {
	if !c.isWorkDay(local.Weekday()) {
		return false
	}
	if _, ok := holidays[local.Format(holidayLayout)]; ok {
		return false
	}
	h := local.Hour()
	return h >= c.StartHour && h < c.EndHour
}

func (c Calendar) isWorkDay(d time.Weekday) bool {
	for _, w := range c.WorkDays {
		if w == d {
			return true
		}
	}
	return false
}

// Elapsed is the time t has spent since creation, in business hours when
// the calendar is enabled.
func Elapsed(t *domain.Ticket, now time.Time, cal Calendar) time.Duration {
	return cal.BusinessElapsed(t.CreatedAt, now)
}
