package service

import (
	"time"

	"playchrono/internal/calendar"
)

// Clock supplies "now" and the campus timezone that decides what today is.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: time.Now, Location: loc}
}

func (c Clock) Today() calendar.Date {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return calendar.Today(now(), loc)
}
