package service

import (
	"time"

	"github.com/noah-isme/internship-api/internal/models"
)

// Clock supplies the current instant to date-window rules. Calendar days are read in loc.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

// NewClock builds a clock from a time source and the timezone that defines calendar days.
func NewClock(now func() time.Time, loc *time.Location) Clock {
	return Clock{now: now, loc: loc}
}

// SystemClock reads wall-clock time in the given location.
func SystemClock(loc *time.Location) Clock {
	return NewClock(time.Now, loc)
}

// Now returns the current instant in the clock's location.
func (c Clock) Now() time.Time {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// Today returns the current calendar day.
func (c Clock) Today() time.Time {
	return models.DateOf(c.Now())
}

// LoadLocation resolves a timezone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
