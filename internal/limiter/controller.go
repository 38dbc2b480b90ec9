// Package limiter decides which dates and times a picker may select and
// rounds arbitrary input onto the nearest selectable value.
//
// Invalid configuration is reported by wrapping calendar.ErrInvalidArgument.
//
// The limiters are safe for concurrent use: setters take a write lock and
// rebuild derived sets before releasing it, queries take a read lock.
package limiter

import (
	"time"

	"pickcal/internal/calendar"
)

// Controller is the read-only view of the hosting picker that the date
// limiter needs: the current day, the display location and the calendar
// system years are counted in.
type Controller interface {
	Today() time.Time
	Location() *time.Location
	System() calendar.System
}

// StaticController is a Controller backed by plain fields. Now defaults to
// time.Now and Loc to time.Local.
type StaticController struct {
	Loc      *time.Location
	Calendar calendar.System
	Now      func() time.Time
}

func (c StaticController) Location() *time.Location {
	if c.Loc == nil {
		return time.Local
	}
	return c.Loc
}

func (c StaticController) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return trimToMidnight(now().In(c.Location()))
}

func (c StaticController) System() calendar.System {
	return c.Calendar
}
