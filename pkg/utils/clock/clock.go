// Package clock provides the current time in the configured time zone
package clock

import "time"

// Clock returns the current local time
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

// System returns a clock backed by time.Now in loc
func System(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c systemClock) Location() *time.Location {
	return c.loc
}

// FixedClock always returns the same instant. Used by tests and dry runs.
type FixedClock struct {
	At time.Time
}

// Fixed returns a clock frozen at t
func Fixed(t time.Time) *FixedClock {
	return &FixedClock{At: t}
}

func (c *FixedClock) Now() time.Time {
	return c.At
}

func (c *FixedClock) Location() *time.Location {
	return c.At.Location()
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.At = c.At.Add(d)
}
