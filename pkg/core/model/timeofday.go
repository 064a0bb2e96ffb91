package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a day of the week with Monday as 0 and Sunday as 6
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

func (d Weekday) IsValid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.IsValid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// TimeWeekday converts to the standard library representation (Sunday = 0)
func (d Weekday) TimeWeekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// WeekdayOf returns the Weekday of the given date
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// ParseWeekday accepts full names ("MONDAY", "monday"), three letter
// abbreviations ("Mon") and digits 0-6
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		d := Weekday(n)
		if !d.IsValid() {
			return 0, fmt.Errorf("weekday out of range: %d", n)
		}
		return d, nil
	}
	for i, name := range weekdayNames {
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday: %q", s)
}

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
// 1440 is allowed so a range may end at midnight.
type TimeOfDay int

const (
	MinutesPerDay = 24 * 60

	// DurationStep is the granularity of reservation durations
	DurationStep = 30 * time.Minute
)

// NewTimeOfDay builds a TimeOfDay from hours and minutes
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (or "HH:MM:SS", seconds ignored)
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time of day out of range: %q", s)
	}
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) IsValid() bool {
	return t >= 0 && t <= MinutesPerDay
}

// IsOnTheHour reports whether the minute component is zero
func (t TimeOfDay) IsOnTheHour() bool {
	return t.Minute() == 0
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Duration returns the offset from midnight
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// On combines a calendar date with this time of day in loc
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// TimeRange is a half-open [Begin, End) interval within a single day
type TimeRange struct {
	Begin TimeOfDay
	End   TimeOfDay
}

func (r TimeRange) Duration() time.Duration {
	return (r.End - r.Begin).Duration()
}

// IsValid requires both ends inside the day and Begin < End
func (r TimeRange) IsValid() bool {
	return r.Begin.IsValid() && r.End.IsValid() && r.Begin < r.End
}

// Overlaps uses half-open semantics: touching ranges do not overlap
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.End > other.Begin && r.Begin < other.End
}

// Contains reports whether other lies fully inside r
func (r TimeRange) Contains(other TimeRange) bool {
	return other.Begin >= r.Begin && other.End <= r.End
}

func (r TimeRange) String() string {
	return r.Begin.String() + "-" + r.End.String()
}
