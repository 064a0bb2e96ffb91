// Package recurrence expands allocated weekly slots into dated reservations
package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// NextOrCurrentMatchingWeekday returns the first date on or after date that
// falls on weekday
func NextOrCurrentMatchingWeekday(date time.Time, weekday model.Weekday) time.Time {
	delta := (int(weekday) - int(model.WeekdayOf(date)) + 7) % 7
	return date.AddDate(0, 0, delta)
}

// PreviousOrCurrentMatchingWeekday returns the last date on or before date
// that falls on weekday
func PreviousOrCurrentMatchingWeekday(date time.Time, weekday model.Weekday) time.Time {
	delta := (int(model.WeekdayOf(date)) - int(weekday) + 7) % 7
	return date.AddDate(0, 0, -delta)
}

// OccurrenceRule describes a weekly or biweekly series inside a date period
type OccurrenceRule struct {
	// PeriodBegin and PeriodEnd are inclusive calendar dates; their clock
	// time and location are ignored
	PeriodBegin time.Time
	PeriodEnd   time.Time

	Weekday   model.Weekday
	BeginTime model.TimeOfDay
	EndTime   model.TimeOfDay
	Biweekly  bool

	// Location the occurrences are built in (UTC when nil)
	Location *time.Location
}

// Occurrence is one dated instance of a series
type Occurrence struct {
	Begin time.Time
	End   time.Time
}

// Occurrences expands the rule into dated occurrences.
//
// The series starts on the first matching weekday on or after PeriodBegin and
// ends on the last matching weekday on or before PeriodEnd, both inclusive.
// Returns an empty slice when no matching weekday falls inside the period.
func Occurrences(rule OccurrenceRule) ([]Occurrence, error) {
	if !rule.Weekday.IsValid() {
		return nil, fmt.Errorf("invalid weekday %d", int(rule.Weekday))
	}
	timeRange := model.TimeRange{Begin: rule.BeginTime, End: rule.EndTime}
	if !timeRange.IsValid() {
		return nil, fmt.Errorf("invalid time range %s", timeRange)
	}

	loc := rule.Location
	if loc == nil {
		loc = time.UTC
	}

	first := NextOrCurrentMatchingWeekday(calendarDate(rule.PeriodBegin, loc), rule.Weekday)
	last := PreviousOrCurrentMatchingWeekday(calendarDate(rule.PeriodEnd, loc), rule.Weekday)
	if first.After(last) {
		return []Occurrence{}, nil
	}

	interval := 1
	if rule.Biweekly {
		interval = 2
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: interval,
		Dtstart:  rule.BeginTime.On(first, loc),
		Until:    rule.EndTime.On(last, loc),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	starts := r.All()
	occurrences := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		// Rebuild from the calendar date so wall-clock times survive DST changes
		occurrences = append(occurrences, Occurrence{
			Begin: rule.BeginTime.On(start, loc),
			End:   rule.EndTime.On(start, loc),
		})
	}

	return occurrences, nil
}

func calendarDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
