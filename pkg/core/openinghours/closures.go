package openinghours

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

// Closure is a recurring full-day closure such as a public holiday
type Closure struct {
	Name string

	// UnitIDs the closure applies to; every unit when empty
	UnitIDs []string

	option rrule.ROption
}

// ParseClosure parses an RFC 5545 recurrence rule, e.g.
// "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=24"
func ParseClosure(name, rule string, unitIDs []string) (Closure, error) {
	option, err := rrule.StrToROption(rule)
	if err != nil {
		return Closure{}, fmt.Errorf("failed to parse rrule for closure %s: %w", name, err)
	}
	return Closure{Name: name, UnitIDs: unitIDs, option: *option}, nil
}

func (c Closure) appliesTo(unitID string) bool {
	return len(c.UnitIDs) == 0 || slices.Contains(c.UnitIDs, unitID)
}

// closedOn reports whether the closure falls on the local day starting at dayStart
func (c Closure) closedOn(dayStart time.Time) (bool, error) {
	option := c.option
	option.Dtstart = dayStart
	rule, err := rrule.NewRRule(option)
	if err != nil {
		return false, fmt.Errorf("failed to build rrule for closure %s: %w", c.Name, err)
	}

	dayEnd := time.Date(dayStart.Year(), dayStart.Month(), dayStart.Day()+1, 0, 0, 0, 0, dayStart.Location())
	return len(rule.Between(dayStart, dayEnd.Add(-time.Second), true)) > 0, nil
}

// ClosureOracle closes units on the days matched by any closure and defers
// to the wrapped oracle otherwise
type ClosureOracle struct {
	next     Oracle
	loc      *time.Location
	closures []Closure
}

// WithClosures wraps next with the given closures
func WithClosures(next Oracle, loc *time.Location, closures ...Closure) *ClosureOracle {
	if loc == nil {
		loc = time.UTC
	}
	return &ClosureOracle{next: next, loc: loc, closures: closures}
}

func (o *ClosureOracle) IsOpen(ctx context.Context, unitID string, begin, end time.Time) (bool, error) {
	localBegin := begin.In(o.loc)
	localEnd := end.In(o.loc)

	for day := time.Date(localBegin.Year(), localBegin.Month(), localBegin.Day(), 0, 0, 0, 0, o.loc); day.Before(localEnd); day = day.AddDate(0, 0, 1) {
		for _, closure := range o.closures {
			if !closure.appliesTo(unitID) {
				continue
			}
			closed, err := closure.closedOn(day)
			if err != nil {
				return false, err
			}
			if closed {
				return false, nil
			}
		}
	}

	return o.next.IsOpen(ctx, unitID, begin, end)
}
