// Package openinghours answers whether a reservation unit is open for a
// whole datetime window
package openinghours

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/timeslot"
)

// Oracle reports whether a reservation unit is open for [begin, end)
type Oracle interface {
	IsOpen(ctx context.Context, unitID string, begin, end time.Time) (bool, error)
}

// Source loads weekly opening hours, e.g. from a spreadsheet
type Source interface {
	GetOpeningHours(ctx context.Context) ([]model.OpeningHours, error)
}

// WeeklySchedule is a static Oracle with the same hours every week.
// Units without any hours are closed.
type WeeklySchedule struct {
	loc   *time.Location
	hours map[string]map[model.Weekday][]model.TimeRange
}

// NewWeeklySchedule builds a schedule from opening hour entries.
// Overlapping and adjacent entries of the same unit and day are merged.
func NewWeeklySchedule(loc *time.Location, entries []model.OpeningHours) (*WeeklySchedule, error) {
	if loc == nil {
		loc = time.UTC
	}

	byUnit := make(map[string]map[model.Weekday][]model.TimeRange)
	for _, entry := range entries {
		if !entry.DayOfTheWeek.IsValid() {
			return nil, fmt.Errorf("invalid day %d for unit %s", int(entry.DayOfTheWeek), entry.ReservationUnitID)
		}
		if !entry.Range().IsValid() {
			return nil, fmt.Errorf("invalid opening hours %s for unit %s", entry.Range(), entry.ReservationUnitID)
		}
		if byUnit[entry.ReservationUnitID] == nil {
			byUnit[entry.ReservationUnitID] = make(map[model.Weekday][]model.TimeRange)
		}
		byUnit[entry.ReservationUnitID][entry.DayOfTheWeek] = append(byUnit[entry.ReservationUnitID][entry.DayOfTheWeek], entry.Range())
	}

	for _, days := range byUnit {
		for day, periods := range days {
			days[day] = timeslot.Merge(periods)
		}
	}

	return &WeeklySchedule{loc: loc, hours: byUnit}, nil
}

func (s *WeeklySchedule) IsOpen(_ context.Context, unitID string, begin, end time.Time) (bool, error) {
	if !end.After(begin) {
		return false, fmt.Errorf("invalid window %s - %s", begin, end)
	}

	days := s.hours[unitID]
	if days == nil {
		return false, nil
	}

	for _, segment := range splitByDay(begin.In(s.loc), end.In(s.loc)) {
		if !timeslot.FitsWithin(segment.window, days[segment.day]) {
			return false, nil
		}
	}
	return true, nil
}

type daySegment struct {
	day    model.Weekday
	window model.TimeRange
}

// splitByDay cuts [begin, end) at local midnights
func splitByDay(begin, end time.Time) []daySegment {
	var segments []daySegment
	for cursor := begin; cursor.Before(end); {
		midnight := time.Date(cursor.Year(), cursor.Month(), cursor.Day()+1, 0, 0, 0, 0, cursor.Location())
		segmentEnd := model.TimeOfDay(model.MinutesPerDay)
		if end.Before(midnight) {
			segmentEnd = minutesOf(end)
		}
		window := model.TimeRange{Begin: minutesOf(cursor), End: segmentEnd}
		if window.Begin < window.End {
			segments = append(segments, daySegment{day: model.WeekdayOf(cursor), window: window})
		}
		cursor = midnight
	}
	return segments
}

func minutesOf(t time.Time) model.TimeOfDay {
	return model.NewTimeOfDay(t.Hour(), t.Minute())
}

// SourceOracle loads a WeeklySchedule from a Source on first use.
// A failed load is returned to the caller and retried on the next call.
type SourceOracle struct {
	source Source
	loc    *time.Location

	mu       sync.Mutex
	schedule *WeeklySchedule
}

// NewSourceOracle creates an oracle backed by source
func NewSourceOracle(source Source, loc *time.Location) *SourceOracle {
	return &SourceOracle{source: source, loc: loc}
}

func (o *SourceOracle) load(ctx context.Context) (*WeeklySchedule, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.schedule != nil {
		return o.schedule, nil
	}

	entries, err := o.source.GetOpeningHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load opening hours: %w", err)
	}
	schedule, err := NewWeeklySchedule(o.loc, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to build opening hours schedule: %w", err)
	}
	o.schedule = schedule
	return schedule, nil
}

func (o *SourceOracle) IsOpen(ctx context.Context, unitID string, begin, end time.Time) (bool, error) {
	schedule, err := o.load(ctx)
	if err != nil {
		return false, err
	}
	return schedule.IsOpen(ctx, unitID, begin, end)
}
