// Package timeslot merges and compares time ranges that fall on a single weekday.
package timeslot

import (
	"slices"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// Merge combines overlapping or exactly adjacent periods into the minimal
// ordered sequence covering the same minutes. Input is expected in begin
// order; unsorted input is sorted on a copy first.
func Merge(periods []model.TimeRange) []model.TimeRange {
	if len(periods) == 0 {
		return []model.TimeRange{}
	}

	sorted := periods
	if !slices.IsSortedFunc(periods, compareBegin) {
		sorted = slices.Clone(periods)
		slices.SortStableFunc(sorted, compareBegin)
	}

	merged := make([]model.TimeRange, 0, len(sorted))
	current := sorted[0]
	for _, p := range sorted[1:] {
		// Overlapping or touching
		if p.Begin <= current.End {
			current.End = max(current.End, p.End)
			continue
		}
		merged = append(merged, current)
		current = p
	}
	merged = append(merged, current)

	return merged
}

// FitsWithin reports whether some merged period fully contains candidate
func FitsWithin(candidate model.TimeRange, merged []model.TimeRange) bool {
	for _, period := range merged {
		if period.Contains(candidate) {
			return true
		}
	}
	return false
}

// OverlapsAny reports whether candidate intersects any merged period (half-open)
func OverlapsAny(candidate model.TimeRange, merged []model.TimeRange) bool {
	for _, period := range merged {
		if period.Overlaps(candidate) {
			return true
		}
	}
	return false
}

// MergeByWeekday groups suitable time ranges by day and merges each day
func MergeByWeekday(ranges []model.SuitableTimeRange) map[model.Weekday][]model.TimeRange {
	byDay := make(map[model.Weekday][]model.TimeRange)
	for _, r := range ranges {
		byDay[r.DayOfTheWeek] = append(byDay[r.DayOfTheWeek], r.Range())
	}
	for day, periods := range byDay {
		byDay[day] = Merge(periods)
	}
	return byDay
}

// Gaps returns the free periods of window not covered by merged.
// merged must be the output of Merge.
func Gaps(window model.TimeRange, merged []model.TimeRange) []model.TimeRange {
	gaps := make([]model.TimeRange, 0)
	cursor := window.Begin
	for _, period := range merged {
		if period.End <= cursor {
			continue
		}
		if period.Begin >= window.End {
			break
		}
		if period.Begin > cursor {
			gaps = append(gaps, model.TimeRange{Begin: cursor, End: period.Begin})
		}
		cursor = max(cursor, period.End)
	}
	if cursor < window.End {
		gaps = append(gaps, model.TimeRange{Begin: cursor, End: window.End})
	}
	return gaps
}

func compareBegin(a, b model.TimeRange) int {
	return int(a.Begin) - int(b.Begin)
}
