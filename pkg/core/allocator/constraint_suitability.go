package allocator

import (
	"fmt"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/timeslot"
)

// DaySuitableConstraint requires the slot's weekday to be one the applicant
// marked suitable. Soft.
type DaySuitableConstraint struct{}

func (c *DaySuitableConstraint) Name() string { return "DaySuitable" }
func (c *DaySuitableConstraint) Soft() bool   { return true }

func (c *DaySuitableConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	if p.Section.IsSuitableDay(p.Candidate.DayOfTheWeek) {
		return nil
	}
	return []model.Violation{{
		Field:   "day_of_the_week",
		Code:    model.CodeDayNotSuitable,
		Message: fmt.Sprintf("%s is not a suitable day for the section", p.Candidate.DayOfTheWeek),
	}}
}

// DurationConstraint requires the slot duration to lie within the section's
// reservation bounds and be a multiple of 30 minutes. Soft.
type DurationConstraint struct{}

func (c *DurationConstraint) Name() string { return "Duration" }
func (c *DurationConstraint) Soft() bool   { return true }

func (c *DurationConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	r := p.Candidate.Range()
	if !r.IsValid() {
		// Reported by TimeRangeConstraint
		return nil
	}

	var violations []model.Violation
	duration := r.Duration()
	minDuration := p.Section.Section.ReservationMinDuration
	maxDuration := p.Section.Section.ReservationMaxDuration

	if duration < minDuration || duration > maxDuration {
		violations = append(violations, model.Violation{
			Field:   "end_time",
			Code:    model.CodeDurationOutOfBounds,
			Message: fmt.Sprintf("duration %s is not between %s and %s", duration, minDuration, maxDuration),
		})
	}
	if duration%model.DurationStep != 0 {
		violations = append(violations, model.Violation{
			Field:   "end_time",
			Code:    model.CodeDurationStep,
			Message: fmt.Sprintf("duration %s is not a multiple of %s", duration, model.DurationStep),
		})
	}

	return violations
}

// SuitableRangeConstraint requires the slot to fit fully inside the merged
// suitable time ranges of its weekday. Soft.
type SuitableRangeConstraint struct{}

func (c *SuitableRangeConstraint) Name() string { return "SuitableRange" }
func (c *SuitableRangeConstraint) Soft() bool   { return true }

func (c *SuitableRangeConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	// Unsuitable days are reported by DaySuitableConstraint
	if !p.Section.IsSuitableDay(p.Candidate.DayOfTheWeek) {
		return nil
	}
	if timeslot.FitsWithin(p.Candidate.Range(), p.Section.MergedRanges(p.Candidate.DayOfTheWeek)) {
		return nil
	}
	return []model.Violation{{
		Field:   "begin_time",
		Code:    model.CodeOutsideSuitableRange,
		Message: fmt.Sprintf("%s is outside suitable time range", p.Candidate.Range()),
	}}
}
