package allocator

import (
	"fmt"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// TimeRangeConstraint requires a valid weekday and begin < end within the day
type TimeRangeConstraint struct{}

func (c *TimeRangeConstraint) Name() string { return "TimeRange" }
func (c *TimeRangeConstraint) Soft() bool   { return false }

func (c *TimeRangeConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	var violations []model.Violation
	if !p.Candidate.DayOfTheWeek.IsValid() {
		violations = append(violations, model.Violation{
			Field:   "day_of_the_week",
			Code:    model.CodeInvalidTimeRange,
			Message: fmt.Sprintf("invalid day of the week %d", int(p.Candidate.DayOfTheWeek)),
		})
	}
	if !p.Candidate.Range().IsValid() {
		violations = append(violations, model.Violation{
			Field:   "begin_time",
			Code:    model.CodeInvalidTimeRange,
			Message: fmt.Sprintf("begin time must be before end time within the day, got %s", p.Candidate.Range()),
		})
	}
	return violations
}
