package allocator

import (
	"fmt"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// QuotaConstraint caps a section at its applied reservations per week.
//
// Validity:
//   - Invalid once the section owns AppliedReservationsPerWeek slots
//
// State:
//   - Reports sections owning more slots than their quota
type QuotaConstraint struct{}

func (c *QuotaConstraint) Name() string { return "Quota" }
func (c *QuotaConstraint) Soft() bool   { return false }

func (c *QuotaConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	if p.Section.RemainingQuota() > 0 {
		return nil
	}
	return []model.Violation{{
		Field: "application_section",
		Code:  model.CodeQuotaExceeded,
		Message: fmt.Sprintf("quota exceeded: section already has %d of %d weekly reservations",
			len(p.Section.Allocations), p.Section.Section.AppliedReservationsPerWeek),
	}}
}

func (c *QuotaConstraint) ValidateState(state *AllocationState) []StateViolation {
	var violations []StateViolation
	for _, section := range state.Sections {
		if len(section.Allocations) > section.Section.AppliedReservationsPerWeek {
			violations = append(violations, StateViolation{
				SectionID:      section.Section.ID,
				ConstraintName: c.Name(),
				Description: fmt.Sprintf("section has %d slots but applied for %d per week",
					len(section.Allocations), section.Section.AppliedReservationsPerWeek),
			})
		}
	}
	return violations
}

// OnePerDayConstraint allows at most one slot per weekday per section
type OnePerDayConstraint struct{}

func (c *OnePerDayConstraint) Name() string { return "OnePerDay" }
func (c *OnePerDayConstraint) Soft() bool   { return false }

func (c *OnePerDayConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	if !p.Section.HasAllocationOn(p.Candidate.DayOfTheWeek) {
		return nil
	}
	return []model.Violation{{
		Field:   "day_of_the_week",
		Code:    model.CodeDayAlreadyAllocated,
		Message: fmt.Sprintf("section already has a slot on %s", p.Candidate.DayOfTheWeek),
	}}
}

func (c *OnePerDayConstraint) ValidateState(state *AllocationState) []StateViolation {
	var violations []StateViolation
	for _, section := range state.Sections {
		seen := make(map[model.Weekday]bool)
		for _, slot := range section.Allocations {
			if seen[slot.DayOfTheWeek] {
				violations = append(violations, StateViolation{
					SectionID:      section.Section.ID,
					SlotID:         slot.ID,
					ConstraintName: c.Name(),
					Description:    fmt.Sprintf("section has more than one slot on %s", slot.DayOfTheWeek),
				})
			}
			seen[slot.DayOfTheWeek] = true
		}
	}
	return violations
}
