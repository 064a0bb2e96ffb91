package allocator

import (
	"fmt"
	"slices"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// NoOverlapConstraint forbids two slots on units of a shared hierarchy from
// overlapping on the same weekday.
//
// Validity:
//   - Invalid if any existing slot on a related unit overlaps the candidate
//     (half-open, so back-to-back slots are fine)
//
// State:
//   - Reports every overlapping pair once
type NoOverlapConstraint struct{}

func (c *NoOverlapConstraint) Name() string { return "NoOverlap" }
func (c *NoOverlapConstraint) Soft() bool   { return false }

func (c *NoOverlapConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	related := state.RelatedUnits(p.Option.ReservationUnitID)
	candidate := p.Candidate.Range()

	var violations []model.Violation
	for _, section := range state.Sections {
		for _, slot := range section.Allocations {
			if slot.DayOfTheWeek != p.Candidate.DayOfTheWeek || !slot.Range().Overlaps(candidate) {
				continue
			}
			unit := state.UnitOf(slot)
			if !slices.Contains(related, unit) {
				continue
			}
			violations = append(violations, model.Violation{
				Field: "begin_time",
				Code:  model.CodeOverlappingAlloc,
				Message: fmt.Sprintf("overlapping allocation %s %s on reservation unit %s",
					slot.DayOfTheWeek, slot.Range(), unit),
			})
		}
	}
	return violations
}

func (c *NoOverlapConstraint) ValidateState(state *AllocationState) []StateViolation {
	slots := state.Slots()

	var violations []StateViolation
	for i, a := range slots {
		related := state.RelatedUnits(state.UnitOf(a))
		for _, b := range slots[i+1:] {
			if a.DayOfTheWeek != b.DayOfTheWeek || !a.Range().Overlaps(b.Range()) {
				continue
			}
			if !slices.Contains(related, state.UnitOf(b)) {
				continue
			}
			violations = append(violations, StateViolation{
				SectionID:      a.SectionID,
				SlotID:         a.ID,
				ConstraintName: c.Name(),
				Description: fmt.Sprintf("slot %s %s overlaps slot %s %s on a related reservation unit",
					a.ID, a.Range(), b.ID, b.Range()),
			})
		}
	}
	return violations
}
