package allocator

import (
	"fmt"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// StatusConstraint requires the round, application and section statuses to
// permit allocation
type StatusConstraint struct{}

func (c *StatusConstraint) Name() string { return "Status" }
func (c *StatusConstraint) Soft() bool   { return false }

func (c *StatusConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	var violations []model.Violation

	if !state.RoundStatus.AllowsAllocation() {
		violations = append(violations, model.Violation{
			Field:   "application_round",
			Code:    model.CodeRoundStatus,
			Message: fmt.Sprintf("round in status %s does not allow allocation", state.RoundStatus),
		})
	}

	appStatus := state.ApplicationStatus(p.Section.Section.ApplicationID)
	if !appStatus.CanAllocate() {
		violations = append(violations, model.Violation{
			Field:   "application",
			Code:    model.CodeApplicationStatus,
			Message: fmt.Sprintf("application in status %s cannot be allocated", appStatus),
		})
	}

	sectionStatus := state.SectionStatus(p.Section)
	if !sectionStatus.CanAllocate() {
		violations = append(violations, model.Violation{
			Field:   "application_section",
			Code:    model.CodeSectionStatus,
			Message: fmt.Sprintf("section in status %s cannot be allocated", sectionStatus),
		})
	}

	return violations
}
