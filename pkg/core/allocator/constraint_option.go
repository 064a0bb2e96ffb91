package allocator

import "github.com/jakechorley/tilavaraus-allocation/pkg/core/model"

// OptionUsableConstraint rejects options that are rejected or locked
type OptionUsableConstraint struct{}

func (c *OptionUsableConstraint) Name() string { return "OptionUsable" }
func (c *OptionUsableConstraint) Soft() bool   { return false }

func (c *OptionUsableConstraint) Check(state *AllocationState, p Placement) []model.Violation {
	var violations []model.Violation
	if p.Option.Rejected {
		violations = append(violations, model.Violation{
			Field:   "option_id",
			Code:    model.CodeOptionRejected,
			Message: "reservation unit option has been rejected",
		})
	}
	if p.Option.Locked {
		violations = append(violations, model.Violation{
			Field:   "option_id",
			Code:    model.CodeOptionLocked,
			Message: "reservation unit option is locked",
		})
	}
	return violations
}
