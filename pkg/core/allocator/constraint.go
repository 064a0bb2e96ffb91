package allocator

import "github.com/jakechorley/tilavaraus-allocation/pkg/core/model"

// StateViolation represents a broken invariant found in a whole allocation state
type StateViolation struct {
	SectionID      string
	SlotID         string
	ConstraintName string
	Description    string
}

// Constraint is one rule a candidate slot must satisfy
type Constraint interface {
	// Name returns a human-readable identifier for this constraint
	Name() string

	// Soft constraints are skipped when the caller forces the allocation.
	// Hard constraints always apply.
	Soft() bool

	// Check returns every violation the placement causes (empty if valid).
	// Checks never stop at the first violation so callers can report all
	// problems at once.
	Check(state *AllocationState, placement Placement) []model.Violation
}

// StateChecker is implemented by constraints that can also verify a whole state
type StateChecker interface {
	// ValidateState returns every violation present in the state
	ValidateState(state *AllocationState) []StateViolation
}

// DefaultConstraints returns the full rule set used for allocation
func DefaultConstraints() []Constraint {
	return []Constraint{
		// Soft
		&DaySuitableConstraint{},
		&DurationConstraint{},
		&SuitableRangeConstraint{},

		// Hard
		&TimeRangeConstraint{},
		&OptionUsableConstraint{},
		&StatusConstraint{},
		&OnePerDayConstraint{},
		&QuotaConstraint{},
		&NoOverlapConstraint{},
	}
}

// ValidateCandidate checks a candidate against every constraint of the state
// and returns all violations. force skips soft constraints.
func ValidateCandidate(state *AllocationState, candidate Candidate, force bool) []model.Violation {
	option, section, ok := state.Option(candidate.OptionID)
	if !ok {
		return []model.Violation{{
			Field:   "option_id",
			Code:    model.CodeUnknownOption,
			Message: "reservation unit option " + candidate.OptionID + " does not exist",
		}}
	}
	return validatePlacement(state, Placement{Section: section, Option: option, Candidate: candidate}, force)
}

func validatePlacement(state *AllocationState, placement Placement, force bool) []model.Violation {
	violations := make([]model.Violation, 0)
	for _, constraint := range state.Constraints {
		if force && constraint.Soft() {
			continue
		}
		violations = append(violations, constraint.Check(state, placement)...)
	}
	return violations
}

// ValidateState validates the whole state against every constraint that
// supports state validation. An empty slice means the state is valid.
func ValidateState(state *AllocationState) []StateViolation {
	violations := make([]StateViolation, 0)
	for _, constraint := range state.Constraints {
		checker, ok := constraint.(StateChecker)
		if !ok {
			continue
		}
		violations = append(violations, checker.ValidateState(state)...)
	}
	return violations
}
