package allocator

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// StateInput contains the raw round data needed to build an AllocationState
type StateInput struct {
	RoundID     string
	RoundStatus model.RoundStatus

	Applications   []model.Application
	Sections       []model.ApplicationSection
	SuitableRanges []model.SuitableTimeRange
	Options        []model.ReservationUnitOption

	// Slots already allocated in the round
	Slots []model.AllocatedTimeSlot

	// Related maps reservation units to their conflicting units
	Related map[string][]string

	// Constraints to apply; DefaultConstraints when empty
	Constraints []Constraint
}

// InitState builds the allocation state for a round.
//
// Sections are ordered by creation time (ID breaks ties) and options by
// preferred order. Returns an error when a record references a parent that
// is not part of the input.
func InitState(input StateInput) (*AllocationState, error) {
	constraints := input.Constraints
	if len(constraints) == 0 {
		constraints = DefaultConstraints()
	}

	state := &AllocationState{
		RoundID:       input.RoundID,
		RoundStatus:   input.RoundStatus,
		Applications:  make(map[string]model.Application, len(input.Applications)),
		Related:       input.Related,
		Constraints:   constraints,
		sectionsByID:  make(map[string]*SectionState, len(input.Sections)),
		sectionsByApp: make(map[string][]*SectionState),
		options:       make(map[string]optionRef, len(input.Options)),
	}
	if state.Related == nil {
		state.Related = make(map[string][]string)
	}

	for _, app := range input.Applications {
		state.Applications[app.ID] = app
	}

	// Step 1: Sections in creation order
	sections := slices.Clone(input.Sections)
	slices.SortStableFunc(sections, func(a, b model.ApplicationSection) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	for i, section := range sections {
		if _, ok := state.Applications[section.ApplicationID]; !ok {
			return nil, fmt.Errorf("section %s references unknown application %s", section.ID, section.ApplicationID)
		}
		if _, dup := state.sectionsByID[section.ID]; dup {
			return nil, fmt.Errorf("duplicate section %s", section.ID)
		}
		ss := &SectionState{
			Section:        section,
			Order:          i,
			SuitableRanges: []model.SuitableTimeRange{},
			Options:        []model.ReservationUnitOption{},
			Allocations:    []model.AllocatedTimeSlot{},
		}
		state.Sections = append(state.Sections, ss)
		state.sectionsByID[section.ID] = ss
		state.sectionsByApp[section.ApplicationID] = append(state.sectionsByApp[section.ApplicationID], ss)
	}

	// Step 2: Suitable ranges
	for _, r := range input.SuitableRanges {
		section, ok := state.sectionsByID[r.SectionID]
		if !ok {
			return nil, fmt.Errorf("suitable time range %s references unknown section %s", r.ID, r.SectionID)
		}
		section.SuitableRanges = append(section.SuitableRanges, r)
	}

	// Step 3: Options by preferred order
	for _, option := range input.Options {
		section, ok := state.sectionsByID[option.SectionID]
		if !ok {
			return nil, fmt.Errorf("option %s references unknown section %s", option.ID, option.SectionID)
		}
		section.Options = append(section.Options, option)
	}
	for _, section := range state.Sections {
		slices.SortStableFunc(section.Options, func(a, b model.ReservationUnitOption) int {
			return cmp.Compare(a.PreferredOrder, b.PreferredOrder)
		})
		for i, option := range section.Options {
			state.options[option.ID] = optionRef{section: section, index: i}
		}
	}

	// Step 4: Existing allocations
	for _, slot := range input.Slots {
		_, section, ok := state.Option(slot.OptionID)
		if !ok {
			return nil, fmt.Errorf("allocated time slot %s references unknown option %s", slot.ID, slot.OptionID)
		}
		if slot.SectionID == "" {
			slot.SectionID = section.Section.ID
		}
		if slot.SectionID != section.Section.ID {
			return nil, fmt.Errorf("allocated time slot %s belongs to section %s but its option belongs to %s",
				slot.ID, slot.SectionID, section.Section.ID)
		}
		section.Allocations = append(section.Allocations, slot)
	}

	return state, nil
}
