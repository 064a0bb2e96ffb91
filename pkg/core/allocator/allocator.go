package allocator

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// Allocator manages one greedy allocation run over a state
type Allocator struct {
	state *AllocationState
	queue []*SectionState

	exhausted map[*SectionState]bool
	newSlots  []model.AllocatedTimeSlot
}

// AllocationConfig contains the configuration for an allocation run
type AllocationConfig struct {
	// State is the round to allocate. It is updated in place.
	State *AllocationState

	// SectionIDs restricts the run to these sections (all sections when empty)
	SectionIDs []string
}

// AllocationOutcome represents the result of an allocation run
type AllocationOutcome struct {
	// State is the final allocation state
	State *AllocationState

	// NewSlots are the slots created during this run, in allocation order
	NewSlots []model.AllocatedTimeSlot

	// UnsatisfiedSections took part in the run but still have weekly quota left
	UnsatisfiedSections []*SectionState

	// ValidationErrors contains any invariant violations found in the final state
	ValidationErrors []StateViolation

	// Success is true when the final state has no validation errors
	Success bool
}

// Allocate runs the greedy allocation loop for every allocatable section
func Allocate(config AllocationConfig) (*AllocationOutcome, error) {
	state := config.State
	if !state.RoundStatus.AllowsAllocation() {
		return nil, &model.StateConflictError{
			Entity: "application round",
			ID:     state.RoundID,
			Status: string(state.RoundStatus),
			Action: "allocate",
		}
	}

	allocator := &Allocator{
		state:     state,
		exhausted: make(map[*SectionState]bool),
		newSlots:  []model.AllocatedTimeSlot{},
	}

	// Queue sections that can still receive slots
	for _, section := range state.Sections {
		if len(config.SectionIDs) > 0 && !slices.Contains(config.SectionIDs, section.Section.ID) {
			continue
		}
		if !state.CanAllocate(section) || section.RemainingQuota() == 0 {
			continue
		}
		allocator.queue = append(allocator.queue, section)
	}
	RankSections(allocator.queue)
	participants := slices.Clone(allocator.queue)

	// Main allocation loop
	for len(allocator.queue) > 0 {
		// Pop first section
		section := allocator.queue[0]
		allocator.queue = allocator.queue[1:]

		candidate, found := allocator.findBestSlot(section)
		if !found {
			allocator.exhaustSection(section)
			continue
		}

		allocator.allocate(section, candidate)

		// Quota met or section otherwise finished
		if section.RemainingQuota() == 0 || !state.CanAllocate(section) {
			allocator.exhaustSection(section)
			continue
		}

		// Re-insert section at new ranking
		allocator.reinsertSection(section)
	}

	return allocator.buildOutcome(participants), nil
}

// AllocateSlot validates a single candidate and adds it to the state.
// Returns *model.ValidationError listing every violation when the candidate
// is rejected. force bypasses soft constraints only.
func AllocateSlot(state *AllocationState, candidate Candidate, force bool) (*model.AllocatedTimeSlot, error) {
	violations := ValidateCandidate(state, candidate, force)
	if len(violations) > 0 {
		return nil, &model.ValidationError{Violations: violations}
	}

	_, section, _ := state.Option(candidate.OptionID)
	slot := state.addSlot(section, candidate)
	return &slot, nil
}

// findBestSlot searches unfulfilled suitable days by priority, then usable
// options by preferred order, for the longest valid slot starting as early
// as possible
func (a *Allocator) findBestSlot(section *SectionState) (Candidate, bool) {
	step := int(model.DurationStep / time.Minute)
	longest := int(section.Section.ReservationMaxDuration/time.Minute) / step * step
	shortest := max(int(section.Section.ReservationMinDuration/time.Minute), step)

	for _, day := range section.UnfulfilledDays() {
		periods := section.MergedRanges(day)

		for i := range section.Options {
			option := &section.Options[i]
			if !option.IsUsable() {
				continue
			}

			for duration := longest; duration >= shortest; duration -= step {
				for _, period := range periods {
					for begin := int(period.Begin); begin+duration <= int(period.End); begin += step {
						candidate := Candidate{
							OptionID:     option.ID,
							DayOfTheWeek: day,
							BeginTime:    model.TimeOfDay(begin),
							EndTime:      model.TimeOfDay(begin + duration),
						}
						placement := Placement{Section: section, Option: option, Candidate: candidate}
						if len(validatePlacement(a.state, placement, false)) == 0 {
							return candidate, true
						}
					}
				}
			}
		}
	}

	return Candidate{}, false
}

func (a *Allocator) allocate(section *SectionState, candidate Candidate) {
	slot := a.state.addSlot(section, candidate)
	a.newSlots = append(a.newSlots, slot)
}

func (a *Allocator) exhaustSection(section *SectionState) {
	a.exhausted[section] = true
}

// reinsertSection puts a section back in the queue at its new rank
func (a *Allocator) reinsertSection(section *SectionState) {
	insertIdx := len(a.queue)
	for i, other := range a.queue {
		if compareSections(section, other) < 0 {
			insertIdx = i
			break
		}
	}
	a.queue = slices.Insert(a.queue, insertIdx, section)
}

// buildOutcome creates the final allocation outcome report
func (a *Allocator) buildOutcome(participants []*SectionState) *AllocationOutcome {
	outcome := &AllocationOutcome{
		State:               a.state,
		NewSlots:            a.newSlots,
		UnsatisfiedSections: []*SectionState{},
	}

	for _, section := range participants {
		if a.exhausted[section] && section.RemainingQuota() > 0 {
			outcome.UnsatisfiedSections = append(outcome.UnsatisfiedSections, section)
		}
	}

	outcome.ValidationErrors = ValidateState(a.state)
	outcome.Success = len(outcome.ValidationErrors) == 0

	return outcome
}

// addSlot records a new slot for the section
func (st *AllocationState) addSlot(section *SectionState, candidate Candidate) model.AllocatedTimeSlot {
	slot := model.AllocatedTimeSlot{
		ID:           uuid.NewString(),
		OptionID:     candidate.OptionID,
		SectionID:    section.Section.ID,
		DayOfTheWeek: candidate.DayOfTheWeek,
		BeginTime:    candidate.BeginTime,
		EndTime:      candidate.EndTime,
	}
	section.Allocations = append(section.Allocations, slot)
	return slot
}
