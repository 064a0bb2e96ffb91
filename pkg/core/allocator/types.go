package allocator

import (
	"cmp"
	"slices"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/status"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/timeslot"
)

// AllocationState represents every section of a round competing for
// reservation units, together with the slots allocated so far
type AllocationState struct {
	RoundID     string
	RoundStatus model.RoundStatus

	// Applications by ID
	Applications map[string]model.Application

	// Sections in creation order
	Sections []*SectionState

	// Related maps a reservation unit to every unit whose bookings conflict
	// with it (itself included). Units missing from the map only conflict
	// with themselves.
	Related map[string][]string

	// Constraints applied to every candidate slot
	Constraints []Constraint

	sectionsByID  map[string]*SectionState
	sectionsByApp map[string][]*SectionState
	options       map[string]optionRef
}

type optionRef struct {
	section *SectionState
	index   int
}

// SectionState is one section with its availability, options and allocations
type SectionState struct {
	Section model.ApplicationSection

	// Order is the section's position in creation order, used as the final tie-break
	Order int

	SuitableRanges []model.SuitableTimeRange

	// Options sorted by preferred order
	Options []model.ReservationUnitOption

	// Allocations owned by this section
	Allocations []model.AllocatedTimeSlot

	merged map[model.Weekday][]model.TimeRange
}

// Candidate is a proposed weekly slot for the section owning OptionID
type Candidate struct {
	OptionID     string
	DayOfTheWeek model.Weekday
	BeginTime    model.TimeOfDay
	EndTime      model.TimeOfDay
}

func (c Candidate) Range() model.TimeRange {
	return model.TimeRange{Begin: c.BeginTime, End: c.EndTime}
}

// Placement is a candidate resolved against the state
type Placement struct {
	Section   *SectionState
	Option    *model.ReservationUnitOption
	Candidate Candidate
}

// Section returns the section with the given ID
func (st *AllocationState) Section(id string) (*SectionState, bool) {
	s, ok := st.sectionsByID[id]
	return s, ok
}

// Option returns the option with the given ID and the section owning it
func (st *AllocationState) Option(id string) (*model.ReservationUnitOption, *SectionState, bool) {
	ref, ok := st.options[id]
	if !ok {
		return nil, nil, false
	}
	return &ref.section.Options[ref.index], ref.section, true
}

// RelatedUnits returns the units conflicting with unitID
func (st *AllocationState) RelatedUnits(unitID string) []string {
	if related, ok := st.Related[unitID]; ok && len(related) > 0 {
		return related
	}
	return []string{unitID}
}

// UnitOf returns the reservation unit of a slot
func (st *AllocationState) UnitOf(slot model.AllocatedTimeSlot) string {
	option, _, ok := st.Option(slot.OptionID)
	if !ok {
		return ""
	}
	return option.ReservationUnitID
}

// Slots returns every allocated slot in section order
func (st *AllocationState) Slots() []model.AllocatedTimeSlot {
	slots := make([]model.AllocatedTimeSlot, 0)
	for _, section := range st.Sections {
		slots = append(slots, section.Allocations...)
	}
	return slots
}

// SectionStatus derives the section's current status from the state
func (st *AllocationState) SectionStatus(section *SectionState) model.SectionStatus {
	return status.Section(status.SectionInput{
		RoundStatus:                st.RoundStatus,
		AppliedReservationsPerWeek: section.Section.AppliedReservationsPerWeek,
		AllocationsCount:           len(section.Allocations),
		UsableOptionCount:          section.UsableOptionCount(),
	})
}

// ApplicationStatus derives the application's current status from the state
func (st *AllocationState) ApplicationStatus(applicationID string) model.ApplicationStatus {
	hasUnallocated := false
	for _, section := range st.sectionsByApp[applicationID] {
		if st.SectionStatus(section).IsInAllocationPhase() {
			hasUnallocated = true
			break
		}
	}
	return status.Application(st.Applications[applicationID], st.RoundStatus, hasUnallocated)
}

// CanAllocate reports whether the section and its application currently accept allocations
func (st *AllocationState) CanAllocate(section *SectionState) bool {
	return st.RoundStatus.AllowsAllocation() &&
		st.SectionStatus(section).CanAllocate() &&
		st.ApplicationStatus(section.Section.ApplicationID).CanAllocate()
}

// MergedRanges returns the merged suitable ranges of the section on day
func (s *SectionState) MergedRanges(day model.Weekday) []model.TimeRange {
	if s.merged == nil {
		s.merged = timeslot.MergeByWeekday(s.SuitableRanges)
	}
	return s.merged[day]
}

// HasAllocationOn reports whether the section already owns a slot on day
func (s *SectionState) HasAllocationOn(day model.Weekday) bool {
	return slices.ContainsFunc(s.Allocations, func(slot model.AllocatedTimeSlot) bool {
		return slot.DayOfTheWeek == day
	})
}

// IsSuitableDay reports whether any suitable range falls on day
func (s *SectionState) IsSuitableDay(day model.Weekday) bool {
	return slices.ContainsFunc(s.SuitableRanges, func(r model.SuitableTimeRange) bool {
		return r.DayOfTheWeek == day
	})
}

// RemainingQuota returns how many more slots the section may receive
func (s *SectionState) RemainingQuota() int {
	return max(s.Section.AppliedReservationsPerWeek-len(s.Allocations), 0)
}

// UsableOptionCount counts options that are neither rejected nor locked
func (s *SectionState) UsableOptionCount() int {
	count := 0
	for _, option := range s.Options {
		if option.IsUsable() {
			count++
		}
	}
	return count
}

// UnfulfilledDays returns the suitable days without an allocation, best
// priority first and then in weekday order
func (s *SectionState) UnfulfilledDays() []model.Weekday {
	best := make(map[model.Weekday]model.Priority)
	for _, r := range s.SuitableRanges {
		if s.HasAllocationOn(r.DayOfTheWeek) {
			continue
		}
		best[r.DayOfTheWeek] = max(best[r.DayOfTheWeek], r.Priority)
	}

	days := make([]model.Weekday, 0, len(best))
	for day := range best {
		days = append(days, day)
	}
	slices.SortFunc(days, func(a, b model.Weekday) int {
		if c := cmp.Compare(best[b], best[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return days
}

// BestRemainingPriority is the highest priority among unfulfilled suitable
// days, or 0 when every suitable day already has a slot
func (s *SectionState) BestRemainingPriority() model.Priority {
	var best model.Priority
	for _, r := range s.SuitableRanges {
		if !s.HasAllocationOn(r.DayOfTheWeek) {
			best = max(best, r.Priority)
		}
	}
	return best
}
