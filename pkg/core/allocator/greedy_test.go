package allocator

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

func slotSummary(slot model.AllocatedTimeSlot) string {
	return fmt.Sprintf("%s %s %s-%s", slot.SectionID, slot.DayOfTheWeek, slot.BeginTime, slot.EndTime)
}

func summaries(slots []model.AllocatedTimeSlot) []string {
	result := make([]string, len(slots))
	for i, slot := range slots {
		result[i] = slotSummary(slot)
	}
	return result
}

func TestAllocate_LongestSlotOnBestDaysFirst(t *testing.T) {
	state := twoSlotSectionState(t)

	outcome, err := Allocate(AllocationConfig{State: state})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Empty(t, outcome.ValidationErrors)
	assert.Empty(t, outcome.UnsatisfiedSections)
	assert.Equal(t, []string{
		"section-1 MONDAY 10:00-12:00",
		"section-1 WEDNESDAY 10:00-12:00",
	}, summaries(outcome.NewSlots))

	section, _ := state.Section("section-1")
	assert.Equal(t, model.SectionHandled, state.SectionStatus(section))
}

func TestAllocate_PriorityBeatsCreationOrder(t *testing.T) {
	state := newStateBuilder().
		application("app-1").
		application("app-2").
		section("early", "app-1", 1, 2*time.Hour, 2*time.Hour).
		suitable("early", model.PrioritySecondary, model.Monday, 10, 12).
		option("option-early", "early", "hall", 1).
		section("late", "app-2", 1, 2*time.Hour, 2*time.Hour).
		suitable("late", model.PriorityPrimary, model.Monday, 10, 12).
		option("option-late", "late", "hall", 1).
		build(t)

	outcome, err := Allocate(AllocationConfig{State: state})
	require.NoError(t, err)

	assert.Equal(t, []string{"late MONDAY 10:00-12:00"}, summaries(outcome.NewSlots))
	require.Len(t, outcome.UnsatisfiedSections, 1)
	assert.Equal(t, "early", outcome.UnsatisfiedSections[0].Section.ID)
}

func TestAllocate_CreationOrderBreaksTies(t *testing.T) {
	state := newStateBuilder().
		application("app-1").
		application("app-2").
		section("first", "app-1", 1, 2*time.Hour, 2*time.Hour).
		suitable("first", model.PriorityPrimary, model.Monday, 10, 12).
		option("option-first", "first", "hall", 1).
		section("second", "app-2", 1, 2*time.Hour, 2*time.Hour).
		suitable("second", model.PriorityPrimary, model.Monday, 10, 12).
		suitable("second", model.PrioritySecondary, model.Tuesday, 10, 12).
		option("option-second", "second", "hall", 1).
		build(t)

	outcome, err := Allocate(AllocationConfig{State: state})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"first MONDAY 10:00-12:00",
		"second TUESDAY 10:00-12:00",
	}, summaries(outcome.NewSlots))
	assert.Empty(t, outcome.UnsatisfiedSections)
}

func TestAllocate_LeastServedGoesFirst(t *testing.T) {
	state := newStateBuilder().
		application("app-1").
		application("app-2").
		section("greedy", "app-1", 2, 2*time.Hour, 2*time.Hour).
		suitable("greedy", model.PriorityPrimary, model.Monday, 10, 12).
		suitable("greedy", model.PriorityPrimary, model.Tuesday, 10, 12).
		option("option-greedy", "greedy", "hall", 1).
		section("modest", "app-2", 1, 2*time.Hour, 2*time.Hour).
		suitable("modest", model.PriorityPrimary, model.Tuesday, 10, 12).
		option("option-modest", "modest", "hall", 1).
		build(t)

	outcome, err := Allocate(AllocationConfig{State: state})
	require.NoError(t, err)

	// "greedy" ranks first on remaining quota, then yields to the section
	// with no allocations yet
	assert.Equal(t, []string{
		"greedy MONDAY 10:00-12:00",
		"modest TUESDAY 10:00-12:00",
	}, summaries(outcome.NewSlots))
	require.Len(t, outcome.UnsatisfiedSections, 1)
	assert.Equal(t, "greedy", outcome.UnsatisfiedSections[0].Section.ID)
	assert.Equal(t, 1, outcome.UnsatisfiedSections[0].RemainingQuota())
}

func TestAllocate_SkipsUnusableOptions(t *testing.T) {
	b := newStateBuilder().
		application("app-1").
		section("section-1", "app-1", 1, time.Hour, 2*time.Hour).
		suitable("section-1", model.PriorityPrimary, model.Monday, 10, 14).
		option("option-rejected", "section-1", "hall", 1).
		option("option-gym", "section-1", "gym", 2)
	b.input.Options[0].Rejected = true
	state := b.build(t)

	outcome, err := Allocate(AllocationConfig{State: state})
	require.NoError(t, err)

	require.Len(t, outcome.NewSlots, 1)
	assert.Equal(t, "option-gym", outcome.NewSlots[0].OptionID)
}

func TestAllocate_ShortensSlotAroundExistingAllocations(t *testing.T) {
	state := newStateBuilder().
		application("app-1").
		application("app-2").
		section("existing", "app-1", 1, time.Hour, 2*time.Hour).
		option("option-existing", "existing", "hall", 1).
		slot("slot-1", "option-existing", model.Monday, 10, 12).
		section("section-1", "app-2", 1, time.Hour, 3*time.Hour).
		suitable("section-1", model.PriorityPrimary, model.Monday, 9, 14).
		option("option-1", "section-1", "hall", 1).
		build(t)

	outcome, err := Allocate(AllocationConfig{State: state})
	require.NoError(t, err)

	// 12:00-14:00 is the longest free window inside 09:00-14:00
	assert.Equal(t, []string{"section-1 MONDAY 12:00-14:00"}, summaries(outcome.NewSlots))
	assert.True(t, outcome.Success)
}

func TestAllocate_RespectsSectionFilter(t *testing.T) {
	state := newStateBuilder().
		application("app-1").
		section("section-1", "app-1", 1, time.Hour, 2*time.Hour).
		suitable("section-1", model.PriorityPrimary, model.Monday, 10, 14).
		option("option-1", "section-1", "hall", 1).
		section("section-2", "app-1", 1, time.Hour, 2*time.Hour).
		suitable("section-2", model.PriorityPrimary, model.Tuesday, 10, 14).
		option("option-2", "section-2", "hall", 1).
		build(t)

	outcome, err := Allocate(AllocationConfig{State: state, SectionIDs: []string{"section-2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"section-2 TUESDAY 10:00-12:00"}, summaries(outcome.NewSlots))
}

func TestRankSections(t *testing.T) {
	primary := &SectionState{
		Order:          3,
		Section:        model.ApplicationSection{ID: "primary", AppliedReservationsPerWeek: 1},
		SuitableRanges: []model.SuitableTimeRange{{Priority: model.PriorityPrimary, DayOfTheWeek: model.Monday}},
	}
	served := &SectionState{
		Order:          0,
		Section:        model.ApplicationSection{ID: "served", AppliedReservationsPerWeek: 3},
		SuitableRanges: []model.SuitableTimeRange{{Priority: model.PrioritySecondary, DayOfTheWeek: model.Tuesday}},
		Allocations:    []model.AllocatedTimeSlot{{DayOfTheWeek: model.Monday}},
	}
	bigQuota := &SectionState{
		Order:          2,
		Section:        model.ApplicationSection{ID: "big-quota", AppliedReservationsPerWeek: 3},
		SuitableRanges: []model.SuitableTimeRange{{Priority: model.PrioritySecondary, DayOfTheWeek: model.Tuesday}},
	}
	smallQuota := &SectionState{
		Order:          1,
		Section:        model.ApplicationSection{ID: "small-quota", AppliedReservationsPerWeek: 1},
		SuitableRanges: []model.SuitableTimeRange{{Priority: model.PrioritySecondary, DayOfTheWeek: model.Tuesday}},
	}

	sections := []*SectionState{served, smallQuota, bigQuota, primary}
	RankSections(sections)

	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.Section.ID
	}
	assert.Equal(t, []string{"primary", "big-quota", "small-quota", "served"}, ids)
}

// randomRound builds a round with overlapping demand on a small unit hierarchy
func randomRound(t *testing.T, rng *rand.Rand) *AllocationState {
	units := []string{"hall", "court-a", "court-b", "gym"}
	b := newStateBuilder().
		related("hall", "court-a", "court-b").
		related("court-a", "hall").
		related("court-b", "hall").
		related("gym")

	sectionCount := 1 + rng.Intn(8)
	for i := 0; i < sectionCount; i++ {
		appID := fmt.Sprintf("app-%d", i)
		sectionID := fmt.Sprintf("section-%d", i)
		minHours := 1 + rng.Intn(2)
		maxHours := minHours + rng.Intn(3)

		b.application(appID).
			section(sectionID, appID, 1+rng.Intn(4), time.Duration(minHours)*time.Hour, time.Duration(maxHours)*time.Hour)

		for r := 0; r < 1+rng.Intn(5); r++ {
			begin := 6 + rng.Intn(12)
			end := min(begin+1+rng.Intn(6), 24)
			priority := model.PrioritySecondary
			if rng.Intn(2) == 0 {
				priority = model.PriorityPrimary
			}
			b.suitable(sectionID, priority, model.Weekday(rng.Intn(3)), begin, end)
		}

		for o, unit := range rng.Perm(len(units))[:1+rng.Intn(2)] {
			b.option(fmt.Sprintf("%s-option-%d", sectionID, o), sectionID, units[unit], o+1)
		}
	}

	return b.build(t)
}

func TestAllocate_InvariantsHoldForRandomRounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for iteration := 0; iteration < 200; iteration++ {
		state := randomRound(t, rng)

		outcome, err := Allocate(AllocationConfig{State: state})
		require.NoError(t, err)
		require.Empty(t, outcome.ValidationErrors, "iteration %d", iteration)

		slots := state.Slots()

		// No double allocation
		for i, a := range slots {
			for _, b := range slots[i+1:] {
				if a.DayOfTheWeek != b.DayOfTheWeek || !a.Range().Overlaps(b.Range()) {
					continue
				}
				related := state.RelatedUnits(state.UnitOf(a))
				require.False(t, slices.Contains(related, state.UnitOf(b)),
					"iteration %d: %s overlaps %s", iteration, slotSummary(a), slotSummary(b))
			}
		}

		for _, section := range state.Sections {
			// Quota respected
			require.LessOrEqual(t, len(section.Allocations), section.Section.AppliedReservationsPerWeek)

			// One per day
			days := make(map[model.Weekday]bool)
			for _, slot := range section.Allocations {
				require.False(t, days[slot.DayOfTheWeek], "iteration %d: two slots on %s", iteration, slot.DayOfTheWeek)
				days[slot.DayOfTheWeek] = true

				// Greedy slots always satisfy the soft constraints too
				require.True(t, section.IsSuitableDay(slot.DayOfTheWeek))
				duration := slot.Range().Duration()
				require.GreaterOrEqual(t, duration, section.Section.ReservationMinDuration)
				require.LessOrEqual(t, duration, section.Section.ReservationMaxDuration)
			}
		}
	}
}
