package allocator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// stateBuilder assembles StateInput fixtures
type stateBuilder struct {
	input    StateInput
	sequence int
}

func newStateBuilder() *stateBuilder {
	return &stateBuilder{
		input: StateInput{
			RoundID:     "round-1",
			RoundStatus: model.RoundInAllocation,
			Related:     map[string][]string{},
		},
	}
}

func (b *stateBuilder) next() int {
	b.sequence++
	return b.sequence
}

func (b *stateBuilder) application(id string) *stateBuilder {
	sent := baseTime
	b.input.Applications = append(b.input.Applications, model.Application{
		ID:            id,
		RoundID:       b.input.RoundID,
		ApplicantName: "Applicant " + id,
		SentDate:      &sent,
		CreatedAt:     baseTime,
	})
	return b
}

func (b *stateBuilder) section(id, applicationID string, perWeek int, minDuration, maxDuration time.Duration) *stateBuilder {
	b.input.Sections = append(b.input.Sections, model.ApplicationSection{
		ID:                         id,
		ApplicationID:              applicationID,
		Name:                       "Section " + id,
		NumPersons:                 10,
		ReservationMinDuration:     minDuration,
		ReservationMaxDuration:     maxDuration,
		AppliedReservationsPerWeek: perWeek,
		ReservationsBeginDate:      time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		ReservationsEndDate:        time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:                  baseTime.Add(time.Duration(b.next()) * time.Minute),
	})
	return b
}

func (b *stateBuilder) suitable(sectionID string, priority model.Priority, day model.Weekday, beginHour, endHour int) *stateBuilder {
	b.input.SuitableRanges = append(b.input.SuitableRanges, model.SuitableTimeRange{
		ID:           fmt.Sprintf("range-%d", b.next()),
		SectionID:    sectionID,
		Priority:     priority,
		DayOfTheWeek: day,
		BeginTime:    model.NewTimeOfDay(beginHour, 0),
		EndTime:      model.NewTimeOfDay(endHour, 0),
	})
	return b
}

func (b *stateBuilder) option(id, sectionID, unitID string, preferredOrder int) *stateBuilder {
	b.input.Options = append(b.input.Options, model.ReservationUnitOption{
		ID:                id,
		SectionID:         sectionID,
		ReservationUnitID: unitID,
		PreferredOrder:    preferredOrder,
	})
	return b
}

func (b *stateBuilder) slot(id, optionID string, day model.Weekday, beginHour, endHour int) *stateBuilder {
	b.input.Slots = append(b.input.Slots, model.AllocatedTimeSlot{
		ID:           id,
		OptionID:     optionID,
		DayOfTheWeek: day,
		BeginTime:    model.NewTimeOfDay(beginHour, 0),
		EndTime:      model.NewTimeOfDay(endHour, 0),
	})
	return b
}

func (b *stateBuilder) related(unitID string, related ...string) *stateBuilder {
	b.input.Related[unitID] = append([]string{unitID}, related...)
	return b
}

func (b *stateBuilder) build(t *testing.T) *AllocationState {
	t.Helper()
	state, err := InitState(b.input)
	require.NoError(t, err)
	return state
}

func candidate(optionID string, day model.Weekday, beginHour, endHour int) Candidate {
	return Candidate{
		OptionID:     optionID,
		DayOfTheWeek: day,
		BeginTime:    model.NewTimeOfDay(beginHour, 0),
		EndTime:      model.NewTimeOfDay(endHour, 0),
	}
}

func codes(violations []model.Violation) []string {
	result := make([]string, len(violations))
	for i, v := range violations {
		result[i] = v.Code
	}
	return result
}

func requireValidationError(t *testing.T, err error) *model.ValidationError {
	t.Helper()
	require.Error(t, err)
	verr, ok := err.(*model.ValidationError)
	require.True(t, ok, "expected *model.ValidationError, got %T", err)
	return verr
}
