package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func testRound() model.ApplicationRound {
	return model.ApplicationRound{
		ID:                     "round-1",
		ApplicationPeriodBegin: date(2024, 1, 1),
		ApplicationPeriodEnd:   date(2024, 2, 1),
		ReservationPeriodBegin: date(2024, 9, 1),
		ReservationPeriodEnd:   date(2025, 5, 31),
	}
}

func TestRound(t *testing.T) {
	round := testRound()

	assert.Equal(t, model.RoundUpcoming, Round(round, date(2023, 12, 31)))
	assert.Equal(t, model.RoundOpen, Round(round, date(2024, 1, 1)))
	assert.Equal(t, model.RoundOpen, Round(round, date(2024, 1, 31)))
	assert.Equal(t, model.RoundInAllocation, Round(round, date(2024, 2, 1)))

	round.HandledDate = ptr(date(2024, 3, 1))
	assert.Equal(t, model.RoundHandled, Round(round, date(2024, 3, 2)))

	round.SentDate = ptr(date(2024, 3, 5))
	assert.Equal(t, model.RoundResultsSent, Round(round, date(2024, 3, 6)))

	// Flags win over dates
	assert.Equal(t, model.RoundResultsSent, Round(round, date(2023, 1, 1)))
}

func TestApplication(t *testing.T) {
	sent := model.Application{SentDate: ptr(date(2024, 1, 10))}
	unsent := model.Application{}

	tests := []struct {
		name           string
		app            model.Application
		round          model.RoundStatus
		hasUnallocated bool
		want           model.ApplicationStatus
	}{
		{"cancelled wins", model.Application{CancelledDate: ptr(date(2024, 1, 5)), SentDate: ptr(date(2024, 1, 2))}, model.RoundInAllocation, true, model.ApplicationCancelled},
		{"unsent while open is draft", unsent, model.RoundOpen, false, model.ApplicationDraft},
		{"unsent while upcoming is draft", unsent, model.RoundUpcoming, false, model.ApplicationDraft},
		{"unsent during allocation is draft", unsent, model.RoundInAllocation, true, model.ApplicationDraft},
		{"unsent after handling is expired", unsent, model.RoundHandled, false, model.ApplicationExpired},
		{"unsent after results are sent is expired", unsent, model.RoundResultsSent, false, model.ApplicationExpired},
		{"results sent", sent, model.RoundResultsSent, true, model.ApplicationResultsSent},
		{"handled round", sent, model.RoundHandled, true, model.ApplicationHandled},
		{"received while open", sent, model.RoundOpen, true, model.ApplicationReceived},
		{"in allocation with unallocated section", sent, model.RoundInAllocation, true, model.ApplicationInAllocation},
		{"handled when every section is done", sent, model.RoundInAllocation, false, model.ApplicationHandled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Application(tt.app, tt.round, tt.hasUnallocated))
		})
	}
}

func TestSection(t *testing.T) {
	base := SectionInput{
		RoundStatus:                model.RoundInAllocation,
		AppliedReservationsPerWeek: 2,
		AllocationsCount:           1,
		UsableOptionCount:          1,
	}

	tests := []struct {
		name   string
		modify func(in *SectionInput)
		want   model.SectionStatus
	}{
		{"in allocation", func(in *SectionInput) {}, model.SectionInAllocation},
		{"application period running", func(in *SectionInput) { in.RoundStatus = model.RoundOpen }, model.SectionUnallocated},
		{"quota met", func(in *SectionInput) { in.AllocationsCount = 2 }, model.SectionHandled},
		{"no usable options", func(in *SectionInput) { in.UsableOptionCount = 0 }, model.SectionHandled},
		{"round handled", func(in *SectionInput) { in.RoundStatus = model.RoundHandled }, model.SectionHandled},
		{"reserved after materialisation", func(in *SectionInput) {
			in.RoundStatus = model.RoundHandled
			in.SeriesCount = 1
			in.ConfirmedOccurrences = 3
			in.DeniedOccurrences = 1
		}, model.SectionReserved},
		{"failed when every occurrence denied", func(in *SectionInput) {
			in.RoundStatus = model.RoundResultsSent
			in.SeriesCount = 1
			in.DeniedOccurrences = 4
		}, model.SectionFailed},
		{"series ignored before handling", func(in *SectionInput) {
			in.SeriesCount = 1
			in.ConfirmedOccurrences = 1
		}, model.SectionInAllocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.modify(&in)
			assert.Equal(t, tt.want, Section(in))
		})
	}
}

func TestTimeRangeFulfilled(t *testing.T) {
	assert.False(t, TimeRangeFulfilled(model.SectionInAllocation, false))
	assert.True(t, TimeRangeFulfilled(model.SectionInAllocation, true))
	assert.False(t, TimeRangeFulfilled(model.SectionUnallocated, false))
	assert.True(t, TimeRangeFulfilled(model.SectionHandled, false))
	assert.True(t, TimeRangeFulfilled(model.SectionReserved, false))
}
