package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// mockStore is an in-memory store for a single round
type mockStore struct {
	mu       sync.Mutex
	snapshot db.RoundSnapshot

	insertErr error
	inserted  []model.AllocatedTimeSlot
}

func (m *mockStore) GetRoundSnapshot(_ context.Context, roundID string) (*db.RoundSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if roundID != m.snapshot.Round.ID {
		return nil, fmt.Errorf("round %s: %w", roundID, db.ErrNotFound)
	}
	s := m.snapshot
	s.Applications = slices.Clone(s.Applications)
	s.Sections = slices.Clone(s.Sections)
	s.SuitableRanges = slices.Clone(s.SuitableRanges)
	s.Options = slices.Clone(s.Options)
	s.Slots = slices.Clone(s.Slots)
	s.Series = slices.Clone(s.Series)
	return &s, nil
}

func (m *mockStore) GetRoundIDByApplication(_ context.Context, applicationID string) (string, error) {
	for _, a := range m.snapshot.Applications {
		if a.ID == applicationID {
			return m.snapshot.Round.ID, nil
		}
	}
	return "", db.ErrNotFound
}

func (m *mockStore) GetRoundIDBySection(_ context.Context, sectionID string) (string, error) {
	if _, ok := findSection(&m.snapshot, sectionID); ok {
		return m.snapshot.Round.ID, nil
	}
	return "", db.ErrNotFound
}

func (m *mockStore) GetRoundIDByOption(_ context.Context, optionID string) (string, error) {
	if _, ok := findOption(&m.snapshot, optionID); ok {
		return m.snapshot.Round.ID, nil
	}
	return "", db.ErrNotFound
}

func (m *mockStore) GetRoundIDBySlot(_ context.Context, slotID string) (string, error) {
	if _, ok := findSlot(&m.snapshot, slotID); ok {
		return m.snapshot.Round.ID, nil
	}
	return "", db.ErrNotFound
}

func (m *mockStore) InsertAllocatedTimeSlots(_ context.Context, slots []model.AllocatedTimeSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return m.insertErr
	}
	for _, slot := range slots {
		for _, existing := range m.snapshot.Slots {
			if existing.SectionID == slot.SectionID && existing.DayOfTheWeek == slot.DayOfTheWeek {
				return fmt.Errorf("duplicate slot for section %s on %s", slot.SectionID, slot.DayOfTheWeek)
			}
		}
		m.snapshot.Slots = append(m.snapshot.Slots, slot)
	}
	m.inserted = append(m.inserted, slots...)
	return nil
}

func (m *mockStore) DeleteAllocatedTimeSlot(_ context.Context, slotID string) error {
	before := len(m.snapshot.Slots)
	m.snapshot.Slots = slices.DeleteFunc(m.snapshot.Slots, func(s model.AllocatedTimeSlot) bool { return s.ID == slotID })
	if len(m.snapshot.Slots) == before {
		return db.ErrNotFound
	}
	return nil
}

func (m *mockStore) updateOptions(match func(o model.ReservationUnitOption) bool, update func(o *model.ReservationUnitOption)) int {
	n := 0
	for i := range m.snapshot.Options {
		if match(m.snapshot.Options[i]) {
			update(&m.snapshot.Options[i])
			n++
		}
	}
	return n
}

func (m *mockStore) SetOptionRejected(_ context.Context, optionID string, rejected bool) error {
	m.updateOptions(func(o model.ReservationUnitOption) bool { return o.ID == optionID },
		func(o *model.ReservationUnitOption) { o.Rejected = rejected })
	return nil
}

func (m *mockStore) SetOptionLocked(_ context.Context, optionID string, locked bool) error {
	m.updateOptions(func(o model.ReservationUnitOption) bool { return o.ID == optionID },
		func(o *model.ReservationUnitOption) { o.Locked = locked })
	return nil
}

func (m *mockStore) SetSectionOptionsRejected(_ context.Context, sectionID string, rejected bool) (int, error) {
	return m.updateOptions(func(o model.ReservationUnitOption) bool { return o.SectionID == sectionID },
		func(o *model.ReservationUnitOption) { o.Rejected = rejected }), nil
}

func (m *mockStore) resetSections(sections map[string]bool) *db.ResetResult {
	before := len(m.snapshot.Slots)
	m.snapshot.Slots = slices.DeleteFunc(m.snapshot.Slots, func(s model.AllocatedTimeSlot) bool { return sections[s.SectionID] })
	reset := m.updateOptions(
		func(o model.ReservationUnitOption) bool { return sections[o.SectionID] && (o.Rejected || o.Locked) },
		func(o *model.ReservationUnitOption) { o.Rejected, o.Locked = false, false })
	return &db.ResetResult{DeletedSlots: before - len(m.snapshot.Slots), ResetOptions: reset}
}

func (m *mockStore) ResetRoundAllocations(_ context.Context, _ string) (*db.ResetResult, error) {
	sections := make(map[string]bool)
	for _, s := range m.snapshot.Sections {
		sections[s.ID] = true
	}
	return m.resetSections(sections), nil
}

func (m *mockStore) ResetApplicationAllocations(_ context.Context, applicationID string) (*db.ResetResult, error) {
	sections := make(map[string]bool)
	for _, s := range m.snapshot.Sections {
		if s.ApplicationID == applicationID {
			sections[s.ID] = true
		}
	}
	return m.resetSections(sections), nil
}

func (m *mockStore) SetRoundHandledDate(_ context.Context, _ string, handled time.Time) error {
	m.snapshot.Round.HandledDate = &handled
	return nil
}

func (m *mockStore) SetRoundSentDate(_ context.Context, _ string, sent time.Time) error {
	m.snapshot.Round.SentDate = &sent
	return nil
}

// recordingLocker records the keys of every acquisition
type recordingLocker struct {
	mu       sync.Mutex
	acquired [][]string
	released int
}

func (l *recordingLocker) Acquire(_ context.Context, keys ...string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired = append(l.acquired, slices.Clone(keys))
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
	}, nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// testClock is inside the allocation phase of testRound
func testClock() *clock.FixedClock {
	return clock.Fixed(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func testTree(t *testing.T) *hierarchy.Tree {
	t.Helper()
	tree, err := hierarchy.NewTree(map[string]string{
		"court-a": "hall",
		"court-b": "hall",
	})
	require.NoError(t, err)
	return tree
}

func hours(h int) model.TimeOfDay {
	return model.NewTimeOfDay(h, 0)
}

// newTestStore builds a round in allocation with two applications:
//
//	app-1/section-1: 2 per week, Monday PRIMARY and Wednesday SECONDARY
//	                 10-14, options court-a then gym
//	app-2/section-2: 1 per week, Monday PRIMARY 10-14, option hall
func newTestStore() *mockStore {
	sent := date(2024, 1, 15)
	return &mockStore{snapshot: db.RoundSnapshot{
		Round: model.ApplicationRound{
			ID:                     "round-1",
			Name:                   "Autumn 2024",
			ApplicationPeriodBegin: date(2024, 1, 1),
			ApplicationPeriodEnd:   date(2024, 2, 1),
			ReservationPeriodBegin: date(2024, 9, 1),
			ReservationPeriodEnd:   date(2024, 12, 31),
		},
		Applications: []model.Application{
			{ID: "app-1", RoundID: "round-1", ApplicantName: "Helsinki Hoops", SentDate: &sent, CreatedAt: date(2024, 1, 10)},
			{ID: "app-2", RoundID: "round-1", ApplicantName: "Floorball Club", SentDate: &sent, CreatedAt: date(2024, 1, 11)},
		},
		Sections: []model.ApplicationSection{
			{
				ID: "section-1", ApplicationID: "app-1", Name: "Junior basketball", NumPersons: 12,
				ReservationMinDuration: time.Hour, ReservationMaxDuration: 2 * time.Hour,
				AppliedReservationsPerWeek: 2,
				ReservationsBeginDate:      date(2024, 9, 2), ReservationsEndDate: date(2024, 9, 22),
				CreatedAt: date(2024, 1, 10),
			},
			{
				ID: "section-2", ApplicationID: "app-2", Name: "Floorball", NumPersons: 20,
				ReservationMinDuration: time.Hour, ReservationMaxDuration: 2 * time.Hour,
				AppliedReservationsPerWeek: 1,
				ReservationsBeginDate:      date(2024, 9, 2), ReservationsEndDate: date(2024, 9, 22),
				CreatedAt: date(2024, 1, 11),
			},
		},
		SuitableRanges: []model.SuitableTimeRange{
			{ID: "range-1", SectionID: "section-1", Priority: model.PriorityPrimary, DayOfTheWeek: model.Monday, BeginTime: hours(10), EndTime: hours(14)},
			{ID: "range-2", SectionID: "section-1", Priority: model.PrioritySecondary, DayOfTheWeek: model.Wednesday, BeginTime: hours(10), EndTime: hours(14)},
			{ID: "range-3", SectionID: "section-2", Priority: model.PriorityPrimary, DayOfTheWeek: model.Monday, BeginTime: hours(10), EndTime: hours(14)},
		},
		Options: []model.ReservationUnitOption{
			{ID: "option-1", SectionID: "section-1", ReservationUnitID: "court-a", PreferredOrder: 0},
			{ID: "option-2", SectionID: "section-1", ReservationUnitID: "gym", PreferredOrder: 1},
			{ID: "option-3", SectionID: "section-2", ReservationUnitID: "hall", PreferredOrder: 0},
		},
	}}
}

func slotsOf(slots []model.AllocatedTimeSlot, sectionID string) []model.AllocatedTimeSlot {
	var out []model.AllocatedTimeSlot
	for _, s := range slots {
		if s.SectionID == sectionID {
			out = append(out, s)
		}
	}
	return out
}
