package recurrence

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/openinghours"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

type memorySeriesStore struct {
	mu           sync.Mutex
	series       map[string]model.RecurringReservation
	reservations map[string][]model.Reservation
	existing     []model.Reservation
	overlapErr   error
	createCalls  int
}

func newMemorySeriesStore() *memorySeriesStore {
	return &memorySeriesStore{
		series:       make(map[string]model.RecurringReservation),
		reservations: make(map[string][]model.Reservation),
	}
}

func (s *memorySeriesStore) GetSeriesBySlot(_ context.Context, slotID string) (*model.RecurringReservation, []model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.series[slotID]
	if !ok {
		return nil, nil, db.ErrNotFound
	}
	return &series, slices.Clone(s.reservations[slotID]), nil
}

func (s *memorySeriesStore) HasConfirmedOverlap(_ context.Context, unitIDs []string, begin, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overlapErr != nil {
		return false, s.overlapErr
	}

	all := slices.Clone(s.existing)
	for _, rs := range s.reservations {
		all = append(all, rs...)
	}
	for _, r := range all {
		if r.State == model.ReservationConfirmed &&
			slices.Contains(unitIDs, r.ReservationUnitID) &&
			r.Begin.Before(end) && begin.Before(r.End) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memorySeriesStore) CreateSeries(_ context.Context, series model.RecurringReservation, reservations []model.Reservation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createCalls++
	if _, ok := s.series[series.AllocatedTimeSlotID]; ok {
		return false, nil
	}
	s.series[series.AllocatedTimeSlotID] = series
	s.reservations[series.AllocatedTimeSlotID] = slices.Clone(reservations)
	return true, nil
}

// closedDates is an oracle that is open except on the listed local dates
type closedDates struct {
	closed []string
	err    error
}

func (o closedDates) IsOpen(_ context.Context, _ string, begin, _ time.Time) (bool, error) {
	if o.err != nil {
		return false, o.err
	}
	return !slices.Contains(o.closed, begin.Format(time.DateOnly)), nil
}

type failingResolver struct{}

func (failingResolver) Related(context.Context, string) ([]string, error) {
	return nil, errors.New("hierarchy unavailable")
}

func (failingResolver) Root(context.Context, string) (string, error) {
	return "", errors.New("hierarchy unavailable")
}

func mondaySlotInput() SlotInput {
	return SlotInput{
		Slot: model.AllocatedTimeSlot{
			ID:           "slot-1",
			OptionID:     "option-1",
			SectionID:    "section-1",
			DayOfTheWeek: model.Monday,
			BeginTime:    model.NewTimeOfDay(12, 0),
			EndTime:      model.NewTimeOfDay(14, 0),
		},
		Option: model.ReservationUnitOption{ID: "option-1", SectionID: "section-1", ReservationUnitID: "court-a"},
		Section: model.ApplicationSection{
			ID:                    "section-1",
			ApplicationID:         "app-1",
			Name:                  "Junior basketball",
			NumPersons:            12,
			ReservationsBeginDate: date(2024, 9, 2),
			ReservationsEndDate:   date(2024, 9, 22),
		},
		Application: model.Application{
			ID:             "app-1",
			Organisation:   &model.Organisation{Name: "Helsinki Hoops", IdentifierNumber: "1234567-8"},
			ContactPerson:  &model.Person{FirstName: "Aino", LastName: "Virtanen", Email: "aino@example.com", Phone: "+358401234567"},
			BillingAddress: &model.Address{StreetAddress: "Mannerheimintie 1", PostCode: "00100", City: "Helsinki"},
		},
	}
}

func newTestMaterializer(t *testing.T, store db.SeriesStore, resolver hierarchy.Resolver, oracle openinghours.Oracle) *Materializer {
	t.Helper()
	loc := helsinki(t)
	return NewMaterializer(store, resolver, lock.NewLocal(), oracle, clock.Fixed(time.Date(2024, 8, 15, 9, 0, 0, 0, loc)), zap.NewNop())
}

func testTree(t *testing.T) *hierarchy.Tree {
	t.Helper()
	tree, err := hierarchy.NewTree(map[string]string{"court-a": "hall", "court-b": "hall"})
	require.NoError(t, err)
	return tree
}

func statesOf(reservations []model.Reservation) []model.ReservationState {
	states := make([]model.ReservationState, len(reservations))
	for i, r := range reservations {
		states[i] = r.State
	}
	return states
}

func TestMaterializeSlot_ClosedWeekIsDenied(t *testing.T) {
	store := newMemorySeriesStore()
	m := newTestMaterializer(t, store, testTree(t), closedDates{closed: []string{"2024-09-09"}})

	result, err := m.MaterializeSlot(context.Background(), mondaySlotInput())
	require.NoError(t, err)

	require.Len(t, result.Reservations, 3)
	assert.Equal(t,
		[]model.ReservationState{model.ReservationConfirmed, model.ReservationDenied, model.ReservationConfirmed},
		statesOf(result.Reservations))
	assert.Equal(t, DenyReasonClosed, result.Reservations[1].DenyReason)
	assert.Equal(t, 2, result.Confirmed)
	assert.Equal(t, 1, result.Denied)
	assert.False(t, result.AlreadyMaterialized)

	stored, reservations, err := store.GetSeriesBySlot(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.Equal(t, result.Series.ID, stored.ID)
	assert.Equal(t, "Junior basketball", stored.Name)
	assert.Len(t, reservations, 3)
	for _, r := range reservations {
		assert.Equal(t, stored.ID, r.RecurringReservationID)
		assert.Equal(t, "court-a", r.ReservationUnitID)
	}
}

func TestMaterializeSlot_IsIdempotent(t *testing.T) {
	store := newMemorySeriesStore()
	m := newTestMaterializer(t, store, testTree(t), closedDates{})
	ctx := context.Background()

	first, err := m.MaterializeSlot(ctx, mondaySlotInput())
	require.NoError(t, err)

	second, err := m.MaterializeSlot(ctx, mondaySlotInput())
	require.NoError(t, err)

	assert.True(t, second.AlreadyMaterialized)
	assert.Equal(t, first.Series.ID, second.Series.ID)
	assert.Equal(t, 3, second.Confirmed)
	assert.Equal(t, 1, store.createCalls)
	assert.Len(t, store.series, 1)
}

func TestMaterializeSlot_ConcurrentRunsCreateOneSeries(t *testing.T) {
	store := newMemorySeriesStore()
	m := newTestMaterializer(t, store, testTree(t), closedDates{})

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.MaterializeSlot(context.Background(), mondaySlotInput())
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Series.ID, results[i].Series.ID)
	}
	assert.Len(t, store.series, 1)
	assert.Len(t, store.reservations["slot-1"], 3)
}

// slowOracle is always open but holds every caller for a while, so concurrent
// slots would pass their overlap checks before either is stored
type slowOracle struct {
	delay time.Duration
}

func (o slowOracle) IsOpen(context.Context, string, time.Time, time.Time) (bool, error) {
	time.Sleep(o.delay)
	return true, nil
}

func TestMaterializeSlot_RelatedUnitsAreSerialized(t *testing.T) {
	store := newMemorySeriesStore()
	m := newTestMaterializer(t, store, testTree(t), slowOracle{delay: 20 * time.Millisecond})

	// One Monday only, on a court and on the hall that contains it
	court := mondaySlotInput()
	court.Section.ReservationsEndDate = date(2024, 9, 8)
	hall := mondaySlotInput()
	hall.Section.ReservationsEndDate = date(2024, 9, 8)
	hall.Slot.ID = "slot-2"
	hall.Slot.OptionID = "option-2"
	hall.Option = model.ReservationUnitOption{ID: "option-2", SectionID: "section-1", ReservationUnitID: "hall"}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	for i, input := range []SlotInput{court, hall} {
		wg.Add(1)
		go func(i int, input SlotInput) {
			defer wg.Done()
			results[i], errs[i] = m.MaterializeSlot(context.Background(), input)
		}(i, input)
	}
	wg.Wait()

	confirmed, denied := 0, 0
	for i := range results {
		require.NoError(t, errs[i])
		require.Len(t, results[i].Reservations, 1)
		confirmed += results[i].Confirmed
		denied += results[i].Denied
		if results[i].Denied == 1 {
			assert.Equal(t, DenyReasonOverlap, results[i].Reservations[0].DenyReason)
		}
	}
	assert.Equal(t, 1, confirmed, "only one of the overlapping units is confirmed")
	assert.Equal(t, 1, denied)
}

func TestMaterializeSlot_OverlapOnRelatedUnit(t *testing.T) {
	loc := helsinki(t)
	store := newMemorySeriesStore()
	store.existing = []model.Reservation{
		// Parent hall booked in the first week
		{ID: "r-hall", ReservationUnitID: "hall", State: model.ReservationConfirmed,
			Begin: time.Date(2024, 9, 2, 13, 0, 0, 0, loc), End: time.Date(2024, 9, 2, 15, 0, 0, 0, loc)},
		// Sibling court does not conflict
		{ID: "r-court-b", ReservationUnitID: "court-b", State: model.ReservationConfirmed,
			Begin: time.Date(2024, 9, 9, 12, 0, 0, 0, loc), End: time.Date(2024, 9, 9, 14, 0, 0, 0, loc)},
		// Denied reservations never block
		{ID: "r-denied", ReservationUnitID: "court-a", State: model.ReservationDenied,
			Begin: time.Date(2024, 9, 16, 12, 0, 0, 0, loc), End: time.Date(2024, 9, 16, 14, 0, 0, 0, loc)},
	}
	m := newTestMaterializer(t, store, testTree(t), closedDates{})

	result, err := m.MaterializeSlot(context.Background(), mondaySlotInput())
	require.NoError(t, err)

	assert.Equal(t,
		[]model.ReservationState{model.ReservationDenied, model.ReservationConfirmed, model.ReservationConfirmed},
		statesOf(result.Reservations))
	assert.Equal(t, DenyReasonOverlap, result.Reservations[0].DenyReason)
}

func TestMaterializeSlot_CollaboratorErrorsDenyOccurrences(t *testing.T) {
	t.Run("opening hours", func(t *testing.T) {
		store := newMemorySeriesStore()
		m := newTestMaterializer(t, store, testTree(t), closedDates{err: errors.New("sheet unavailable")})

		result, err := m.MaterializeSlot(context.Background(), mondaySlotInput())
		require.NoError(t, err)

		assert.Equal(t, 3, result.Denied)
		assert.Equal(t, 3, result.CollaboratorErrors)
		for _, r := range result.Reservations {
			assert.Equal(t, DenyReasonCheckFailed, r.DenyReason)
		}
	})

	t.Run("overlap check", func(t *testing.T) {
		store := newMemorySeriesStore()
		store.overlapErr = errors.New("connection reset")
		m := newTestMaterializer(t, store, testTree(t), closedDates{})

		result, err := m.MaterializeSlot(context.Background(), mondaySlotInput())
		require.NoError(t, err)
		assert.Equal(t, 3, result.Denied)
		assert.Equal(t, 3, result.CollaboratorErrors)
	})

	t.Run("hierarchy", func(t *testing.T) {
		store := newMemorySeriesStore()
		m := newTestMaterializer(t, store, failingResolver{}, closedDates{})

		result, err := m.MaterializeSlot(context.Background(), mondaySlotInput())
		require.NoError(t, err)
		assert.Equal(t, 0, result.Confirmed)
		assert.Equal(t, 3, result.Denied)
		assert.Equal(t, 3, result.CollaboratorErrors)
		assert.Len(t, store.series, 1, "series is still stored")
	})
}

func TestMaterializeSlot_SnapshotsReservee(t *testing.T) {
	store := newMemorySeriesStore()
	m := newTestMaterializer(t, store, testTree(t), closedDates{})
	input := mondaySlotInput()

	result, err := m.MaterializeSlot(context.Background(), input)
	require.NoError(t, err)

	r := result.Reservations[0]
	assert.Equal(t, "Helsinki Hoops", r.ReserveeName)
	assert.Equal(t, "Helsinki Hoops", r.ReserveeOrganisation)
	assert.Equal(t, "1234567-8", r.ReserveeIdentifier)
	assert.Equal(t, "Aino Virtanen", r.ContactName)
	assert.Equal(t, "aino@example.com", r.ContactEmail)
	assert.Equal(t, "00100", r.BillingPostCode)
	assert.Equal(t, 12, r.NumPersons)

	// Later changes to the application do not reach stored reservations
	input.Application.Organisation.Name = "Renamed club"
	input.Application.ContactPerson.Email = "new@example.com"

	again, err := m.MaterializeSlot(context.Background(), input)
	require.NoError(t, err)
	require.True(t, again.AlreadyMaterialized)
	assert.Equal(t, "Helsinki Hoops", again.Reservations[0].ReserveeOrganisation)
	assert.Equal(t, "aino@example.com", again.Reservations[0].ContactEmail)
}

func TestMaterializeSlot_EmptyPeriodStillCreatesSeries(t *testing.T) {
	store := newMemorySeriesStore()
	m := newTestMaterializer(t, store, testTree(t), closedDates{})
	input := mondaySlotInput()
	input.Section.ReservationsBeginDate = date(2024, 9, 3)
	input.Section.ReservationsEndDate = date(2024, 9, 5)

	result, err := m.MaterializeSlot(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, result.Reservations)
	assert.Len(t, store.series, 1)
}
