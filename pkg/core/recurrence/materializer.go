package recurrence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/openinghours"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// Deny reasons recorded on DENIED occurrences
const (
	DenyReasonOverlap     = "overlapping reservation"
	DenyReasonClosed      = "reservation unit is closed"
	DenyReasonCheckFailed = "availability check failed"
)

// SlotInput is an allocated slot with the records it is materialised from
type SlotInput struct {
	Slot        model.AllocatedTimeSlot
	Option      model.ReservationUnitOption
	Section     model.ApplicationSection
	Application model.Application
}

// Result describes the series of one allocated slot
type Result struct {
	Series       model.RecurringReservation
	Reservations []model.Reservation

	// AlreadyMaterialized is true when the series existed before this call
	// and nothing was written
	AlreadyMaterialized bool

	Confirmed int
	Denied    int

	// CollaboratorErrors counts occurrences denied because a check failed
	CollaboratorErrors int
}

// Materializer creates recurring reservations from allocated slots
type Materializer struct {
	store     db.SeriesStore
	hierarchy hierarchy.Resolver
	locker    lock.Locker
	hours     openinghours.Oracle
	clock     clock.Clock
	logger    *zap.Logger
}

// NewMaterializer creates a Materializer. Occurrences are built in the
// clock's location. locker serializes slots whose units share a hierarchy
// root.
func NewMaterializer(
	store db.SeriesStore,
	resolver hierarchy.Resolver,
	locker lock.Locker,
	hours openinghours.Oracle,
	clk clock.Clock,
	logger *zap.Logger,
) *Materializer {
	return &Materializer{
		store:     store,
		hierarchy: resolver,
		locker:    locker,
		hours:     hours,
		clock:     clk,
		logger:    logger,
	}
}

// MaterializeSlot creates the series for one allocated slot.
//
// Every occurrence is persisted. Occurrences that overlap a confirmed
// reservation on a related unit, fall outside opening hours, or whose checks
// fail are stored as DENIED with a reason. A slot is materialised at most
// once; later calls return the stored series with AlreadyMaterialized set.
//
// The hierarchy root of the slot's unit stays locked from the overlap checks
// until the series is stored.
func (m *Materializer) MaterializeSlot(ctx context.Context, input SlotInput) (*Result, error) {
	slot := input.Slot
	unitID := input.Option.ReservationUnitID
	logger := m.logger.With(zap.String("slot_id", slot.ID))

	// Step 1: Resolve and lock the unit's hierarchy
	var related []string
	lockKeys := []string{unitID}
	resolution, relatedErr := hierarchy.Resolve(ctx, m.hierarchy, []string{unitID})
	if relatedErr != nil {
		// Every occurrence is denied below, so locking the unit alone is enough
		logger.Error("Failed to resolve related units", zap.String("unit_id", unitID), zap.Error(relatedErr))
	} else {
		related = resolution.Related[unitID]
		lockKeys = resolution.Roots
	}

	logger.Debug("Acquiring hierarchy locks", zap.Strings("keys", lockKeys))
	release, err := m.locker.Acquire(ctx, lockKeys...)
	if err != nil {
		return nil, fmt.Errorf("failed to lock unit hierarchy for slot %s: %w", slot.ID, err)
	}
	defer release()

	// Step 2: Skip slots that already have a series
	existing, err := m.existingResult(ctx, slot.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Debug("Slot already materialised", zap.String("series_id", existing.Series.ID))
		return existing, nil
	}

	// Step 3: Expand the slot over the section's reservation period
	occurrences, err := Occurrences(OccurrenceRule{
		PeriodBegin: input.Section.ReservationsBeginDate,
		PeriodEnd:   input.Section.ReservationsEndDate,
		Weekday:     slot.DayOfTheWeek,
		BeginTime:   slot.BeginTime,
		EndTime:     slot.EndTime,
		Biweekly:    input.Section.Biweekly,
		Location:    m.clock.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand occurrences for slot %s: %w", slot.ID, err)
	}
	logger.Debug("Expanded occurrences", zap.Int("count", len(occurrences)))

	series := model.RecurringReservation{
		ID:                  uuid.NewString(),
		AllocatedTimeSlotID: slot.ID,
		ReservationUnitID:   unitID,
		Name:                input.Section.Name,
		BeginDate:           input.Section.ReservationsBeginDate,
		EndDate:             input.Section.ReservationsEndDate,
		Weekday:             slot.DayOfTheWeek,
		BeginTime:           slot.BeginTime,
		EndTime:             slot.EndTime,
		Biweekly:            input.Section.Biweekly,
		CreatedAt:           m.clock.Now(),
	}

	result := &Result{Series: series, Reservations: make([]model.Reservation, 0, len(occurrences))}

	// Step 4: Check each occurrence
	for _, occurrence := range occurrences {
		reservation := model.Reservation{
			ID:                     uuid.NewString(),
			RecurringReservationID: series.ID,
			ReservationUnitID:      unitID,
			Begin:                  occurrence.Begin,
			End:                    occurrence.End,
			State:                  model.ReservationConfirmed,
			NumPersons:             input.Section.NumPersons,
		}
		applySnapshot(&reservation, input.Application)

		reason, checkErr := m.checkOccurrence(ctx, unitID, related, relatedErr, occurrence)
		if checkErr != nil {
			result.CollaboratorErrors++
			logger.Error("Occurrence check failed",
				zap.Time("begin", occurrence.Begin),
				zap.Error(checkErr))
		}
		if reason != "" {
			reservation.State = model.ReservationDenied
			reservation.DenyReason = reason
			result.Denied++
			logger.Warn("Occurrence denied",
				zap.Time("begin", occurrence.Begin),
				zap.Time("end", occurrence.End),
				zap.String("reason", reason))
		} else {
			result.Confirmed++
		}

		result.Reservations = append(result.Reservations, reservation)
	}

	// Step 5: Store series and occurrences together, once per slot
	created, err := m.store.CreateSeries(ctx, series, result.Reservations)
	if err != nil {
		return nil, fmt.Errorf("failed to create series for slot %s: %w", slot.ID, err)
	}
	if !created {
		// Lost a race with a concurrent run
		logger.Info("Series created concurrently, returning stored series")
		existing, err := m.existingResult(ctx, slot.ID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("series for slot %s was not created and could not be found", slot.ID)
		}
		return existing, nil
	}

	logger.Info("Created series",
		zap.String("series_id", series.ID),
		zap.Int("confirmed", result.Confirmed),
		zap.Int("denied", result.Denied))

	return result, nil
}

// checkOccurrence returns a deny reason, or "" if the occurrence can be
// confirmed, plus the collaborator error that caused a denial if any
func (m *Materializer) checkOccurrence(
	ctx context.Context,
	unitID string,
	related []string,
	relatedErr error,
	occurrence Occurrence,
) (string, error) {
	if relatedErr != nil {
		return DenyReasonCheckFailed, relatedErr
	}

	overlaps, err := m.store.HasConfirmedOverlap(ctx, related, occurrence.Begin, occurrence.End)
	if err != nil {
		return DenyReasonCheckFailed, &model.ExternalCollaboratorError{Collaborator: "overlap check", Err: err}
	}
	if overlaps {
		return DenyReasonOverlap, nil
	}

	open, err := m.hours.IsOpen(ctx, unitID, occurrence.Begin, occurrence.End)
	if err != nil {
		return DenyReasonCheckFailed, &model.ExternalCollaboratorError{Collaborator: "opening hours", Err: err}
	}
	if !open {
		return DenyReasonClosed, nil
	}

	return "", nil
}

func (m *Materializer) existingResult(ctx context.Context, slotID string) (*Result, error) {
	series, reservations, err := m.store.GetSeriesBySlot(ctx, slotID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up series for slot %s: %w", slotID, err)
	}

	result := &Result{Series: *series, Reservations: reservations, AlreadyMaterialized: true}
	for _, r := range reservations {
		if r.State == model.ReservationConfirmed {
			result.Confirmed++
		} else {
			result.Denied++
		}
	}
	return result, nil
}

// applySnapshot copies reservee details from the application. The copy is
// never refreshed when the application changes later.
func applySnapshot(r *model.Reservation, app model.Application) {
	r.ReserveeName = app.ApplicantName

	if org := app.Organisation; org != nil {
		r.ReserveeOrganisation = org.Name
		r.ReserveeIdentifier = org.IdentifierNumber
		if r.ReserveeName == "" {
			r.ReserveeName = org.Name
		}
	}

	if contact := app.ContactPerson; contact != nil {
		r.ContactName = contact.FullName()
		r.ContactEmail = contact.Email
		r.ContactPhone = contact.Phone
		if r.ReserveeName == "" {
			r.ReserveeName = contact.FullName()
		}
	}

	if address := app.BillingAddress; address != nil {
		r.BillingStreetAddress = address.StreetAddress
		r.BillingPostCode = address.PostCode
		r.BillingCity = address.City
	}
}
