package services

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/recurrence"
	"github.com/jakechorley/tilavaraus-allocation/pkg/events"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// SlotMaterializer creates the series of one allocated slot
type SlotMaterializer interface {
	MaterializeSlot(ctx context.Context, input recurrence.SlotInput) (*recurrence.Result, error)
}

// MaterializeRoundResult summarises one materialisation run
type MaterializeRoundResult struct {
	// Created counts series created by this run
	Created int

	// AlreadyMaterialized counts slots that had a series before this run
	AlreadyMaterialized int

	// Skipped counts slots whose option, section or application is missing
	Skipped int

	// Cancelled counts slots of cancelled applications, which get no series
	Cancelled int

	// Failed counts slots whose series could not be stored; rerun to retry them
	Failed int

	// Occurrence totals over series created by this run
	Confirmed          int
	Denied             int
	CollaboratorErrors int

	PublishFailures int

	Series []recurrence.Result
}

// MaterializeRound creates recurring reservations for every allocated slot of
// a handled round.
//
// Each slot is materialised in its own transaction, so a failed or
// interrupted run can simply be repeated: slots that already have a series
// are skipped. One SeriesCreated event is published per new series.
func MaterializeRound(
	ctx context.Context,
	store RoundReader,
	materializer SlotMaterializer,
	publisher events.Publisher,
	clk clock.Clock,
	logger *zap.Logger,
	roundID string,
) (*MaterializeRoundResult, error) {
	logger = logger.With(zap.String("round_id", roundID))
	logger.Debug("Starting materialisation")

	// Step 1: Only handled rounds are materialised
	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	if !roundStatus.IsAllocationFinished() {
		return nil, roundConflict(roundID, roundStatus, "create reservations for")
	}

	applications := make(map[string]model.Application, len(snapshot.Applications))
	for _, a := range snapshot.Applications {
		applications[a.ID] = a
	}
	sections := make(map[string]model.ApplicationSection, len(snapshot.Sections))
	for _, s := range snapshot.Sections {
		sections[s.ID] = s
	}
	options := make(map[string]model.ReservationUnitOption, len(snapshot.Options))
	for _, o := range snapshot.Options {
		options[o.ID] = o
	}

	slots := slices.Clone(snapshot.Slots)
	slices.SortFunc(slots, func(a, b model.AllocatedTimeSlot) int {
		if c := cmp.Compare(a.SectionID, b.SectionID); c != 0 {
			return c
		}
		return cmp.Compare(a.DayOfTheWeek, b.DayOfTheWeek)
	})

	result := &MaterializeRoundResult{Series: []recurrence.Result{}}

	// Step 2: Materialise slot by slot
	for _, slot := range slots {
		slotLogger := logger.With(zap.String("slot_id", slot.ID))

		option, ok := options[slot.OptionID]
		if !ok {
			slotLogger.Error("Skipping slot with unknown option", zap.String("option_id", slot.OptionID))
			result.Skipped++
			continue
		}
		section, ok := sections[slot.SectionID]
		if !ok {
			slotLogger.Error("Skipping slot with unknown section", zap.String("section_id", slot.SectionID))
			result.Skipped++
			continue
		}
		application, ok := applications[section.ApplicationID]
		if !ok {
			slotLogger.Error("Skipping slot with unknown application", zap.String("application_id", section.ApplicationID))
			result.Skipped++
			continue
		}
		if application.CancelledDate != nil {
			slotLogger.Debug("Skipping slot of cancelled application", zap.String("application_id", application.ID))
			result.Cancelled++
			continue
		}

		series, err := materializer.MaterializeSlot(ctx, recurrence.SlotInput{
			Slot:        slot,
			Option:      option,
			Section:     section,
			Application: application,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slotLogger.Error("Failed to materialise slot", zap.Error(err))
			result.Failed++
			continue
		}

		if series.AlreadyMaterialized {
			result.AlreadyMaterialized++
			continue
		}

		result.Created++
		result.Confirmed += series.Confirmed
		result.Denied += series.Denied
		result.CollaboratorErrors += series.CollaboratorErrors
		result.Series = append(result.Series, *series)

		// Step 3: Announce the new series
		event := events.SeriesCreated{
			SeriesID:            series.Series.ID,
			RoundID:             roundID,
			ApplicationID:       application.ID,
			SectionID:           section.ID,
			AllocatedTimeSlotID: slot.ID,
			ReservationUnitID:   option.ReservationUnitID,
			Confirmed:           series.Confirmed,
			Denied:              series.Denied,
			CreatedAt:           series.Series.CreatedAt,
		}
		if err := publisher.PublishSeriesCreated(ctx, event); err != nil {
			slotLogger.Error("Failed to publish SeriesCreated event", zap.String("series_id", series.Series.ID), zap.Error(err))
			result.PublishFailures++
		}
	}

	logger.Info("Materialisation finished",
		zap.Int("created", result.Created),
		zap.Int("already_materialized", result.AlreadyMaterialized),
		zap.Int("skipped", result.Skipped),
		zap.Int("cancelled", result.Cancelled),
		zap.Int("failed", result.Failed),
		zap.Int("confirmed", result.Confirmed),
		zap.Int("denied", result.Denied),
		zap.Int("collaborator_errors", result.CollaboratorErrors))

	if result.Skipped > 0 {
		logger.Error("Slots skipped due to missing data", zap.Int("skipped", result.Skipped))
	}

	return result, nil
}
