package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/allocator"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// AllocateSlotStore defines the database operations needed for a manual allocation
type AllocateSlotStore interface {
	RoundReader
	GetRoundIDByOption(ctx context.Context, optionID string) (string, error)
	InsertAllocatedTimeSlots(ctx context.Context, slots []model.AllocatedTimeSlot) error
}

// AllocateSlotRequest is a manually chosen slot for an option
type AllocateSlotRequest struct {
	OptionID     string
	DayOfTheWeek model.Weekday
	BeginTime    model.TimeOfDay
	EndTime      model.TimeOfDay

	// Force bypasses day suitability, duration bounds and suitable range containment
	Force bool
}

// AllocateSlot validates and stores one manually chosen slot.
//
// The decision runs under the lock of the option's hierarchy root on data
// read after the lock is taken. Rejected requests return
// *model.ValidationError with every violated rule.
func AllocateSlot(
	ctx context.Context,
	store AllocateSlotStore,
	resolver hierarchy.Resolver,
	locker lock.Locker,
	clk clock.Clock,
	logger *zap.Logger,
	request AllocateSlotRequest,
) (*model.AllocatedTimeSlot, error) {
	logger = logger.With(zap.String("option_id", request.OptionID))
	logger.Debug("Allocating slot",
		zap.String("day", request.DayOfTheWeek.String()),
		zap.String("begin", request.BeginTime.String()),
		zap.String("end", request.EndTime.String()),
		zap.Bool("force", request.Force))

	// Step 1: Find the option's round and unit
	roundID, err := store.GetRoundIDByOption(ctx, request.OptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find round of option %s: %w", request.OptionID, err)
	}

	snapshot, _, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	option, ok := findOption(snapshot, request.OptionID)
	if !ok {
		return nil, model.NewValidationError("option_id", model.CodeUnknownOption, fmt.Sprintf("unknown option %s", request.OptionID))
	}

	// Step 2: Lock the unit's hierarchy
	resolution, release, err := lockHierarchy(ctx, resolver, locker, logger, []string{option.ReservationUnitID})
	if err != nil {
		return nil, err
	}
	defer release()

	// Step 3: Re-read under the lock and validate
	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	state, err := buildState(snapshot, roundStatus, resolution.Related)
	if err != nil {
		return nil, err
	}

	slot, err := allocator.AllocateSlot(state, allocator.Candidate{
		OptionID:     request.OptionID,
		DayOfTheWeek: request.DayOfTheWeek,
		BeginTime:    request.BeginTime,
		EndTime:      request.EndTime,
	}, request.Force)
	if err != nil {
		logger.Info("Slot rejected", zap.Error(err))
		return nil, err
	}

	// Step 4: Persist
	if err := store.InsertAllocatedTimeSlots(ctx, []model.AllocatedTimeSlot{*slot}); err != nil {
		return nil, fmt.Errorf("failed to insert allocated time slot: %w", err)
	}

	logger.Info("Allocated slot",
		zap.String("slot_id", slot.ID),
		zap.String("section_id", slot.SectionID),
		zap.String("unit_id", option.ReservationUnitID))

	return slot, nil
}
