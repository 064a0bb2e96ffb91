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

// AllocateRoundStore defines the database operations needed for batch allocation
type AllocateRoundStore interface {
	RoundReader
	InsertAllocatedTimeSlots(ctx context.Context, slots []model.AllocatedTimeSlot) error
}

// AllocateRoundResult is the outcome of a batch allocation
type AllocateRoundResult struct {
	Outcome *allocator.AllocationOutcome

	// Persisted is true when the new slots were stored
	Persisted bool
}

// AllocateRound runs the greedy allocator over every allocatable section of
// the round. Every hierarchy root touched by the round stays locked for the
// whole run. New slots are stored unless dryRun is set or the final state
// fails validation.
func AllocateRound(
	ctx context.Context,
	store AllocateRoundStore,
	resolver hierarchy.Resolver,
	locker lock.Locker,
	clk clock.Clock,
	logger *zap.Logger,
	roundID string,
	dryRun bool,
) (*AllocateRoundResult, error) {
	logger = logger.With(zap.String("round_id", roundID))
	logger.Debug("Starting round allocation", zap.Bool("dry_run", dryRun))

	// Step 1: Check the round and collect its units
	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	if !roundStatus.AllowsAllocation() {
		return nil, roundConflict(roundID, roundStatus, "allocate")
	}

	// Step 2: Lock every hierarchy the round touches
	resolution, release, err := lockHierarchy(ctx, resolver, locker, logger, unitIDs(snapshot.Options))
	if err != nil {
		return nil, err
	}
	defer release()

	// Step 3: Re-read under the lock and run the allocator
	snapshot, roundStatus, err = loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	state, err := buildState(snapshot, roundStatus, resolution.Related)
	if err != nil {
		return nil, err
	}

	outcome, err := allocator.Allocate(allocator.AllocationConfig{State: state})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate round: %w", err)
	}

	logger.Info("Allocation finished",
		zap.Int("new_slots", len(outcome.NewSlots)),
		zap.Int("unsatisfied_sections", len(outcome.UnsatisfiedSections)),
		zap.Int("validation_errors", len(outcome.ValidationErrors)))

	result := &AllocateRoundResult{Outcome: outcome}

	if !outcome.Success {
		for _, v := range outcome.ValidationErrors {
			logger.Error("Allocation violates constraint",
				zap.String("constraint", v.ConstraintName),
				zap.String("section_id", v.SectionID),
				zap.String("slot_id", v.SlotID),
				zap.String("description", v.Description))
		}
		logger.Warn("Allocation not saved due to validation errors")
		return result, nil
	}

	if dryRun {
		logger.Info("Dry run, allocation not saved")
		return result, nil
	}

	// Step 4: Persist new slots
	if err := store.InsertAllocatedTimeSlots(ctx, outcome.NewSlots); err != nil {
		return nil, fmt.Errorf("failed to insert allocated time slots: %w", err)
	}
	result.Persisted = true

	logger.Info("Saved allocation", zap.Int("slots", len(outcome.NewSlots)))
	return result, nil
}
