package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// ResetAllocationStore defines the database operations needed to reset allocations
type ResetAllocationStore interface {
	RoundReader
	GetRoundIDByApplication(ctx context.Context, applicationID string) (string, error)
	ResetRoundAllocations(ctx context.Context, roundID string) (*db.ResetResult, error)
	ResetApplicationAllocations(ctx context.Context, applicationID string) (*db.ResetResult, error)
}

// ResetRoundAllocation deletes every allocated slot of the round and clears
// the rejected and locked flags of its options
func ResetRoundAllocation(
	ctx context.Context,
	store ResetAllocationStore,
	resolver hierarchy.Resolver,
	locker lock.Locker,
	clk clock.Clock,
	logger *zap.Logger,
	roundID string,
) (*db.ResetResult, error) {
	logger = logger.With(zap.String("round_id", roundID))

	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	if !roundStatus.AllowsResetting() {
		return nil, roundConflict(roundID, roundStatus, "reset allocations of")
	}

	_, release, err := lockHierarchy(ctx, resolver, locker, logger, unitIDs(snapshot.Options))
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := store.ResetRoundAllocations(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset round allocations: %w", err)
	}

	logger.Info("Reset round allocations",
		zap.Int("deleted_slots", result.DeletedSlots),
		zap.Int("reset_options", result.ResetOptions))
	return result, nil
}

// ResetApplicationAllocation deletes every allocated slot of one application
// and clears the rejected and locked flags of its options
func ResetApplicationAllocation(
	ctx context.Context,
	store ResetAllocationStore,
	resolver hierarchy.Resolver,
	locker lock.Locker,
	clk clock.Clock,
	logger *zap.Logger,
	applicationID string,
) (*db.ResetResult, error) {
	logger = logger.With(zap.String("application_id", applicationID))

	roundID, err := store.GetRoundIDByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find round of application %s: %w", applicationID, err)
	}

	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	if !roundStatus.AllowsResetting() {
		return nil, roundConflict(roundID, roundStatus, "reset allocations of")
	}

	sectionIDs := make(map[string]bool)
	for _, s := range snapshot.Sections {
		if s.ApplicationID == applicationID {
			sectionIDs[s.ID] = true
		}
	}
	var options []model.ReservationUnitOption
	for _, o := range snapshot.Options {
		if sectionIDs[o.SectionID] {
			options = append(options, o)
		}
	}

	_, release, err := lockHierarchy(ctx, resolver, locker, logger, unitIDs(options))
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := store.ResetApplicationAllocations(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset application allocations: %w", err)
	}

	logger.Info("Reset application allocations",
		zap.Int("deleted_slots", result.DeletedSlots),
		zap.Int("reset_options", result.ResetOptions))
	return result, nil
}
