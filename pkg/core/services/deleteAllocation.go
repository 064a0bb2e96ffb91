package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// DeleteAllocationStore defines the database operations needed to delete a slot
type DeleteAllocationStore interface {
	RoundReader
	GetRoundIDBySlot(ctx context.Context, slotID string) (string, error)
	DeleteAllocatedTimeSlot(ctx context.Context, slotID string) error
}

// DeleteAllocation removes one allocated time slot while its round is in allocation
func DeleteAllocation(
	ctx context.Context,
	store DeleteAllocationStore,
	resolver hierarchy.Resolver,
	locker lock.Locker,
	clk clock.Clock,
	logger *zap.Logger,
	slotID string,
) error {
	logger = logger.With(zap.String("slot_id", slotID))

	roundID, err := store.GetRoundIDBySlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("failed to find round of slot %s: %w", slotID, err)
	}

	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return err
	}
	if !roundStatus.AllowsAllocation() {
		return roundConflict(roundID, roundStatus, "delete allocation in")
	}

	slot, ok := findSlot(snapshot, slotID)
	if !ok {
		return fmt.Errorf("allocated time slot %s: %w", slotID, db.ErrNotFound)
	}
	option, ok := findOption(snapshot, slot.OptionID)
	if !ok {
		return fmt.Errorf("option %s of slot %s: %w", slot.OptionID, slotID, db.ErrNotFound)
	}

	_, release, err := lockHierarchy(ctx, resolver, locker, logger, []string{option.ReservationUnitID})
	if err != nil {
		return err
	}
	defer release()

	if err := store.DeleteAllocatedTimeSlot(ctx, slotID); err != nil {
		return fmt.Errorf("failed to delete allocated time slot: %w", err)
	}

	logger.Info("Deleted allocated time slot",
		zap.String("section_id", slot.SectionID),
		zap.String("day", slot.DayOfTheWeek.String()))
	return nil
}
