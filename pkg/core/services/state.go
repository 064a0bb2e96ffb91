package services

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/allocator"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/hierarchy"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/status"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// RoundReader reads everything a service needs to know about one round
type RoundReader interface {
	GetRoundSnapshot(ctx context.Context, roundID string) (*db.RoundSnapshot, error)
}

func loadSnapshot(ctx context.Context, store RoundReader, clk clock.Clock, logger *zap.Logger, roundID string) (*db.RoundSnapshot, model.RoundStatus, error) {
	logger.Debug("Fetching round snapshot", zap.String("round_id", roundID))
	snapshot, err := store.GetRoundSnapshot(ctx, roundID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch round %s: %w", roundID, err)
	}

	roundStatus := status.Round(snapshot.Round, clk.Now())
	logger.Debug("Fetched round snapshot",
		zap.String("round_id", roundID),
		zap.String("status", string(roundStatus)),
		zap.Int("applications", len(snapshot.Applications)),
		zap.Int("sections", len(snapshot.Sections)),
		zap.Int("slots", len(snapshot.Slots)))

	return snapshot, roundStatus, nil
}

func buildState(snapshot *db.RoundSnapshot, roundStatus model.RoundStatus, related map[string][]string) (*allocator.AllocationState, error) {
	state, err := allocator.InitState(allocator.StateInput{
		RoundID:        snapshot.Round.ID,
		RoundStatus:    roundStatus,
		Applications:   snapshot.Applications,
		Sections:       snapshot.Sections,
		SuitableRanges: snapshot.SuitableRanges,
		Options:        snapshot.Options,
		Slots:          snapshot.Slots,
		Related:        related,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize allocation state: %w", err)
	}
	return state, nil
}

// unitIDs returns the distinct reservation units of the options, sorted
func unitIDs(options []model.ReservationUnitOption) []string {
	ids := make([]string, 0, len(options))
	for _, o := range options {
		ids = append(ids, o.ReservationUnitID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// lockHierarchy resolves the given units and locks every hierarchy root they
// belong to. The caller must call release.
func lockHierarchy(
	ctx context.Context,
	resolver hierarchy.Resolver,
	locker lock.Locker,
	logger *zap.Logger,
	units []string,
) (*hierarchy.Resolution, func(), error) {
	resolution, err := hierarchy.Resolve(ctx, resolver, units)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve unit hierarchy: %w", err)
	}

	logger.Debug("Acquiring hierarchy locks", zap.Strings("roots", resolution.Roots))
	release, err := locker.Acquire(ctx, resolution.Roots...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock unit hierarchy: %w", err)
	}

	return resolution, release, nil
}

func roundConflict(roundID string, roundStatus model.RoundStatus, action string) error {
	return &model.StateConflictError{
		Entity: "application round",
		ID:     roundID,
		Status: string(roundStatus),
		Action: action,
	}
}

func findOption(snapshot *db.RoundSnapshot, optionID string) (model.ReservationUnitOption, bool) {
	for _, o := range snapshot.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return model.ReservationUnitOption{}, false
}

func findSlot(snapshot *db.RoundSnapshot, slotID string) (model.AllocatedTimeSlot, bool) {
	for _, s := range snapshot.Slots {
		if s.ID == slotID {
			return s, true
		}
	}
	return model.AllocatedTimeSlot{}, false
}

func findSection(snapshot *db.RoundSnapshot, sectionID string) (model.ApplicationSection, bool) {
	for _, s := range snapshot.Sections {
		if s.ID == sectionID {
			return s, true
		}
	}
	return model.ApplicationSection{}, false
}
