package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// OptionFlagStore defines the database operations needed to reject or lock options
type OptionFlagStore interface {
	RoundReader
	GetRoundIDByOption(ctx context.Context, optionID string) (string, error)
	GetRoundIDBySection(ctx context.Context, sectionID string) (string, error)
	SetOptionRejected(ctx context.Context, optionID string, rejected bool) error
	SetOptionLocked(ctx context.Context, optionID string, locked bool) error
	SetSectionOptionsRejected(ctx context.Context, sectionID string, rejected bool) (int, error)
}

type optionFlag string

const (
	flagRejected optionFlag = "rejected"
	flagLocked   optionFlag = "locked"
)

// SetOptionRejected rejects or restores a reservation unit option
func SetOptionRejected(ctx context.Context, store OptionFlagStore, clk clock.Clock, logger *zap.Logger, optionID string, rejected bool) error {
	return setOptionFlag(ctx, store, clk, logger, optionID, flagRejected, rejected)
}

// SetOptionLocked locks or unlocks a reservation unit option
func SetOptionLocked(ctx context.Context, store OptionFlagStore, clk clock.Clock, logger *zap.Logger, optionID string, locked bool) error {
	return setOptionFlag(ctx, store, clk, logger, optionID, flagLocked, locked)
}

// setOptionFlag changes a flag while the round is in allocation. An option
// that still owns allocated slots cannot be rejected or locked.
func setOptionFlag(
	ctx context.Context,
	store OptionFlagStore,
	clk clock.Clock,
	logger *zap.Logger,
	optionID string,
	flag optionFlag,
	value bool,
) error {
	logger = logger.With(zap.String("option_id", optionID), zap.String("flag", string(flag)), zap.Bool("value", value))

	roundID, err := store.GetRoundIDByOption(ctx, optionID)
	if err != nil {
		return fmt.Errorf("failed to find round of option %s: %w", optionID, err)
	}

	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return err
	}
	if !roundStatus.AllowsAllocation() {
		return roundConflict(roundID, roundStatus, "change option "+string(flag)+" in")
	}

	if value {
		allocations := 0
		for _, slot := range snapshot.Slots {
			if slot.OptionID == optionID {
				allocations++
			}
		}
		if allocations > 0 {
			return &model.StateConflictError{
				Entity: "reservation unit option",
				ID:     optionID,
				Status: fmt.Sprintf("allocated (%d slots)", allocations),
				Action: "set " + string(flag),
			}
		}
	}

	switch flag {
	case flagRejected:
		err = store.SetOptionRejected(ctx, optionID, value)
	case flagLocked:
		err = store.SetOptionLocked(ctx, optionID, value)
	}
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", flag, err)
	}

	logger.Info("Updated option flag")
	return nil
}

// RejectAllSectionOptions rejects every option of a section
func RejectAllSectionOptions(ctx context.Context, store OptionFlagStore, clk clock.Clock, logger *zap.Logger, sectionID string) (int, error) {
	return setSectionOptionsRejected(ctx, store, clk, logger, sectionID, true)
}

// RestoreAllSectionOptions clears the rejected flag on every option of a section
func RestoreAllSectionOptions(ctx context.Context, store OptionFlagStore, clk clock.Clock, logger *zap.Logger, sectionID string) (int, error) {
	return setSectionOptionsRejected(ctx, store, clk, logger, sectionID, false)
}

func setSectionOptionsRejected(
	ctx context.Context,
	store OptionFlagStore,
	clk clock.Clock,
	logger *zap.Logger,
	sectionID string,
	rejected bool,
) (int, error) {
	logger = logger.With(zap.String("section_id", sectionID), zap.Bool("rejected", rejected))

	roundID, err := store.GetRoundIDBySection(ctx, sectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to find round of section %s: %w", sectionID, err)
	}

	snapshot, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return 0, err
	}
	if !roundStatus.AllowsAllocation() {
		return 0, roundConflict(roundID, roundStatus, "change section options in")
	}

	options, allocations := 0, 0
	for _, o := range snapshot.Options {
		if o.SectionID == sectionID {
			options++
		}
	}
	for _, slot := range snapshot.Slots {
		if slot.SectionID == sectionID {
			allocations++
		}
	}

	if options == 0 {
		return 0, model.NewValidationError("section_id", model.CodeNoOptions,
			fmt.Sprintf("section %s has no reservation unit options", sectionID))
	}
	if rejected && allocations > 0 {
		return 0, &model.StateConflictError{
			Entity: "application section",
			ID:     sectionID,
			Status: fmt.Sprintf("allocated (%d slots)", allocations),
			Action: "reject all options of",
		}
	}

	updated, err := store.SetSectionOptionsRejected(ctx, sectionID, rejected)
	if err != nil {
		return 0, fmt.Errorf("failed to update section options: %w", err)
	}

	logger.Info("Updated section options", zap.Int("options", updated))
	return updated, nil
}
