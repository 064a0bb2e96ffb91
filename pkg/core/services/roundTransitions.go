package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// RoundTransitionStore defines the database operations needed to advance a round
type RoundTransitionStore interface {
	RoundReader
	SetRoundHandledDate(ctx context.Context, roundID string, handled time.Time) error
	SetRoundSentDate(ctx context.Context, roundID string, sent time.Time) error
}

// SetRoundHandled ends allocation for a round (IN_ALLOCATION to HANDLED)
func SetRoundHandled(ctx context.Context, store RoundTransitionStore, clk clock.Clock, logger *zap.Logger, roundID string) error {
	logger = logger.With(zap.String("round_id", roundID))

	_, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return err
	}
	if roundStatus != model.RoundInAllocation {
		return roundConflict(roundID, roundStatus, "mark handled")
	}

	now := clk.Now()
	if err := store.SetRoundHandledDate(ctx, roundID, now); err != nil {
		return fmt.Errorf("failed to mark round handled: %w", err)
	}

	logger.Info("Round marked handled", zap.Time("handled_date", now))
	return nil
}

// SetResultsSent records that allocation results were sent (HANDLED to RESULTS_SENT)
func SetResultsSent(ctx context.Context, store RoundTransitionStore, clk clock.Clock, logger *zap.Logger, roundID string) error {
	logger = logger.With(zap.String("round_id", roundID))

	_, roundStatus, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return err
	}
	if roundStatus != model.RoundHandled {
		return roundConflict(roundID, roundStatus, "mark results sent for")
	}

	now := clk.Now()
	if err := store.SetRoundSentDate(ctx, roundID, now); err != nil {
		return fmt.Errorf("failed to mark round results sent: %w", err)
	}

	logger.Info("Round results marked sent", zap.Time("sent_date", now))
	return nil
}
