package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/recurrence"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// PreviewStore defines the database operations needed for an occurrence preview
type PreviewStore interface {
	RoundReader
	GetRoundIDBySection(ctx context.Context, sectionID string) (string, error)
}

// RangePreview lists the occurrences a suitable time range would produce
type RangePreview struct {
	Range       model.SuitableTimeRange
	Occurrences []recurrence.Occurrence
}

// PreviewOccurrences expands each suitable time range of a section over the
// section's reservation period. Nothing is stored.
func PreviewOccurrences(ctx context.Context, store PreviewStore, clk clock.Clock, logger *zap.Logger, sectionID string) ([]RangePreview, error) {
	logger = logger.With(zap.String("section_id", sectionID))

	roundID, err := store.GetRoundIDBySection(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find round of section %s: %w", sectionID, err)
	}

	snapshot, _, err := loadSnapshot(ctx, store, clk, logger, roundID)
	if err != nil {
		return nil, err
	}
	section, ok := findSection(snapshot, sectionID)
	if !ok {
		return nil, fmt.Errorf("section %s: %w", sectionID, db.ErrNotFound)
	}

	previews := []RangePreview{}
	for _, r := range snapshot.SuitableRanges {
		if r.SectionID != sectionID {
			continue
		}
		occurrences, err := recurrence.Occurrences(recurrence.OccurrenceRule{
			PeriodBegin: section.ReservationsBeginDate,
			PeriodEnd:   section.ReservationsEndDate,
			Weekday:     r.DayOfTheWeek,
			BeginTime:   r.BeginTime,
			EndTime:     r.EndTime,
			Biweekly:    section.Biweekly,
			Location:    clk.Location(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to expand suitable time range %s: %w", r.ID, err)
		}
		previews = append(previews, RangePreview{Range: r, Occurrences: occurrences})
	}

	logger.Debug("Previewed occurrences", zap.Int("ranges", len(previews)))
	return previews, nil
}
