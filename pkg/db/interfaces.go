package db

import (
	"context"
	"time"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
)

// RoundStore reads round data
type RoundStore interface {
	GetRounds(ctx context.Context) ([]model.ApplicationRound, error)
	GetRoundSnapshot(ctx context.Context, roundID string) (*RoundSnapshot, error)
	GetRoundIDByApplication(ctx context.Context, applicationID string) (string, error)
	GetRoundIDBySection(ctx context.Context, sectionID string) (string, error)
	GetRoundIDByOption(ctx context.Context, optionID string) (string, error)
	GetRoundIDBySlot(ctx context.Context, slotID string) (string, error)
}

// AllocationStore writes allocation results and option flags
type AllocationStore interface {
	InsertAllocatedTimeSlots(ctx context.Context, slots []model.AllocatedTimeSlot) error
	DeleteAllocatedTimeSlot(ctx context.Context, slotID string) error
	SetOptionRejected(ctx context.Context, optionID string, rejected bool) error
	SetOptionLocked(ctx context.Context, optionID string, locked bool) error
	SetSectionOptionsRejected(ctx context.Context, sectionID string, rejected bool) (int, error)
	ResetRoundAllocations(ctx context.Context, roundID string) (*ResetResult, error)
	ResetApplicationAllocations(ctx context.Context, applicationID string) (*ResetResult, error)
	SetRoundHandledDate(ctx context.Context, roundID string, handled time.Time) error
	SetRoundSentDate(ctx context.Context, roundID string, sent time.Time) error
}

// SeriesStore persists recurring reservations and their occurrences
type SeriesStore interface {
	// GetSeriesBySlot returns ErrNotFound when the slot has not been materialised
	GetSeriesBySlot(ctx context.Context, slotID string) (*model.RecurringReservation, []model.Reservation, error)

	// HasConfirmedOverlap reports whether any confirmed reservation on the
	// given units overlaps [begin, end)
	HasConfirmedOverlap(ctx context.Context, unitIDs []string, begin, end time.Time) (bool, error)

	// CreateSeries stores the series and its occurrences atomically unless a
	// series already exists for the same allocated slot. Returns false when
	// nothing was written.
	CreateSeries(ctx context.Context, series model.RecurringReservation, reservations []model.Reservation) (bool, error)
}

// Database defines the interface for all database operations.
// postgres.DB implements this interface.
type Database interface {
	RoundStore
	AllocationStore
	SeriesStore
}
