package db

import "github.com/jakechorley/tilavaraus-allocation/pkg/core/model"

// RoundSnapshot is every allocation-relevant record of one application round
type RoundSnapshot struct {
	Round          model.ApplicationRound
	Applications   []model.Application
	Sections       []model.ApplicationSection
	SuitableRanges []model.SuitableTimeRange
	Options        []model.ReservationUnitOption
	Slots          []model.AllocatedTimeSlot
	Series         []SeriesSummary
}

// SeriesSummary counts the occurrences of one recurring reservation by state
type SeriesSummary struct {
	ID                  string
	AllocatedTimeSlotID string
	SectionID           string
	Confirmed           int
	Denied              int
}

// ResetResult reports what a reset removed
type ResetResult struct {
	DeletedSlots int
	ResetOptions int
}
