// Package events publishes domain events about created reservations
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SeriesCreatedQueue is the queue SeriesCreated events are published to
const SeriesCreatedQueue = "reservation.series_created"

// SeriesCreated is published once for every newly materialised series
type SeriesCreated struct {
	SeriesID            string    `json:"series_id"`
	RoundID             string    `json:"round_id"`
	ApplicationID       string    `json:"application_id"`
	SectionID           string    `json:"section_id"`
	AllocatedTimeSlotID string    `json:"allocated_time_slot_id"`
	ReservationUnitID   string    `json:"reservation_unit_id"`
	Confirmed           int       `json:"confirmed"`
	Denied              int       `json:"denied"`
	CreatedAt           time.Time `json:"created_at"`
}

// Publisher delivers domain events
type Publisher interface {
	PublishSeriesCreated(ctx context.Context, event SeriesCreated) error
}

// Nop drops every event after logging it at debug level
type Nop struct {
	Logger *zap.Logger
}

func (n Nop) PublishSeriesCreated(_ context.Context, event SeriesCreated) error {
	if n.Logger != nil {
		n.Logger.Debug("Dropping SeriesCreated event, no broker configured", zap.String("series_id", event.SeriesID))
	}
	return nil
}
