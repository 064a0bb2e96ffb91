package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
)

// GetSeriesBySlot retrieves the series created from an allocated time slot
// together with its occurrences in begin order
func (d *DB) GetSeriesBySlot(ctx context.Context, slotID string) (*model.RecurringReservation, []model.Reservation, error) {
	var s model.RecurringReservation
	var weekday int
	var begin, end pgtype.Time
	err := d.pool.QueryRow(ctx, `
		SELECT id, allocated_time_slot_id, reservation_unit_id, name, begin_date, end_date,
			weekday, begin_time, end_time, biweekly, created_at
		FROM recurring_reservation
		WHERE allocated_time_slot_id = $1
	`, slotID).Scan(&s.ID, &s.AllocatedTimeSlotID, &s.ReservationUnitID, &s.Name, &s.BeginDate, &s.EndDate,
		&weekday, &begin, &end, &s.Biweekly, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("series for slot %s: %w", slotID, db.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query series: %w", err)
	}
	s.Weekday = model.Weekday(weekday)
	s.BeginTime = timeOfDay(begin)
	s.EndTime = timeOfDay(end)

	rows, err := d.pool.Query(ctx, `
		SELECT id, recurring_reservation_id, reservation_unit_id, begin_at, end_at, state, deny_reason,
			num_persons, reservee_name, reservee_organisation, reservee_identifier,
			contact_name, contact_email, contact_phone,
			billing_street_address, billing_post_code, billing_city
		FROM reservation
		WHERE recurring_reservation_id = $1
		ORDER BY begin_at
	`, s.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var r model.Reservation
		var state string
		if err := rows.Scan(&r.ID, &r.RecurringReservationID, &r.ReservationUnitID, &r.Begin, &r.End, &state, &r.DenyReason,
			&r.NumPersons, &r.ReserveeName, &r.ReserveeOrganisation, &r.ReserveeIdentifier,
			&r.ContactName, &r.ContactEmail, &r.ContactPhone,
			&r.BillingStreetAddress, &r.BillingPostCode, &r.BillingCity); err != nil {
			return nil, nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		r.State = model.ReservationState(state)
		reservations = append(reservations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating reservations: %w", err)
	}

	return &s, reservations, nil
}

// HasConfirmedOverlap reports whether a confirmed reservation on any of the
// units overlaps [begin, end)
func (d *DB) HasConfirmedOverlap(ctx context.Context, unitIDs []string, begin, end time.Time) (bool, error) {
	if len(unitIDs) == 0 {
		return false, nil
	}

	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservation
			WHERE state = 'CONFIRMED'
				AND reservation_unit_id = ANY($1)
				AND begin_at < $3
				AND end_at > $2
		)
	`, unitIDs, begin, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping reservations: %w", err)
	}
	return exists, nil
}

// CreateSeries stores a series and its occurrences in one transaction. The
// transaction holds an advisory lock on the slot, and the unique index on
// allocated_time_slot_id rejects a second series, so at most one caller
// writes. Returns false when a series already existed.
func (d *DB) CreateSeries(ctx context.Context, series model.RecurringReservation, reservations []model.Reservation) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('slot:' || $1))`, series.AllocatedTimeSlotID); err != nil {
		return false, fmt.Errorf("failed to lock slot %s: %w", series.AllocatedTimeSlotID, err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO recurring_reservation (id, allocated_time_slot_id, reservation_unit_id, name,
			begin_date, end_date, weekday, begin_time, end_time, biweekly, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (allocated_time_slot_id) DO NOTHING
	`, series.ID, series.AllocatedTimeSlotID, series.ReservationUnitID, series.Name,
		pgDate(series.BeginDate), pgDate(series.EndDate), int(series.Weekday),
		pgTime(series.BeginTime), pgTime(series.EndTime), series.Biweekly, series.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert series: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	rows := make([][]any, 0, len(reservations))
	for _, r := range reservations {
		rows = append(rows, []any{
			r.ID, series.ID, r.ReservationUnitID, r.Begin.UTC(), r.End.UTC(), string(r.State), r.DenyReason,
			r.NumPersons, r.ReserveeName, r.ReserveeOrganisation, r.ReserveeIdentifier,
			r.ContactName, r.ContactEmail, r.ContactPhone,
			r.BillingStreetAddress, r.BillingPostCode, r.BillingCity,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"reservation"},
		[]string{
			"id", "recurring_reservation_id", "reservation_unit_id", "begin_at", "end_at", "state", "deny_reason",
			"num_persons", "reservee_name", "reservee_organisation", "reservee_identifier",
			"contact_name", "contact_email", "contact_phone",
			"billing_street_address", "billing_post_code", "billing_city",
		},
		pgx.CopyFromRows(rows))
	if err != nil {
		return false, fmt.Errorf("failed to insert reservations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}
