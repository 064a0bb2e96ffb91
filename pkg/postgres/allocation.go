package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
)

// InsertAllocatedTimeSlots inserts allocated time slots in one transaction
func (d *DB) InsertAllocatedTimeSlots(ctx context.Context, slots []model.AllocatedTimeSlot) error {
	if len(slots) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(`
			INSERT INTO allocated_time_slot (id, option_id, section_id, day_of_the_week, begin_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, s.ID, s.OptionID, s.SectionID, int(s.DayOfTheWeek), pgTime(s.BeginTime), pgTime(s.EndTime))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert allocated time slots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteAllocatedTimeSlot deletes one allocated time slot
func (d *DB) DeleteAllocatedTimeSlot(ctx context.Context, slotID string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM allocated_time_slot WHERE id = $1`, slotID)
	if err != nil {
		return fmt.Errorf("failed to delete allocated time slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allocated time slot %s: %w", slotID, db.ErrNotFound)
	}
	return nil
}

func (d *DB) setOptionFlag(ctx context.Context, column, optionID string, value bool) error {
	tag, err := d.pool.Exec(ctx, `UPDATE reservation_unit_option SET `+column+` = $2 WHERE id = $1`, optionID, value)
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("option %s: %w", optionID, db.ErrNotFound)
	}
	return nil
}

// SetOptionRejected sets the rejected flag of an option
func (d *DB) SetOptionRejected(ctx context.Context, optionID string, rejected bool) error {
	return d.setOptionFlag(ctx, "rejected", optionID, rejected)
}

// SetOptionLocked sets the locked flag of an option
func (d *DB) SetOptionLocked(ctx context.Context, optionID string, locked bool) error {
	return d.setOptionFlag(ctx, "locked", optionID, locked)
}

// SetSectionOptionsRejected sets the rejected flag on every option of a
// section and returns how many options it has
func (d *DB) SetSectionOptionsRejected(ctx context.Context, sectionID string, rejected bool) (int, error) {
	tag, err := d.pool.Exec(ctx, `
		UPDATE reservation_unit_option SET rejected = $2 WHERE section_id = $1
	`, sectionID, rejected)
	if err != nil {
		return 0, fmt.Errorf("failed to set section options rejected: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ResetRoundAllocations deletes every allocated time slot of a round and
// clears the rejected and locked flags of its options
func (d *DB) ResetRoundAllocations(ctx context.Context, roundID string) (*db.ResetResult, error) {
	return d.reset(ctx, `
		SELECT s.id
		FROM application_section s
		JOIN application a ON a.id = s.application_id
		WHERE a.round_id = $1
	`, roundID)
}

// ResetApplicationAllocations deletes every allocated time slot of an
// application and clears the rejected and locked flags of its options
func (d *DB) ResetApplicationAllocations(ctx context.Context, applicationID string) (*db.ResetResult, error) {
	return d.reset(ctx, `SELECT id FROM application_section WHERE application_id = $1`, applicationID)
}

// reset clears allocations for the sections selected by sectionQuery
func (d *DB) reset(ctx context.Context, sectionQuery, id string) (*db.ResetResult, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleted, err := tx.Exec(ctx, `
		DELETE FROM allocated_time_slot WHERE section_id IN (`+sectionQuery+`)
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete allocated time slots: %w", err)
	}

	cleared, err := tx.Exec(ctx, `
		UPDATE reservation_unit_option SET rejected = FALSE, locked = FALSE
		WHERE section_id IN (`+sectionQuery+`) AND (rejected OR locked)
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to clear option flags: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &db.ResetResult{
		DeletedSlots: int(deleted.RowsAffected()),
		ResetOptions: int(cleared.RowsAffected()),
	}, nil
}

// SetRoundHandledDate marks a round handled
func (d *DB) SetRoundHandledDate(ctx context.Context, roundID string, handled time.Time) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE application_round SET handled_date = $2 WHERE id = $1
	`, roundID, handled.UTC())
	if err != nil {
		return fmt.Errorf("failed to set round handled_date: %w", err)
	}
	return nil
}

// SetRoundSentDate marks a round's results sent
func (d *DB) SetRoundSentDate(ctx context.Context, roundID string, sent time.Time) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE application_round SET sent_date = $2 WHERE id = $1
	`, roundID, sent.UTC())
	if err != nil {
		return fmt.Errorf("failed to set round sent_date: %w", err)
	}
	return nil
}
