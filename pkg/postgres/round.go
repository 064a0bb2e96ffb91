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

const roundColumns = `
	id, name, application_period_begin, application_period_end,
	reservation_period_begin, reservation_period_end, handled_date, sent_date`

func scanRound(row pgx.Row) (model.ApplicationRound, error) {
	var r model.ApplicationRound
	err := row.Scan(&r.ID, &r.Name, &r.ApplicationPeriodBegin, &r.ApplicationPeriodEnd,
		&r.ReservationPeriodBegin, &r.ReservationPeriodEnd, &r.HandledDate, &r.SentDate)
	return r, err
}

// GetRounds retrieves every application round
func (d *DB) GetRounds(ctx context.Context) ([]model.ApplicationRound, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+roundColumns+` FROM application_round ORDER BY application_period_begin, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var rounds []model.ApplicationRound
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}

	return rounds, nil
}

// GetRoundSnapshot reads every allocation-relevant record of a round
func (d *DB) GetRoundSnapshot(ctx context.Context, roundID string) (*db.RoundSnapshot, error) {
	// Repeatable read so every query sees the same data
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	round, err := scanRound(tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM application_round WHERE id = $1`, roundID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("round %s: %w", roundID, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query round: %w", err)
	}

	snapshot := &db.RoundSnapshot{Round: round}

	if snapshot.Applications, err = queryApplications(ctx, tx, roundID); err != nil {
		return nil, err
	}
	if snapshot.Sections, err = querySections(ctx, tx, roundID); err != nil {
		return nil, err
	}
	if snapshot.SuitableRanges, err = querySuitableRanges(ctx, tx, roundID); err != nil {
		return nil, err
	}
	if snapshot.Options, err = queryOptions(ctx, tx, roundID); err != nil {
		return nil, err
	}
	if snapshot.Slots, err = querySlots(ctx, tx, roundID); err != nil {
		return nil, err
	}
	if snapshot.Series, err = querySeriesSummaries(ctx, tx, roundID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return snapshot, nil
}

func queryApplications(ctx context.Context, tx pgx.Tx, roundID string) ([]model.Application, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, round_id, applicant_name,
			organisation_name, organisation_identifier, organisation_email, organisation_core_business,
			contact_first_name, contact_last_name, contact_email, contact_phone,
			billing_street_address, billing_post_code, billing_city,
			cancelled_date, sent_date, created_at
		FROM application
		WHERE round_id = $1
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applications: %w", err)
	}
	defer rows.Close()

	var applications []model.Application
	for rows.Next() {
		var a model.Application
		var orgName, orgIdentifier, orgEmail, orgBusiness *string
		var firstName, lastName, contactEmail, contactPhone *string
		var street, postCode, city *string
		if err := rows.Scan(&a.ID, &a.RoundID, &a.ApplicantName,
			&orgName, &orgIdentifier, &orgEmail, &orgBusiness,
			&firstName, &lastName, &contactEmail, &contactPhone,
			&street, &postCode, &city,
			&a.CancelledDate, &a.SentDate, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		if orgName != nil {
			a.Organisation = &model.Organisation{
				Name:               *orgName,
				IdentifierNumber:   deref(orgIdentifier),
				Email:              deref(orgEmail),
				CoreBusinessDetail: deref(orgBusiness),
			}
		}
		if firstName != nil || lastName != nil {
			a.ContactPerson = &model.Person{
				FirstName: deref(firstName),
				LastName:  deref(lastName),
				Email:     deref(contactEmail),
				Phone:     deref(contactPhone),
			}
		}
		if street != nil {
			a.BillingAddress = &model.Address{StreetAddress: *street, PostCode: deref(postCode), City: deref(city)}
		}
		applications = append(applications, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return applications, nil
}

func querySections(ctx context.Context, tx pgx.Tx, roundID string) ([]model.ApplicationSection, error) {
	rows, err := tx.Query(ctx, `
		SELECT s.id, s.application_id, s.name, s.num_persons,
			s.reservation_min_duration_seconds, s.reservation_max_duration_seconds,
			s.applied_reservations_per_week, s.reservations_begin_date, s.reservations_end_date,
			s.biweekly, s.created_at
		FROM application_section s
		JOIN application a ON a.id = s.application_id
		WHERE a.round_id = $1
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []model.ApplicationSection
	for rows.Next() {
		var s model.ApplicationSection
		var minSeconds, maxSeconds int
		if err := rows.Scan(&s.ID, &s.ApplicationID, &s.Name, &s.NumPersons,
			&minSeconds, &maxSeconds,
			&s.AppliedReservationsPerWeek, &s.ReservationsBeginDate, &s.ReservationsEndDate,
			&s.Biweekly, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		s.ReservationMinDuration = time.Duration(minSeconds) * time.Second
		s.ReservationMaxDuration = time.Duration(maxSeconds) * time.Second
		sections = append(sections, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}

	return sections, nil
}

func querySuitableRanges(ctx context.Context, tx pgx.Tx, roundID string) ([]model.SuitableTimeRange, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.id, r.section_id, r.priority, r.day_of_the_week, r.begin_time, r.end_time
		FROM suitable_time_range r
		JOIN application_section s ON s.id = r.section_id
		JOIN application a ON a.id = s.application_id
		WHERE a.round_id = $1
		ORDER BY r.section_id, r.day_of_the_week, r.begin_time
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suitable time ranges: %w", err)
	}
	defer rows.Close()

	var ranges []model.SuitableTimeRange
	for rows.Next() {
		var r model.SuitableTimeRange
		var priority, day int
		var begin, end pgtype.Time
		if err := rows.Scan(&r.ID, &r.SectionID, &priority, &day, &begin, &end); err != nil {
			return nil, fmt.Errorf("failed to scan suitable time range: %w", err)
		}
		r.Priority = model.Priority(priority)
		r.DayOfTheWeek = model.Weekday(day)
		r.BeginTime = timeOfDay(begin)
		r.EndTime = timeOfDay(end)
		ranges = append(ranges, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suitable time ranges: %w", err)
	}

	return ranges, nil
}

func queryOptions(ctx context.Context, tx pgx.Tx, roundID string) ([]model.ReservationUnitOption, error) {
	rows, err := tx.Query(ctx, `
		SELECT o.id, o.section_id, o.reservation_unit_id, o.preferred_order, o.rejected, o.locked
		FROM reservation_unit_option o
		JOIN application_section s ON s.id = o.section_id
		JOIN application a ON a.id = s.application_id
		WHERE a.round_id = $1
		ORDER BY o.section_id, o.preferred_order
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservation unit options: %w", err)
	}
	defer rows.Close()

	var options []model.ReservationUnitOption
	for rows.Next() {
		var o model.ReservationUnitOption
		if err := rows.Scan(&o.ID, &o.SectionID, &o.ReservationUnitID, &o.PreferredOrder, &o.Rejected, &o.Locked); err != nil {
			return nil, fmt.Errorf("failed to scan reservation unit option: %w", err)
		}
		options = append(options, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation unit options: %w", err)
	}

	return options, nil
}

func querySlots(ctx context.Context, tx pgx.Tx, roundID string) ([]model.AllocatedTimeSlot, error) {
	rows, err := tx.Query(ctx, `
		SELECT t.id, t.option_id, t.section_id, t.day_of_the_week, t.begin_time, t.end_time
		FROM allocated_time_slot t
		JOIN application_section s ON s.id = t.section_id
		JOIN application a ON a.id = s.application_id
		WHERE a.round_id = $1
		ORDER BY t.section_id, t.day_of_the_week
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocated time slots: %w", err)
	}
	defer rows.Close()

	var slots []model.AllocatedTimeSlot
	for rows.Next() {
		var s model.AllocatedTimeSlot
		var day int
		var begin, end pgtype.Time
		if err := rows.Scan(&s.ID, &s.OptionID, &s.SectionID, &day, &begin, &end); err != nil {
			return nil, fmt.Errorf("failed to scan allocated time slot: %w", err)
		}
		s.DayOfTheWeek = model.Weekday(day)
		s.BeginTime = timeOfDay(begin)
		s.EndTime = timeOfDay(end)
		slots = append(slots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocated time slots: %w", err)
	}

	return slots, nil
}

func querySeriesSummaries(ctx context.Context, tx pgx.Tx, roundID string) ([]db.SeriesSummary, error) {
	rows, err := tx.Query(ctx, `
		SELECT rr.id, rr.allocated_time_slot_id, t.section_id,
			COUNT(r.id) FILTER (WHERE r.state = 'CONFIRMED'),
			COUNT(r.id) FILTER (WHERE r.state = 'DENIED')
		FROM recurring_reservation rr
		JOIN allocated_time_slot t ON t.id = rr.allocated_time_slot_id
		JOIN application_section s ON s.id = t.section_id
		JOIN application a ON a.id = s.application_id
		LEFT JOIN reservation r ON r.recurring_reservation_id = rr.id
		WHERE a.round_id = $1
		GROUP BY rr.id, rr.allocated_time_slot_id, t.section_id
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var series []db.SeriesSummary
	for rows.Next() {
		var s db.SeriesSummary
		if err := rows.Scan(&s.ID, &s.AllocatedTimeSlotID, &s.SectionID, &s.Confirmed, &s.Denied); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		series = append(series, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating series: %w", err)
	}

	return series, nil
}

// lookupRoundID runs a single-value round id query
func (d *DB) lookupRoundID(ctx context.Context, entity, query, id string) (string, error) {
	var roundID string
	err := d.pool.QueryRow(ctx, query, id).Scan(&roundID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", entity, id, db.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up round of %s %s: %w", entity, id, err)
	}
	return roundID, nil
}

// GetRoundIDByApplication returns the round an application belongs to
func (d *DB) GetRoundIDByApplication(ctx context.Context, applicationID string) (string, error) {
	return d.lookupRoundID(ctx, "application", `SELECT round_id FROM application WHERE id = $1`, applicationID)
}

// GetRoundIDBySection returns the round a section belongs to
func (d *DB) GetRoundIDBySection(ctx context.Context, sectionID string) (string, error) {
	return d.lookupRoundID(ctx, "section", `
		SELECT a.round_id
		FROM application_section s
		JOIN application a ON a.id = s.application_id
		WHERE s.id = $1
	`, sectionID)
}

// GetRoundIDByOption returns the round a reservation unit option belongs to
func (d *DB) GetRoundIDByOption(ctx context.Context, optionID string) (string, error) {
	return d.lookupRoundID(ctx, "option", `
		SELECT a.round_id
		FROM reservation_unit_option o
		JOIN application_section s ON s.id = o.section_id
		JOIN application a ON a.id = s.application_id
		WHERE o.id = $1
	`, optionID)
}

// GetRoundIDBySlot returns the round an allocated time slot belongs to
func (d *DB) GetRoundIDBySlot(ctx context.Context, slotID string) (string, error) {
	return d.lookupRoundID(ctx, "allocated time slot", `
		SELECT a.round_id
		FROM allocated_time_slot t
		JOIN application_section s ON s.id = t.section_id
		JOIN application a ON a.id = s.application_id
		WHERE t.id = $1
	`, slotID)
}
