package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgRepository struct {
	db db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{db: q}
}

const appointmentColumns = `id, org_id, patient_id, therapist_id, date, time, duration_minutes,
		       status, payment_status, notes, over_capacity, version, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var day time.Time
	var clock string

	err := row.Scan(
		&a.ID,
		&a.OrgID,
		&a.PatientID,
		&a.TherapistID,
		&day,
		&clock,
		&a.DurationMinutes,
		&a.Status,
		&a.PaymentStatus,
		&a.Notes,
		&a.OverCapacity,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = calendar.DateOf(day)
	a.Time, err = calendar.ParseClock(clock)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByDate(ctx context.Context, orgID uuid.UUID, date calendar.Date) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE org_id = $1 AND date = $2
		ORDER BY time, id
	`, orgID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list appointments by date: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date, time
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, p Patch) (*Appointment, error) {
	var day *time.Time
	if p.Date != nil {
		t := p.Date.Time()
		day = &t
	}
	var clock *string
	if p.Time != nil {
		s := p.Time.String()
		clock = &s
	}
	var status *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}

	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET date = COALESCE($2, date),
		    time = COALESCE($3, time),
		    status = COALESCE($4, status),
		    over_capacity = COALESCE($5, over_capacity),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $6
		RETURNING `+appointmentColumns,
		id, day, clock, status, p.OverCapacity, p.ExpectedVersion)

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		// Tell a missing row apart from a version mismatch.
		var exists int
		if qErr := r.db.QueryRow(ctx, `SELECT 1 FROM appointments WHERE id = $1`, id).Scan(&exists); qErr != nil {
			if errors.Is(qErr, pgx.ErrNoRows) {
				return nil, ErrAppointmentNotFound
			}
			return nil, fmt.Errorf("check appointment: %w", qErr)
		}
		return nil, ErrStaleVersion
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
