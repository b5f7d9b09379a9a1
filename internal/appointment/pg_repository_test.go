package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var columns = []string{
	"id", "org_id", "patient_id", "therapist_id", "date", "time", "duration_minutes",
	"status", "payment_status", "notes", "over_capacity", "version", "created_at", "updated_at",
}

func row(rows *pgxmock.Rows, a Appointment) *pgxmock.Rows {
	return rows.AddRow(
		a.ID, a.OrgID, a.PatientID, a.TherapistID, a.Date.Time(), a.Time.String(), a.DurationMinutes,
		a.Status, a.PaymentStatus, a.Notes, a.OverCapacity, a.Version, a.CreatedAt, a.UpdatedAt,
	)
}

func sample() Appointment {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return Appointment{
		ID:              uuid.New(),
		OrgID:           uuid.New(),
		PatientID:       uuid.New(),
		TherapistID:     (*uuid.UUID)(nil),
		Date:            calendar.MustParseDate("2024-01-08"),
		Time:            calendar.MustParseClock("09:00"),
		DurationMinutes: 60,
		Status:          StatusScheduled,
		PaymentStatus:   PaymentPending,
		Notes:           (*string)(nil),
		Version:         3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPgRepository_Get(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	a := sample()

	mock.ExpectQuery("FROM appointments").WithArgs(a.ID).WillReturnRows(row(pgxmock.NewRows(columns), a))
	got, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Date, got.Date)
	assert.Equal(t, a.Time, got.Time)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Equal(t, 3, got.Version)

	missing := uuid.New()
	mock.ExpectQuery("FROM appointments").WithArgs(missing).WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), missing)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListByDate(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	a, b := sample(), sample()
	b.Time = calendar.MustParseClock("10:30")
	date := a.Date

	rows := row(row(pgxmock.NewRows(columns), a), b)
	mock.ExpectQuery("WHERE org_id = \\$1 AND date = \\$2").WithArgs(a.OrgID, date.Time()).WillReturnRows(rows)

	got, err := repo.ListByDate(context.Background(), a.OrgID, date)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10:30", got[1].Time.String())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_ListByPatient_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	patient := uuid.New()

	mock.ExpectQuery("WHERE patient_id = \\$1").WithArgs(patient).WillReturnError(errors.New("boom"))

	_, err := repo.ListByPatient(context.Background(), patient)
	assert.ErrorContains(t, err, "list appointments by patient")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_Update(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	a := sample()
	target := calendar.MustParseDate("2024-01-09")
	at := calendar.MustParseClock("14:00")

	updated := a
	updated.Date = target
	updated.Time = at
	updated.Version = 4

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(a.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 3).
		WillReturnRows(row(pgxmock.NewRows(columns), updated))

	got, err := repo.Update(context.Background(), a.ID, Patch{Date: &target, Time: &at, ExpectedVersion: 3})
	require.NoError(t, err)
	assert.Equal(t, target, got.Date)
	assert.Equal(t, at, got.Time)
	assert.Equal(t, 4, got.Version)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_Update_StaleAndMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	id := uuid.New()
	at := calendar.MustParseClock("14:00")

	mock.ExpectQuery("UPDATE appointments").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT 1 FROM appointments").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	_, err := repo.Update(context.Background(), id, Patch{Time: &at, ExpectedVersion: 1})
	assert.ErrorIs(t, err, ErrStaleVersion)

	mock.ExpectQuery("UPDATE appointments").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT 1 FROM appointments").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = repo.Update(context.Background(), id, Patch{Time: &at, ExpectedVersion: 1})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertEvent(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	id := uuid.New()

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventRescheduleCommitted, &id, []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertEvent(context.Background(), EventLog{EventType: EventRescheduleCommitted, AppointmentID: &id, Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
