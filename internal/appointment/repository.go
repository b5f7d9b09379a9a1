package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStaleVersion        = errors.New("appointment was modified concurrently")
)

// Store is the persistence collaborator for appointments.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByDate(ctx context.Context, orgID uuid.UUID, date calendar.Date) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)

	// Update applies p if the row is still at p.ExpectedVersion.
	Update(ctx context.Context, id uuid.UUID, p Patch) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
