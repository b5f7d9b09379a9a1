package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type Status string

const (
	StatusScheduled            Status = "agendado"
	StatusConfirmed            Status = "confirmado"
	StatusAwaitingConfirmation Status = "aguardando_confirmacao"
	StatusInProgress           Status = "em_andamento"
	StatusCompleted            Status = "concluido"
	StatusRescheduled          Status = "remarcado"
	StatusCancelled            Status = "cancelado"
	StatusNoShow               Status = "falta"
)

var allStatuses = map[Status]struct{}{
	StatusScheduled:            {},
	StatusConfirmed:            {},
	StatusAwaitingConfirmation: {},
	StatusInProgress:           {},
	StatusCompleted:            {},
	StatusRescheduled:          {},
	StatusCancelled:            {},
	StatusNoShow:               {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := allStatuses[st]; !ok {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return st, nil
}

// ReleasesSlot reports whether an appointment in this status leaves nothing
// worth offering when it moves away. Capacity and conflicts use Occupies.
func (s Status) ReleasesSlot() bool {
	switch s {
	case StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentRefunded PaymentStatus = "refunded"
)

// OverCapacityMarker is the legacy notes token that flagged a booking made
// beyond configured capacity. New writes use the OverCapacity field.
const OverCapacityMarker = "[EXCEDENTE]"

type Appointment struct {
	ID              uuid.UUID      `json:"id"`
	OrgID           uuid.UUID      `json:"org_id"`
	PatientID       uuid.UUID      `json:"patient_id"`
	TherapistID     *uuid.UUID     `json:"therapist_id,omitempty"`
	Date            calendar.Date  `json:"date"`
	Time            calendar.Clock `json:"time"`
	DurationMinutes int            `json:"duration_minutes"`
	Status          Status         `json:"status"`
	PaymentStatus   PaymentStatus  `json:"payment_status"`
	Notes           *string        `json:"notes,omitempty"`
	OverCapacity    bool           `json:"over_capacity"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Occupies is true for every non-cancelled appointment. No-shows and
// rescheduled rows still count toward capacity and conflicts.
func (a Appointment) Occupies() bool { return a.Status != StatusCancelled }

// HoldsBookableSlot is true when moving the appointment frees a place that
// can be offered to the waitlist.
func (a Appointment) HoldsBookableSlot() bool { return !a.Status.ReleasesSlot() }

// Duration falls back to 60 minutes when unset.
func (a Appointment) Duration() int {
	if a.DurationMinutes <= 0 {
		return 60
	}
	return a.DurationMinutes
}

// End is the exclusive end of [Time, Time+Duration).
func (a Appointment) End() calendar.Clock { return a.Time.Add(a.Duration()) }

// Overlaps reports whether t falls inside the appointment's interval.
func (a Appointment) Overlaps(t calendar.Clock) bool {
	return t >= a.Time && t < a.End()
}

// FlaggedOverCapacity reads the explicit field or the legacy notes marker.
func (a Appointment) FlaggedOverCapacity() bool {
	if a.OverCapacity {
		return true
	}
	return a.Notes != nil && strings.Contains(*a.Notes, OverCapacityMarker)
}

// Patch carries the fields an update may change. Nil means unchanged.
// ExpectedVersion guards against stale writes.
type Patch struct {
	Date            *calendar.Date
	Time            *calendar.Clock
	Status          *Status
	OverCapacity    *bool
	ExpectedVersion int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
