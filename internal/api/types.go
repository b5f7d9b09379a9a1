package api

import (
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/reschedule"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type BeginMoveRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type DropRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type NoShowRequest struct {
	OpenReschedule bool `json:"open_reschedule"`
}

type OfferResponseRequest struct {
	Accepted *bool `json:"accepted"`
}

type SlotsResponse struct {
	Date  calendar.Date           `json:"date"`
	Slots []availability.SlotView `json:"slots"`
}

type WeekResponse struct {
	Start calendar.Date          `json:"start"`
	Days  []availability.DayGrid `json:"days"`
}

type ConflictsResponse struct {
	PatientID uuid.UUID               `json:"patient_id"`
	Date      calendar.Date           `json:"date"`
	Conflicts []availability.Conflict `json:"conflicts"`
}

type CapacityOverlapsResponse struct {
	Overlaps []availability.CapacityOverlap `json:"overlaps"`
}

type MoveResponse struct {
	AppointmentID uuid.UUID            `json:"appointment_id"`
	State         reschedule.State     `json:"state"`
	Proposal      *reschedule.Proposal `json:"proposal,omitempty"`
}

type AppointmentResponse struct {
	Appointment appointment.Appointment `json:"appointment"`
	State       reschedule.State        `json:"state"`
}

type NoShowResponse struct {
	Appointment    appointment.Appointment `json:"appointment"`
	RescheduleOpen bool                    `json:"reschedule_open"`
}

type MatchResponse struct {
	EntryID   uuid.UUID               `json:"entry_id"`
	PatientID uuid.UUID               `json:"patient_id"`
	Priority  waitlist.Priority       `json:"priority"`
	Score     int                     `json:"score"`
	Breakdown waitlist.ScoreBreakdown `json:"breakdown"`
}

type MatchesResponse struct {
	Date    calendar.Date   `json:"date"`
	Time    calendar.Clock  `json:"time"`
	Matches []MatchResponse `json:"matches"`
}

type ErrorResponse struct {
	Error       string                   `json:"error"`
	Details     string                   `json:"details,omitempty"`
	Reason      string                   `json:"reason,omitempty"`
	Appointment *appointment.Appointment `json:"appointment,omitempty"`
}
