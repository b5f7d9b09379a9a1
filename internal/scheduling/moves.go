package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/reschedule"
)

// LoadDay tracks the server copies of one date's appointments.
func (s *Service) LoadDay(ctx context.Context, orgID uuid.UUID, date calendar.Date) ([]appointment.Appointment, error) {
	appts, err := s.appts.ListByDate(ctx, orgID, date)
	if err != nil {
		return nil, err
	}
	s.moves.Track(appts...)
	return appts, nil
}

// owned reports ErrAppointmentNotFound for appointments of another org, so
// ids cannot be guessed across tenants.
func (s *Service) owned(orgID, id uuid.UUID) error {
	a, ok := s.moves.Appointment(id)
	if !ok || a.OrgID != orgID {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

// refresh loads the server copy of id and tracks it.
func (s *Service) refresh(ctx context.Context, orgID, id uuid.UUID) error {
	a, err := s.appts.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.OrgID != orgID {
		return appointment.ErrAppointmentNotFound
	}
	s.moves.Track(*a)
	return nil
}

// BeginMove starts dragging an appointment.
func (s *Service) BeginMove(ctx context.Context, orgID, id uuid.UUID) error {
	if err := s.refresh(ctx, orgID, id); err != nil {
		return err
	}
	return s.moves.Begin(id)
}

func (s *Service) DropMove(ctx context.Context, orgID, id uuid.UUID, date calendar.Date, t calendar.Clock) (*reschedule.Proposal, error) {
	if err := s.owned(orgID, id); err != nil {
		return nil, err
	}
	return s.moves.Drop(ctx, id, date, t)
}

func (s *Service) CancelMove(orgID, id uuid.UUID) error {
	if err := s.owned(orgID, id); err != nil {
		return err
	}
	return s.moves.Cancel(id)
}

// ConfirmMove persists the pending proposal and writes the audit event.
func (s *Service) ConfirmMove(ctx context.Context, orgID, id uuid.UUID) (*appointment.Appointment, error) {
	if err := s.owned(orgID, id); err != nil {
		return nil, err
	}
	updated, p, err := s.moves.ConfirmProposal(ctx, id)
	var perr *reschedule.PersistenceError
	switch {
	case err == nil && p != nil:
		s.events.Record(ctx, id, appointment.EventRescheduleCommitted, map[string]any{
			"from_date": p.OriginalDate,
			"from_time": p.OriginalTime,
			"to_date":   p.TargetDate,
			"to_time":   p.TargetTime,
			"version":   updated.Version,
		})
	case errors.As(err, &perr) && p != nil:
		s.events.Record(ctx, id, appointment.EventRescheduleRolledBack, map[string]any{
			"to_date": p.TargetDate,
			"to_time": p.TargetTime,
			"error":   perr.Err.Error(),
		})
	}
	return updated, err
}

// RecordNoShow marks the appointment as falta and optionally opens a
// follow-up move for it.
func (s *Service) RecordNoShow(ctx context.Context, orgID, id uuid.UUID, openReschedule bool) (*reschedule.NoShowResult, error) {
	if !s.moves.State(id).Open() {
		if err := s.refresh(ctx, orgID, id); err != nil {
			return nil, err
		}
	} else if err := s.owned(orgID, id); err != nil {
		return nil, err
	}

	res, err := s.moves.RecordNoShow(ctx, id, openReschedule)
	if err != nil {
		return nil, err
	}
	s.events.Record(ctx, id, appointment.EventNoShowRecorded, map[string]any{
		"date":            res.Appointment.Date,
		"time":            res.Appointment.Time,
		"open_reschedule": res.RescheduleOpen,
	})
	return res, nil
}

// MoveStatus is the externally visible state of an appointment's move.
type MoveStatus struct {
	Appointment appointment.Appointment `json:"appointment"`
	State       reschedule.State        `json:"state"`
	Proposal    *reschedule.Proposal    `json:"proposal,omitempty"`
}

func (s *Service) MoveStatus(orgID, id uuid.UUID) (*MoveStatus, error) {
	if err := s.owned(orgID, id); err != nil {
		return nil, err
	}
	a, _ := s.moves.Appointment(id)
	st := &MoveStatus{Appointment: a, State: s.moves.State(id)}
	if p, ok := s.moves.Pending(id); ok {
		st.Proposal = p
	}
	return st, nil
}
