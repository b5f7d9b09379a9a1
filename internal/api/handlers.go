package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/reschedule"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// Scheduler is the facade the handlers drive.
type Scheduler interface {
	Slots(ctx context.Context, orgID uuid.UUID, date calendar.Date, slotMinutes int) ([]availability.SlotView, error)
	Week(ctx context.Context, orgID uuid.UUID, start calendar.Date, days, slotMinutes int) ([]availability.DayGrid, error)
	Conflicts(ctx context.Context, orgID, patientID uuid.UUID, date calendar.Date, exclude ...uuid.UUID) ([]availability.Conflict, error)
	CapacityOverlaps(ctx context.Context, orgID uuid.UUID) ([]availability.CapacityOverlap, error)
	RefreshRules(ctx context.Context, orgID uuid.UUID) error

	BeginMove(ctx context.Context, orgID, id uuid.UUID) error
	DropMove(ctx context.Context, orgID, id uuid.UUID, date calendar.Date, t calendar.Clock) (*reschedule.Proposal, error)
	ConfirmMove(ctx context.Context, orgID, id uuid.UUID) (*appointment.Appointment, error)
	CancelMove(orgID, id uuid.UUID) error
	MoveStatus(orgID, id uuid.UUID) (*scheduling.MoveStatus, error)
	RecordNoShow(ctx context.Context, orgID, id uuid.UUID, openReschedule bool) (*reschedule.NoShowResult, error)

	Matches(ctx context.Context, orgID uuid.UUID, date calendar.Date, t calendar.Clock) ([]waitlist.Match, error)
	RespondToOffer(ctx context.Context, orgID, entryID uuid.UUID, accepted bool) (*waitlist.Entry, error)
}

func slotsHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r, "date")
		if !ok {
			return
		}
		step, ok := intQuery(w, r, "slot_minutes")
		if !ok {
			return
		}

		slots, err := svc.Slots(r.Context(), orgID, date, step)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SlotsResponse{Date: date, Slots: slots})
	}
}

func weekHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}
		start, ok := dateQuery(w, r, "start")
		if !ok {
			return
		}
		days, ok := intQuery(w, r, "days")
		if !ok {
			return
		}
		if days > 31 {
			writeError(w, http.StatusBadRequest, "invalid_days", "days must be at most 31")
			return
		}
		step, ok := intQuery(w, r, "slot_minutes")
		if !ok {
			return
		}

		grid, err := svc.Week(r.Context(), orgID, start, days, step)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, WeekResponse{Start: start, Days: grid})
	}
}

func conflictsHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}
		patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		date, ok := dateQuery(w, r, "date")
		if !ok {
			return
		}

		var exclude []uuid.UUID
		if raw := r.URL.Query().Get("exclude"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude", "exclude must be a valid UUID")
				return
			}
			exclude = append(exclude, id)
		}

		conflicts, err := svc.Conflicts(r.Context(), orgID, patientID, date, exclude...)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ConflictsResponse{PatientID: patientID, Date: date, Conflicts: conflicts})
	}
}

func capacityOverlapsHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}

		overlaps, err := svc.CapacityOverlaps(r.Context(), orgID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CapacityOverlapsResponse{Overlaps: overlaps})
	}
}

func refreshRulesHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}
		if err := svc.RefreshRules(r.Context(), orgID); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func beginMoveHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}
		var req BeginMoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		id, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}

		if err := svc.BeginMove(r.Context(), orgID, id); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, MoveResponse{AppointmentID: id, State: reschedule.StateDragging})
	}
}

func moveStatusHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, id, ok := moveParams(w, r)
		if !ok {
			return
		}
		st, err := svc.MoveStatus(orgID, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func dropHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, id, ok := moveParams(w, r)
		if !ok {
			return
		}
		var req DropRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		date, err := calendar.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		at, err := calendar.ParseClock(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		p, err := svc.DropMove(r.Context(), orgID, id, date, at)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MoveResponse{AppointmentID: id, State: reschedule.StatePendingConfirmation, Proposal: p})
	}
}

func confirmHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, id, ok := moveParams(w, r)
		if !ok {
			return
		}
		appt, err := svc.ConfirmMove(r.Context(), orgID, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AppointmentResponse{Appointment: *appt, State: reschedule.StateCommitted})
	}
}

func cancelHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, id, ok := moveParams(w, r)
		if !ok {
			return
		}
		if err := svc.CancelMove(orgID, id); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MoveResponse{AppointmentID: id, State: reschedule.StateIdle})
	}
}

func noShowHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, id, ok := moveParams(w, r)
		if !ok {
			return
		}
		var req NoShowRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		res, err := svc.RecordNoShow(r.Context(), orgID, id, req.OpenReschedule)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NoShowResponse{Appointment: res.Appointment, RescheduleOpen: res.RescheduleOpen})
	}
}

func matchesHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r, "date")
		if !ok {
			return
		}
		at, err := calendar.ParseClock(r.URL.Query().Get("time"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		matches, err := svc.Matches(r.Context(), orgID, date, at)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := MatchesResponse{Date: date, Time: at, Matches: make([]MatchResponse, 0, len(matches))}
		for _, m := range matches {
			resp.Matches = append(resp.Matches, MatchResponse{
				EntryID:   m.Entry.ID,
				PatientID: m.Entry.PatientID,
				Priority:  m.Entry.Priority,
				Score:     m.Score,
				Breakdown: m.Breakdown,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func offerResponseHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := uuidParam(w, r, "orgID")
		if !ok {
			return
		}
		entryID, ok := uuidParam(w, r, "entryID")
		if !ok {
			return
		}
		var req OfferResponseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Accepted == nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "accepted is required")
			return
		}

		entry, err := svc.RespondToOffer(r.Context(), orgID, entryID, *req.Accepted)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var (
		blocked *availability.SlotBlockedError
		perr    *reschedule.PersistenceError
	)
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "slot_blocked", Details: err.Error(), Reason: blocked.Reason})
	case errors.As(err, &perr):
		restored := perr.Restored
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "persistence_failed", Details: perr.Err.Error(), Appointment: &restored})
	case errors.Is(err, reschedule.ErrSameSlot):
		writeError(w, http.StatusConflict, "same_slot", err.Error())
	case errors.Is(err, reschedule.ErrInvalidTransactionState):
		writeError(w, http.StatusConflict, "invalid_transaction_state", err.Error())
	case errors.Is(err, reschedule.ErrNotTracked),
		errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, waitlist.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "waitlist_entry_not_found", err.Error())
	case errors.Is(err, waitlist.ErrNoOffer):
		writeError(w, http.StatusConflict, "no_offer", err.Error())
	case errors.Is(err, waitlist.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "appointment_being_updated", "appointment is currently being updated, please retry shortly")
	case errors.Is(err, scheduling.ErrInvalidSlotMinutes):
		writeError(w, http.StatusBadRequest, "invalid_slot_minutes", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func moveParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, ok := uuidParam(w, r, "orgID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := uuidParam(w, r, "appointmentID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, id, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func dateQuery(w http.ResponseWriter, r *http.Request, name string) (calendar.Date, bool) {
	d, err := calendar.ParseDate(r.URL.Query().Get(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be YYYY-MM-DD")
		return calendar.Date{}, false
	}
	return d, true
}

// intQuery returns 0 when the parameter is absent.
func intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
