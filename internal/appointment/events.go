package appointment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventRescheduleCommitted  = "APPOINTMENT_RESCHEDULED"
	EventRescheduleRolledBack = "APPOINTMENT_RESCHEDULE_ROLLED_BACK"
	EventNoShowRecorded       = "APPOINTMENT_NO_SHOW"
)

// EventRecorder appends audit rows to event_logs. Failures are logged and
// swallowed so auditing never fails the operation being audited.
type EventRecorder struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewEventRecorder(store Store, logger zerolog.Logger) *EventRecorder {
	return &EventRecorder{store: store, logger: logger, now: time.Now}
}

func (r *EventRecorder) Record(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	if r == nil || r.store == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     r.now(),
	}

	if err := r.store.InsertEvent(ctx, ev); err != nil {
		r.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
