package availability

import (
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// NearbyDays is the window, in calendar days either side, flagged as a
// possible duplicate visit.
const NearbyDays = 1

// Conflict is advisory and never blocks scheduling.
type Conflict struct {
	AppointmentID uuid.UUID          `json:"appointment_id"`
	Date          calendar.Date      `json:"date"`
	Time          calendar.Clock     `json:"time"`
	Status        appointment.Status `json:"status"`
	DaysApart     int                `json:"days_apart"`
}

// FindNearbyConflicts flags the patient's other non-cancelled appointments within
// NearbyDays of candidate. IDs in exclude (the appointment being moved) are
// skipped.
func FindNearbyConflicts(patientID uuid.UUID, candidate calendar.Date, appointments []appointment.Appointment, exclude ...uuid.UUID) []Conflict {
	skip := make(map[uuid.UUID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	conflicts := []Conflict{}
	for _, a := range appointments {
		if a.PatientID != patientID || !a.Occupies() {
			continue
		}
		if _, ok := skip[a.ID]; ok {
			continue
		}
		diff := candidate.DaysUntil(a.Date)
		if diff < 0 {
			diff = -diff
		}
		if diff <= NearbyDays {
			conflicts = append(conflicts, Conflict{
				AppointmentID: a.ID,
				Date:          a.Date,
				Time:          a.Time,
				Status:        a.Status,
				DaysApart:     diff,
			})
		}
	}
	return conflicts
}
