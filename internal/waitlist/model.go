package waitlist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// PeriodOf buckets a slot start: morning before 12, afternoon before 18,
// evening after.
func PeriodOf(c calendar.Clock) Period {
	switch h := c.Hour(); {
	case h < 12:
		return PeriodMorning
	case h < 18:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodEvening:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Bonus is the priority component of the match score. Unknown values score
// as normal.
func (p Priority) Bonus() int {
	switch p {
	case PriorityUrgent:
		return 50
	case PriorityHigh:
		return 30
	default:
		return 10
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusRemoved   Status = "removed"
	StatusScheduled Status = "scheduled"
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusActive, StatusPaused, StatusRemoved, StatusScheduled:
		return st, nil
	}
	return "", fmt.Errorf("unknown waitlist status %q", s)
}

// Terminal statuses never return to matching.
func (s Status) Terminal() bool {
	return s == StatusRemoved || s == StatusScheduled
}

var (
	ErrEntryNotFound     = errors.New("waitlist entry not found")
	ErrInvalidTransition = errors.New("invalid waitlist status transition")
	ErrNoOffer           = errors.New("waitlist entry has no outstanding offer")
)

// Offer is a slot proposed to an entry, awaiting an answer until ExpiresAt.
type Offer struct {
	Date      calendar.Date  `json:"date"`
	Time      calendar.Clock `json:"time"`
	OfferedAt time.Time      `json:"offered_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (o Offer) Expired(now time.Time) bool { return !now.Before(o.ExpiresAt) }

type Entry struct {
	ID               uuid.UUID      `json:"id"`
	OrgID            uuid.UUID      `json:"org_id"`
	PatientID        uuid.UUID      `json:"patient_id"`
	PreferredDays    []time.Weekday `json:"preferred_days"`
	PreferredPeriods []Period       `json:"preferred_periods"`
	Priority         Priority       `json:"priority"`
	Status           Status         `json:"status"`
	RefusalCount     int            `json:"refusal_count"`
	Offer            *Offer         `json:"offer,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasPendingOffer is true while an offer is out and has not expired.
func (e Entry) HasPendingOffer(now time.Time) bool {
	return e.Offer != nil && !e.Offer.Expired(now)
}

// Transition moves the entry to another status. Only active and paused may
// move back and forth; removed and scheduled are final.
func (e *Entry) Transition(to Status) error {
	if e.Status == to {
		return nil
	}
	if e.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	switch to {
	case StatusActive, StatusPaused, StatusRemoved, StatusScheduled:
		e.Status = to
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
}
