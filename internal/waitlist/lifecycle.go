package waitlist

import (
	"fmt"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

const (
	DefaultMaxRefusals = 3
	DefaultOfferTTL    = 24 * time.Hour
)

// Response is the recorded outcome of an offer.
type Response string

const (
	ResponseAccepted Response = "accepted"
	ResponseRejected Response = "rejected"
	ResponseExpired  Response = "expired"
)

// MakeOffer attaches a slot offer to an active entry.
func (e *Entry) MakeOffer(date calendar.Date, t calendar.Clock, now time.Time, ttl time.Duration) error {
	if e.Status != StatusActive {
		return fmt.Errorf("%w: cannot offer to %s entry", ErrInvalidTransition, e.Status)
	}
	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	e.Offer = &Offer{Date: date, Time: t, OfferedAt: now, ExpiresAt: now.Add(ttl)}
	return nil
}

// ApplyResponse records the patient's answer. Accepting schedules the
// entry. Rejecting counts a refusal and removes the entry once maxRefusals
// is reached. The offer is cleared either way.
func ApplyResponse(e *Entry, accepted bool, maxRefusals int) (Response, error) {
	if e.Status.Terminal() {
		return "", fmt.Errorf("%w: entry is %s", ErrInvalidTransition, e.Status)
	}
	if maxRefusals <= 0 {
		maxRefusals = DefaultMaxRefusals
	}

	e.Offer = nil
	if accepted {
		return ResponseAccepted, e.Transition(StatusScheduled)
	}

	e.RefusalCount++
	if e.RefusalCount >= maxRefusals {
		return ResponseRejected, e.Transition(StatusRemoved)
	}
	return ResponseRejected, nil
}

// ExpireOffer treats an unanswered offer past its deadline as a refusal.
// It reports whether anything changed.
func ExpireOffer(e *Entry, now time.Time, maxRefusals int) (bool, error) {
	if e.Offer == nil || !e.Offer.Expired(now) {
		return false, nil
	}
	if _, err := ApplyResponse(e, false, maxRefusals); err != nil {
		return false, err
	}
	return true, nil
}
