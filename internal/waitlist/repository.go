package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// Store is the persistence collaborator for waitlist entries.
type Store interface {
	ListActive(ctx context.Context, orgID uuid.UUID) ([]Entry, error)
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)

	// RecordOffer stores the outstanding offer on the entry and appends it
	// to the offer history.
	RecordOffer(ctx context.Context, entryID uuid.UUID, offer Offer) error

	// RecordResponse persists the entry's new status, refusal count and
	// cleared offer, and closes the pending offer history row.
	RecordResponse(ctx context.Context, e Entry, response Response) error

	ListExpiredOffers(ctx context.Context, now time.Time) ([]Entry, error)
}

// Vacancy is a freed slot being offered to the waitlist.
type Vacancy struct {
	OrgID uuid.UUID      `json:"org_id"`
	Date  calendar.Date  `json:"date"`
	Time  calendar.Clock `json:"time"`
}

// Notifier delivers the ranked call list. Delivery itself happens elsewhere.
type Notifier interface {
	NotifyMatches(ctx context.Context, v Vacancy, matches []Match) error
}
