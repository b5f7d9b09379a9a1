package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

const EventVacancyMatched = "waitlist.vacancy_matched"

// Candidate is one row of the call list handed to delivery.
type Candidate struct {
	Rank      int       `json:"rank"`
	EntryID   uuid.UUID `json:"entry_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Score     int       `json:"score"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type VacancyMatched struct {
	OrgID      uuid.UUID   `json:"org_id"`
	Date       string      `json:"date"`
	Time       string      `json:"time"`
	Candidates []Candidate `json:"candidates"`
}

// OutboxPublisher writes ranked matches to the outbox table. Whatever
// delivers messages reads from there.
type OutboxPublisher struct {
	db     db.Querier
	logger zerolog.Logger
}

func NewOutboxPublisher(q db.Querier, logger zerolog.Logger) *OutboxPublisher {
	return &OutboxPublisher{db: q, logger: logger}
}

func (p *OutboxPublisher) NotifyMatches(ctx context.Context, v waitlist.Vacancy, matches []waitlist.Match) error {
	event := VacancyMatched{
		OrgID:      v.OrgID,
		Date:       v.Date.String(),
		Time:       v.Time.String(),
		Candidates: make([]Candidate, 0, len(matches)),
	}
	for i, m := range matches {
		c := Candidate{
			Rank:      i + 1,
			EntryID:   m.Entry.ID,
			PatientID: m.Entry.PatientID,
			Score:     m.Score,
		}
		if m.Entry.Offer != nil {
			c.ExpiresAt = m.Entry.Offer.ExpiresAt
		}
		event.Candidates = append(event.Candidates, c)
	}

	id, err := p.Insert(ctx, v.OrgID, EventVacancyMatched, event)
	if err != nil {
		return err
	}

	p.logger.Debug().
		Str("outbox_id", id.String()).
		Str("org_id", v.OrgID.String()).
		Int("candidates", len(matches)).
		Msg("vacancy matches queued")
	return nil
}

func (p *OutboxPublisher) Insert(ctx context.Context, orgID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	id := uuid.New()
	if _, err := p.db.Exec(ctx, `
		INSERT INTO outbox (id, org_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`, id, orgID, eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox: %w", err)
	}
	return id, nil
}
