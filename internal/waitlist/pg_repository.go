package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgStore struct {
	db db.Querier
}

func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{db: q}
}

const entryColumns = `id, org_id, patient_id, preferred_days, preferred_periods, priority, status,
		       refusal_count, offered_date, offered_time, offered_at, offer_expires_at,
		       created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e           Entry
		days        []string
		periods     []string
		offeredDate *time.Time
		offeredTime *string
		offeredAt   *time.Time
		expiresAt   *time.Time
	)

	err := row.Scan(
		&e.ID,
		&e.OrgID,
		&e.PatientID,
		&days,
		&periods,
		&e.Priority,
		&e.Status,
		&e.RefusalCount,
		&offeredDate,
		&offeredTime,
		&offeredAt,
		&expiresAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	if e.PreferredDays, err = calendar.ParseWeekdays(days); err != nil {
		return nil, fmt.Errorf("waitlist entry %s: %w", e.ID, err)
	}
	e.PreferredPeriods = make([]Period, 0, len(periods))
	for _, s := range periods {
		p, err := ParsePeriod(s)
		if err != nil {
			return nil, fmt.Errorf("waitlist entry %s: %w", e.ID, err)
		}
		e.PreferredPeriods = append(e.PreferredPeriods, p)
	}

	if offeredDate != nil && offeredTime != nil && expiresAt != nil {
		at, err := calendar.ParseClock(*offeredTime)
		if err != nil {
			return nil, fmt.Errorf("waitlist entry %s: %w", e.ID, err)
		}
		o := Offer{Date: calendar.DateOf(*offeredDate), Time: at, ExpiresAt: *expiresAt}
		if offeredAt != nil {
			o.OfferedAt = *offeredAt
		}
		e.Offer = &o
	}
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListActive returns active entries in creation order, which is the order
// ties are broken in when ranking.
func (s *PgStore) ListActive(ctx context.Context, orgID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist
		WHERE org_id = $1 AND status = 'active'
		ORDER BY created_at, id
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list active waitlist: %w", err)
	}
	return scanEntries(rows)
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (s *PgStore) RecordOffer(ctx context.Context, entryID uuid.UUID, offer Offer) error {
	return db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE waitlist
			SET offered_date = $2,
			    offered_time = $3,
			    offered_at = $4,
			    offer_expires_at = $5,
			    updated_at = now()
			WHERE id = $1 AND status = 'active'
		`, entryID, offer.Date.Time(), offer.Time.String(), offer.OfferedAt, offer.ExpiresAt)
		if err != nil {
			return fmt.Errorf("update waitlist offer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrEntryNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO waitlist_offers (entry_id, offered_date, offered_time, response, expires_at, created_at)
			VALUES ($1, $2, $3, 'pending', $4, $5)
		`, entryID, offer.Date.Time(), offer.Time.String(), offer.ExpiresAt, offer.OfferedAt)
		if err != nil {
			return fmt.Errorf("insert waitlist offer: %w", err)
		}
		return nil
	})
}

func (s *PgStore) RecordResponse(ctx context.Context, e Entry, response Response) error {
	return db.InTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE waitlist
			SET status = $2,
			    refusal_count = $3,
			    offered_date = NULL,
			    offered_time = NULL,
			    offered_at = NULL,
			    offer_expires_at = NULL,
			    updated_at = now()
			WHERE id = $1
		`, e.ID, string(e.Status), e.RefusalCount)
		if err != nil {
			return fmt.Errorf("update waitlist entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrEntryNotFound
		}

		_, err = tx.Exec(ctx, `
			UPDATE waitlist_offers
			SET response = $2, responded_at = now()
			WHERE entry_id = $1 AND response = 'pending'
		`, e.ID, string(response))
		if err != nil {
			return fmt.Errorf("close waitlist offer: %w", err)
		}
		return nil
	})
}

func (s *PgStore) ListExpiredOffers(ctx context.Context, now time.Time) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist
		WHERE status = 'active'
		  AND offer_expires_at IS NOT NULL
		  AND offer_expires_at <= $1
		ORDER BY offer_expires_at
		LIMIT 500
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired offers: %w", err)
	}
	return scanEntries(rows)
}
