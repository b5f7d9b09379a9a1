package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

// PgStore reads configuration tables. Rows that fail validation are logged
// and skipped so one bad row cannot take scheduling down.
type PgStore struct {
	db     db.Querier
	logger zerolog.Logger
}

func NewPgStore(q db.Querier, logger zerolog.Logger) *PgStore {
	return &PgStore{db: q, logger: logger}
}

func (s *PgStore) BusinessHours(ctx context.Context, orgID uuid.UUID) ([]availability.BusinessHourRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT day_of_week, is_open, open_time, close_time, break_start, break_end
		FROM business_hours
		WHERE org_id = $1
		ORDER BY day_of_week
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query business hours: %w", err)
	}
	defer rows.Close()

	var out []availability.BusinessHourRule
	for rows.Next() {
		var (
			dow                  int
			r                    availability.BusinessHourRule
			openAt, closeAt      string
			breakStart, breakEnd *string
		)
		if err := rows.Scan(&dow, &r.IsOpen, &openAt, &closeAt, &breakStart, &breakEnd); err != nil {
			return nil, err
		}
		r.DayOfWeek = time.Weekday(dow)
		if r.Open, err = calendar.ParseClock(openAt); err != nil {
			s.skip("business_hours", err)
			continue
		}
		if r.Close, err = calendar.ParseClock(closeAt); err != nil {
			s.skip("business_hours", err)
			continue
		}
		if r.BreakStart, err = optionalClock(breakStart); err != nil {
			s.skip("business_hours", err)
			continue
		}
		if r.BreakEnd, err = optionalClock(breakEnd); err != nil {
			s.skip("business_hours", err)
			continue
		}
		if err := r.Validate(); err != nil {
			s.skip("business_hours", err)
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PgStore) BlockedTimes(ctx context.Context, orgID uuid.UUID) ([]availability.BlockedWindow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, start_date, end_date, start_time, end_time, is_recurring, recurring_days
		FROM blocked_times
		WHERE org_id = $1
		ORDER BY start_date, created_at
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query blocked times: %w", err)
	}
	defer rows.Close()

	var out []availability.BlockedWindow
	for rows.Next() {
		var (
			b                  availability.BlockedWindow
			startDate, endDate time.Time
			startTime, endTime *string
			days               []string
		)
		if err := rows.Scan(&b.ID, &b.Title, &startDate, &endDate, &startTime, &endTime, &b.IsRecurring, &days); err != nil {
			return nil, err
		}
		b.StartDate = calendar.DateOf(startDate)
		b.EndDate = calendar.DateOf(endDate)
		if b.StartTime, err = optionalClock(startTime); err != nil {
			s.skip("blocked_times", err)
			continue
		}
		if b.EndTime, err = optionalClock(endTime); err != nil {
			s.skip("blocked_times", err)
			continue
		}
		if b.RecurringDays, err = calendar.ParseWeekdays(days); err != nil {
			s.skip("blocked_times", err)
			continue
		}
		if err := b.Validate(); err != nil {
			s.skip("blocked_times", err)
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PgStore) CapacityConfig(ctx context.Context, orgID uuid.UUID) ([]availability.CapacityRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, day_of_week, start_time, end_time, max_patients
		FROM capacity_config
		WHERE org_id = $1
		ORDER BY day_of_week, start_time
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query capacity config: %w", err)
	}
	defer rows.Close()

	var out []availability.CapacityRule
	for rows.Next() {
		var (
			r          availability.CapacityRule
			dow        int
			start, end string
		)
		if err := rows.Scan(&r.ID, &dow, &start, &end, &r.MaxPatients); err != nil {
			return nil, err
		}
		r.DayOfWeek = time.Weekday(dow)
		if r.Start, err = calendar.ParseClock(start); err != nil {
			s.skip("capacity_config", err)
			continue
		}
		if r.End, err = calendar.ParseClock(end); err != nil {
			s.skip("capacity_config", err)
			continue
		}
		if r.MaxPatients <= 0 || r.Start >= r.End {
			s.skip("capacity_config", fmt.Errorf("range %s-%s max %d", r.Start, r.End, r.MaxPatients))
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PgStore) skip(table string, err error) {
	s.logger.Warn().Err(err).Str("table", table).Msg("skipping invalid configuration row")
}

func optionalClock(s *string) (*calendar.Clock, error) {
	if s == nil {
		return nil, nil
	}
	c, err := calendar.ParseClock(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
