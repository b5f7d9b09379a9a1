package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// seed fills one clinic with configuration, two weeks of appointments and a
// waitlist. SEED_ORG_ID reuses an existing org id.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "prod").Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "seed").Logger()

	orgID := uuid.New()
	if raw := os.Getenv("SEED_ORG_ID"); raw != "" {
		if orgID, err = uuid.Parse(raw); err != nil {
			logger.Fatal().Err(err).Msg("invalid SEED_ORG_ID")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())
	s := &seeder{pool: pool, org: orgID}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"business hours", s.businessHours},
		{"blocked times", s.blockedTimes},
		{"capacity", s.capacity},
		{"appointments", func(ctx context.Context) error { return s.appointments(ctx, 14, 40) }},
		{"waitlist", func(ctx context.Context) error { return s.waitlist(ctx, 60) }},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			logger.Fatal().Err(err).Str("step", step.name).Msg("seed failed")
		}
		logger.Info().Str("step", step.name).Msg("seeded")
	}

	logger.Info().Str("org_id", orgID.String()).Msg("seed complete")
}

type seeder struct {
	pool *pgxpool.Pool
	org  uuid.UUID
}

func (s *seeder) businessHours(ctx context.Context) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for dow := time.Sunday; dow <= time.Saturday; dow++ {
			open, closeAt := "07:00", "21:00"
			breakStart, breakEnd := ptr("12:00"), ptr("13:00")
			isOpen := true
			switch dow {
			case time.Sunday:
				isOpen = false
				breakStart, breakEnd = nil, nil
			case time.Saturday:
				closeAt = "13:00"
				breakStart, breakEnd = nil, nil
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO business_hours (org_id, day_of_week, is_open, open_time, close_time, break_start, break_end)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (org_id, day_of_week) DO UPDATE
				SET is_open = EXCLUDED.is_open, open_time = EXCLUDED.open_time, close_time = EXCLUDED.close_time,
				    break_start = EXCLUDED.break_start, break_end = EXCLUDED.break_end
			`, s.org, int(dow), isOpen, open, closeAt, breakStart, breakEnd); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *seeder) blockedTimes(ctx context.Context) error {
	today := calendar.DateOf(time.Now())
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		// weekly team meeting, partial day
		if _, err := tx.Exec(ctx, `
			INSERT INTO blocked_times (id, org_id, title, start_date, end_date, start_time, end_time, is_recurring, recurring_days)
			VALUES ($1, $2, 'Team meeting', $3, $4, '08:00', '09:00', TRUE, $5)
		`, uuid.New(), s.org, today.Time(), today.AddDays(90).Time(), []string{"wednesday"}); err != nil {
			return err
		}
		// one all-day closure
		holiday := today.AddDays(gofakeit.Number(3, 12))
		_, err := tx.Exec(ctx, `
			INSERT INTO blocked_times (id, org_id, title, start_date, end_date, is_recurring)
			VALUES ($1, $2, $3, $4, $4, FALSE)
		`, uuid.New(), s.org, "Closed: "+gofakeit.Word(), holiday.Time())
		return err
	})
}

func (s *seeder) capacity(ctx context.Context) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for dow := time.Monday; dow <= time.Friday; dow++ {
			for _, r := range []struct {
				start, end string
				max        int
			}{{"07:00", "12:00", 3}, {"13:00", "21:00", 4}} {
				if _, err := tx.Exec(ctx, `
					INSERT INTO capacity_config (id, org_id, day_of_week, start_time, end_time, max_patients)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, uuid.New(), s.org, int(dow), r.start, r.end, r.max); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *seeder) appointments(ctx context.Context, days, perDay int) error {
	statuses := []string{
		string(appointment.StatusScheduled),
		string(appointment.StatusConfirmed),
		string(appointment.StatusAwaitingConfirmation),
	}
	patients := make([]uuid.UUID, 120)
	for i := range patients {
		patients[i] = uuid.New()
	}

	start := calendar.DateOf(time.Now())
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for d := 0; d < days; d++ {
			date := start.AddDays(d)
			if date.Weekday() == time.Sunday {
				continue
			}
			for i := 0; i < perDay; i++ {
				at := calendar.NewClock(gofakeit.Number(7, 19), 30*gofakeit.Number(0, 1))
				var notes *string
				if gofakeit.Number(0, 4) == 0 {
					notes = ptr("Follow-up with " + gofakeit.Name())
				}
				if _, err := tx.Exec(ctx, `
					INSERT INTO appointments (id, org_id, patient_id, date, time, duration_minutes, status, payment_status, notes)
					VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
				`, uuid.New(), s.org, patients[gofakeit.Number(0, len(patients)-1)], date.Time(), at.String(),
					[]int{30, 45, 60}[gofakeit.Number(0, 2)], gofakeit.RandomString(statuses), notes); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *seeder) waitlist(ctx context.Context, count int) error {
	days := []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	periods := []string{string(waitlist.PeriodMorning), string(waitlist.PeriodAfternoon), string(waitlist.PeriodEvening)}
	priorities := []string{string(waitlist.PriorityNormal), string(waitlist.PriorityNormal), string(waitlist.PriorityHigh), string(waitlist.PriorityUrgent)}

	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			createdAt := time.Now().Add(-time.Duration(gofakeit.Number(0, 45*24)) * time.Hour)
			if _, err := tx.Exec(ctx, `
				INSERT INTO waitlist (id, org_id, patient_id, preferred_days, preferred_periods, priority, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, 'active', $7, $7)
			`, uuid.New(), s.org, uuid.New(), s.pick(days), s.pick(periods), gofakeit.RandomString(priorities), createdAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// pick returns a random subset of from, empty about a third of the time.
func (s *seeder) pick(from []string) []string {
	out := []string{}
	if gofakeit.Number(0, 2) == 0 {
		return out
	}
	for _, v := range from {
		if gofakeit.Bool() {
			out = append(out, v)
		}
	}
	return out
}

func ptr(s string) *string { return &s }
