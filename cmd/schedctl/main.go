package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/rules"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "schedctl",
		Short:        "Inspect clinic availability and the waitlist",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("org", "", "Organization id")
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(matchesCmd())
	rootCmd.AddCommand(expireCmd())
	rootCmd.AddCommand(capacityCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type env struct {
	pool   *pgxpool.Pool
	svc    *scheduling.Service
	wl     *waitlist.Service
	org    uuid.UUID
	asJSON bool
}

func (e *env) close() { e.pool.Close() }

// setup connects to Postgres and builds the scheduling service. Rule reads
// go straight to the database.
func setup(cmd *cobra.Command, needOrg bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "schedctl").Logger().Level(zerolog.WarnLevel)

	e := &env{}
	e.asJSON, _ = cmd.Flags().GetBool("json")
	if needOrg {
		raw, _ := cmd.Flags().GetString("org")
		if e.org, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("--org: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	e.pool, err = db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, err
	}

	e.wl = waitlist.NewService(
		waitlist.NewPgStore(e.pool),
		nil,
		waitlist.Config{
			MatchLimit:  cfg.WaitlistMatchLimit,
			OfferTTL:    cfg.WaitlistOfferTTL,
			MaxRefusals: cfg.WaitlistMaxRefusals,
		},
		waitlist.WithLogger(logger),
	)
	e.svc = scheduling.NewService(
		rules.NewPgStore(e.pool, logger),
		appointment.NewPgRepository(e.pool),
		e.wl,
		scheduling.Config{SlotMinutes: cfg.SlotMinutes, DefaultMaxCapacity: cfg.DefaultMaxCapacity},
		scheduling.WithLogger(logger),
	)
	return e, nil
}

func dateFlag(cmd *cobra.Command) (calendar.Date, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return calendar.DateOf(time.Now()), nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("--date: %w", err)
	}
	return d, nil
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List the slot grid for a day with occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := dateFlag(cmd)
			if err != nil {
				return err
			}
			step, _ := cmd.Flags().GetInt("slot-minutes")

			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			slots, err := e.svc.Slots(cmd.Context(), e.org, date, step)
			if err != nil {
				return err
			}
			if e.asJSON {
				return printJSON(cmd.OutOrStdout(), slots)
			}
			printSlots(cmd.OutOrStdout(), slots)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Day to inspect, YYYY-MM-DD (default today)")
	cmd.Flags().Int("slot-minutes", 0, "Slot step in minutes (default from SLOT_MINUTES)")
	return cmd
}

func matchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matches",
		Short: "Rank waitlist entries for a vacated slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := dateFlag(cmd)
			if err != nil {
				return err
			}
			rawTime, _ := cmd.Flags().GetString("time")
			at, err := calendar.ParseClock(rawTime)
			if err != nil {
				return fmt.Errorf("--time: %w", err)
			}

			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			matches, err := e.svc.Matches(cmd.Context(), e.org, date, at)
			if err != nil {
				return err
			}
			if e.asJSON {
				return printJSON(cmd.OutOrStdout(), matches)
			}
			printMatches(cmd.OutOrStdout(), matches)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Day of the vacancy, YYYY-MM-DD (default today)")
	cmd.Flags().String("time", "", "Slot time, HH:MM")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire lapsed waitlist offers once",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.wl.ExpireStaleOffers(cmd.Context())
			if err != nil {
				return fmt.Errorf("expire offers: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Expired %d offer(s).\n", n)
			return nil
		},
	}
}

func capacityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capacity",
		Short: "List capacity rows that overlap on the same weekday",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()

			overlaps, err := e.svc.CapacityOverlaps(cmd.Context(), e.org)
			if err != nil {
				return err
			}
			if e.asJSON {
				return printJSON(cmd.OutOrStdout(), overlaps)
			}
			printOverlaps(cmd.OutOrStdout(), overlaps)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSlots(w io.Writer, slots []availability.SlotView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATE\tOCCUPIED\tMAX\tOVER\tNOTE")
	for _, s := range slots {
		state := "free"
		switch {
		case s.IsOutsideBusinessHours:
			state = "closed"
		case s.IsInBreak:
			state = "break"
		case s.IsBlocked:
			state = "blocked"
		case s.Occupancy.IsFull:
			state = "full"
		case s.Occupancy.IsNearCapacity:
			state = "near"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			s.Time, state, s.Occupancy.Occupied, s.Occupancy.MaxCapacity, len(s.OverCapacity), s.BlockReason)
	}
	_ = tw.Flush()
}

func printMatches(w io.Writer, matches []waitlist.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No waitlist entries match this slot.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tPATIENT\tPRIORITY\tSCORE\tDAY\tPERIOD\tWAIT\tREFUSALS")
	for _, m := range matches {
		b := m.Breakdown
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			m.Entry.ID, m.Entry.PatientID, m.Entry.Priority, m.Score, b.Day, b.Period, b.Waiting, b.Refusals)
	}
	_ = tw.Flush()
}

func printOverlaps(w io.Writer, overlaps []availability.CapacityOverlap) {
	if len(overlaps) == 0 {
		fmt.Fprintln(w, "No overlapping capacity rows.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tFIRST\tMAX\tSECOND\tMAX")
	for _, o := range overlaps {
		fmt.Fprintf(tw, "%s\t%s-%s\t%d\t%s-%s\t%d\n",
			o.First.DayOfWeek, o.First.Start, o.First.End, o.First.MaxPatients,
			o.Second.Start, o.Second.End, o.Second.MaxPatients)
	}
	_ = tw.Flush()
}
