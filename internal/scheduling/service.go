package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/reschedule"
	"github.com/hackgods/clinic-scheduling/internal/rules"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

var ErrInvalidSlotMinutes = errors.New("slot minutes must be between 1 and 240")

type Config struct {
	SlotMinutes        int
	DefaultMaxCapacity int
}

// Locker guards one appointment's write across processes.
type Locker interface {
	WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error
}

// Observer collects slot and reschedule measurements.
type Observer interface {
	reschedule.Observer
	ObserveSlots(n int)
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }
func WithLocker(l Locker) Option         { return func(s *Service) { s.locker = l } }
func WithObserver(o Observer) Option     { return func(s *Service) { s.observer = o } }

// Service wires the rule store, slot generation, capacity evaluation, the
// reschedule state machine and the waitlist into one entry point.
type Service struct {
	rules    rules.Store
	appts    appointment.Store
	waitlist *waitlist.Service
	moves    *reschedule.Manager
	events   *appointment.EventRecorder
	locker   Locker
	observer Observer
	cfg      Config
	logger   zerolog.Logger
	tracer   trace.Tracer
}

func NewService(rs rules.Store, appts appointment.Store, wl *waitlist.Service, cfg Config, opts ...Option) *Service {
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = availability.DefaultSlotMinutes
	}
	if cfg.DefaultMaxCapacity <= 0 {
		cfg.DefaultMaxCapacity = availability.DefaultMaxCapacity
	}

	s := &Service{
		rules:    rs,
		appts:    appts,
		waitlist: wl,
		cfg:      cfg,
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer("clinic-scheduling/scheduling"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.events = appointment.NewEventRecorder(appts, s.logger)

	managerOpts := []reschedule.Option{
		reschedule.WithVacancyHandler(s),
		reschedule.WithLogger(s.logger),
	}
	if s.observer != nil {
		managerOpts = append(managerOpts, reschedule.WithObserver(s.observer))
	}
	s.moves = reschedule.NewManager(reschedule.UpdaterFunc(s.update), s, managerOpts...)
	return s
}

// Moves exposes the reschedule state machine for read-only queries.
func (s *Service) Moves() *reschedule.Manager { return s.moves }

func (s *Service) slotMinutes(n int) (int, error) {
	if n == 0 {
		return s.cfg.SlotMinutes, nil
	}
	if n < 0 || n > 240 {
		return 0, ErrInvalidSlotMinutes
	}
	return n, nil
}

func (s *Service) capacity(set rules.Set) availability.CapacityTable {
	return availability.NewCapacityTable(set.Capacity, s.cfg.DefaultMaxCapacity)
}

func (s *Service) logFallback(orgID uuid.UUID, date calendar.Date, set rules.Set) {
	if _, fallback := availability.ResolveRule(date.Weekday(), set.Hours); fallback {
		s.logger.Debug().
			Str("org_id", orgID.String()).
			Str("weekday", calendar.WeekdayName(date.Weekday())).
			Msg("no business hours configured, using defaults")
	}
}

// Slots generates the slot list of one date, each annotated with occupancy.
func (s *Service) Slots(ctx context.Context, orgID uuid.UUID, date calendar.Date, slotMinutes int) ([]availability.SlotView, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.slots", trace.WithAttributes(
		attribute.String("org_id", orgID.String()),
		attribute.String("date", date.String()),
	))
	defer span.End()

	step, err := s.slotMinutes(slotMinutes)
	if err != nil {
		return nil, err
	}

	set, err := rules.Load(ctx, s.rules, orgID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load rules")
		return nil, err
	}
	s.logFallback(orgID, date, set)

	appts, err := s.appts.ListByDate(ctx, orgID, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list appointments")
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	slots := availability.GenerateSlots(date, set.Hours, set.Blocks, step)
	views := availability.AnnotateSlots(date, slots, appts, s.capacity(set))
	if s.observer != nil {
		s.observer.ObserveSlots(len(views))
	}
	span.SetAttributes(attribute.Int("slots", len(views)))
	return views, nil
}

// Week lays out days consecutive dates from start on a shared time axis.
func (s *Service) Week(ctx context.Context, orgID uuid.UUID, start calendar.Date, days, slotMinutes int) ([]availability.DayGrid, error) {
	step, err := s.slotMinutes(slotMinutes)
	if err != nil {
		return nil, err
	}
	set, err := rules.Load(ctx, s.rules, orgID)
	if err != nil {
		return nil, err
	}
	return availability.GenerateWeekGrid(start, days, set.Hours, set.Blocks, step), nil
}

// Conflicts lists the patient's other appointments in orgID close to date.
func (s *Service) Conflicts(ctx context.Context, orgID, patientID uuid.UUID, date calendar.Date, exclude ...uuid.UUID) ([]availability.Conflict, error) {
	appts, err := s.appts.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	inOrg := appts[:0:0]
	for _, a := range appts {
		if a.OrgID == orgID {
			inOrg = append(inOrg, a)
		}
	}
	return availability.FindNearbyConflicts(patientID, date, inOrg, exclude...), nil
}

// CapacityOverlaps reports capacity configuration rows of orgID that cover
// the same time on the same weekday.
func (s *Service) CapacityOverlaps(ctx context.Context, orgID uuid.UUID) ([]availability.CapacityOverlap, error) {
	capacity, err := s.rules.CapacityConfig(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load capacity config: %w", err)
	}
	overlaps := availability.NewCapacityTable(capacity, s.cfg.DefaultMaxCapacity).Overlaps()
	if overlaps == nil {
		overlaps = []availability.CapacityOverlap{}
	}
	return overlaps, nil
}

// Invalidator is implemented by rule stores that cache.
type Invalidator interface {
	Invalidate(ctx context.Context, orgID uuid.UUID) error
}

// RefreshRules drops cached configuration of orgID so the next read goes to
// the database. It is a no-op for uncached stores.
func (s *Service) RefreshRules(ctx context.Context, orgID uuid.UUID) error {
	inv, ok := s.rules.(Invalidator)
	if !ok {
		return nil
	}
	if err := inv.Invalidate(ctx, orgID); err != nil {
		return err
	}
	s.logger.Info().Str("org_id", orgID.String()).Msg("rule cache invalidated")
	return nil
}

// CheckTarget validates a drop target for a, and reports the advisory
// occupancy and nearby conflicts at the target.
func (s *Service) CheckTarget(ctx context.Context, a appointment.Appointment, date calendar.Date, t calendar.Clock) (reschedule.TargetCheck, error) {
	set, err := rules.Load(ctx, s.rules, a.OrgID)
	if err != nil {
		return reschedule.TargetCheck{}, err
	}

	check := reschedule.TargetCheck{SlotCheck: availability.CheckTime(date, t, set.Hours, set.Blocks, s.cfg.SlotMinutes)}
	if check.Blocked {
		return check, nil
	}

	sameDay, err := s.appts.ListByDate(ctx, a.OrgID, date)
	if err != nil {
		return reschedule.TargetCheck{}, fmt.Errorf("list appointments: %w", err)
	}
	others := make([]appointment.Appointment, 0, len(sameDay))
	for _, other := range sameDay {
		if other.ID != a.ID {
			others = append(others, other)
		}
	}
	limit := s.capacity(set).MaxFor(date.Weekday(), t)
	check.Occupancy = availability.EvaluateSlot(t, others, limit)

	check.Conflicts, err = s.Conflicts(ctx, a.OrgID, a.PatientID, date, a.ID)
	if err != nil {
		return reschedule.TargetCheck{}, err
	}
	return check, nil
}

// SlotVacated offers a freed slot to the waitlist.
func (s *Service) SlotVacated(ctx context.Context, orgID uuid.UUID, date calendar.Date, t calendar.Clock) error {
	if s.waitlist == nil {
		return nil
	}
	_, err := s.waitlist.OfferVacancy(ctx, waitlist.Vacancy{OrgID: orgID, Date: date, Time: t})
	return err
}

// Matches ranks the waitlist for a slot without making offers.
func (s *Service) Matches(ctx context.Context, orgID uuid.UUID, date calendar.Date, t calendar.Clock) ([]waitlist.Match, error) {
	if s.waitlist == nil {
		return []waitlist.Match{}, nil
	}
	return s.waitlist.Matches(ctx, waitlist.Vacancy{OrgID: orgID, Date: date, Time: t})
}

// RespondToOffer records a patient's answer to an outstanding offer.
func (s *Service) RespondToOffer(ctx context.Context, orgID, entryID uuid.UUID, accepted bool) (*waitlist.Entry, error) {
	if s.waitlist == nil {
		return nil, waitlist.ErrEntryNotFound
	}
	return s.waitlist.Respond(ctx, orgID, entryID, accepted)
}

// update is the Updater handed to the reschedule manager.
func (s *Service) update(ctx context.Context, id uuid.UUID, p appointment.Patch) (*appointment.Appointment, error) {
	if s.locker == nil {
		return s.appts.Update(ctx, id, p)
	}
	var out *appointment.Appointment
	err := s.locker.WithAppointmentLock(ctx, id, func(ctx context.Context) error {
		var err error
		out, err = s.appts.Update(ctx, id, p)
		return err
	})
	return out, err
}
