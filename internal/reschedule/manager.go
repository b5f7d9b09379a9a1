package reschedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type State string

const (
	StateIdle                State = "idle"
	StateDragging            State = "dragging"
	StatePendingConfirmation State = "pending_confirmation"
	StateSaving              State = "saving"
	StateCommitted           State = "committed"
	StateRolledBack          State = "rolled_back"
)

// Open reports whether a transaction in this state still holds the appointment.
func (s State) Open() bool {
	switch s {
	case StateDragging, StatePendingConfirmation, StateSaving:
		return true
	}
	return false
}

var (
	ErrInvalidTransactionState = errors.New("invalid transaction state")
	ErrNotTracked              = errors.New("appointment is not tracked")
	ErrSameSlot                = errors.New("target is the current slot")
)

// PersistenceError is returned after a failed save. Restored holds the
// appointment as it was before the transaction started.
type PersistenceError struct {
	AppointmentID uuid.UUID
	Restored      appointment.Appointment
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save appointment %s: %v", e.AppointmentID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Proposal is the pending move shown to the user for confirmation.
type Proposal struct {
	AppointmentID uuid.UUID               `json:"appointment_id"`
	OriginalDate  calendar.Date           `json:"original_date"`
	OriginalTime  calendar.Clock          `json:"original_time"`
	TargetDate    calendar.Date           `json:"target_date"`
	TargetTime    calendar.Clock          `json:"target_time"`
	Capacity      availability.Occupancy  `json:"capacity"`
	Conflicts     []availability.Conflict `json:"conflicts"`
}

// TargetCheck is the verdict on a drop target. Capacity and conflicts are
// advisory; only a blocked check rejects the drop.
type TargetCheck struct {
	availability.SlotCheck
	Occupancy availability.Occupancy
	Conflicts []availability.Conflict
}

type Updater interface {
	Update(ctx context.Context, id uuid.UUID, p appointment.Patch) (*appointment.Appointment, error)
}

type UpdaterFunc func(ctx context.Context, id uuid.UUID, p appointment.Patch) (*appointment.Appointment, error)

func (f UpdaterFunc) Update(ctx context.Context, id uuid.UUID, p appointment.Patch) (*appointment.Appointment, error) {
	return f(ctx, id, p)
}

type TargetChecker interface {
	CheckTarget(ctx context.Context, a appointment.Appointment, date calendar.Date, t calendar.Clock) (TargetCheck, error)
}

type TargetCheckerFunc func(ctx context.Context, a appointment.Appointment, date calendar.Date, t calendar.Clock) (TargetCheck, error)

func (f TargetCheckerFunc) CheckTarget(ctx context.Context, a appointment.Appointment, date calendar.Date, t calendar.Clock) (TargetCheck, error) {
	return f(ctx, a, date, t)
}

// VacancyHandler is told about the slot a committed move left behind.
type VacancyHandler interface {
	SlotVacated(ctx context.Context, orgID uuid.UUID, date calendar.Date, t calendar.Clock) error
}

// Observer receives the outcome of every resolved save.
type Observer interface {
	RescheduleFinished(outcome string, elapsed time.Duration)
}

type Option func(*Manager)

func WithVacancyHandler(h VacancyHandler) Option { return func(m *Manager) { m.vacancies = h } }
func WithLogger(l zerolog.Logger) Option         { return func(m *Manager) { m.logger = l } }
func WithObserver(o Observer) Option             { return func(m *Manager) { m.observer = o } }

type txn struct {
	state    State
	proposal *Proposal
	// rebook is set on the transaction opened right after a no-show; its
	// confirmation puts the appointment back to scheduled.
	rebook bool
}

// Manager owns the local appointment collection and runs at most one
// transaction per appointment. The mutex guards the maps only and is never
// held while a collaborator is called.
type Manager struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*appointment.Appointment
	txns  map[uuid.UUID]*txn

	updater   Updater
	checker   TargetChecker
	vacancies VacancyHandler
	observer  Observer
	logger    zerolog.Logger
	tracer    trace.Tracer
}

func NewManager(updater Updater, checker TargetChecker, opts ...Option) *Manager {
	m := &Manager{
		appts:   make(map[uuid.UUID]*appointment.Appointment),
		txns:    make(map[uuid.UUID]*txn),
		updater: updater,
		checker: checker,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer("clinic-scheduling/reschedule"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Track loads server copies. Appointments held by an open transaction keep
// their local value.
func (m *Manager) Track(appts ...appointment.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range appts {
		if t, ok := m.txns[a.ID]; ok && t.state.Open() {
			continue
		}
		cp := a
		m.appts[a.ID] = &cp
	}
}

// Begin opens a move for id.
func (m *Manager) Begin(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appts[id]; !ok {
		return ErrNotTracked
	}
	if t, ok := m.txns[id]; ok && t.state.Open() {
		return fmt.Errorf("%w: appointment %s is %s", ErrInvalidTransactionState, id, t.state)
	}
	m.txns[id] = &txn{state: StateDragging}
	return nil
}

// Drop validates the target and, if it is usable, stores a proposal awaiting
// confirmation. A blocked target ends the transaction with a
// *availability.SlotBlockedError.
func (m *Manager) Drop(ctx context.Context, id uuid.UUID, date calendar.Date, t calendar.Clock) (*Proposal, error) {
	m.mu.Lock()
	tx, ok := m.txns[id]
	if !ok || tx.state != StateDragging {
		err := m.stateError(id, ok, tx)
		m.mu.Unlock()
		return nil, err
	}
	source := *m.appts[id]
	m.mu.Unlock()

	if source.Date == date && source.Time == t {
		m.mu.Lock()
		if m.txns[id] == tx {
			delete(m.txns, id)
		}
		m.mu.Unlock()
		return nil, ErrSameSlot
	}

	check, err := m.checker.CheckTarget(ctx, source, date, t)
	if err != nil {
		return nil, fmt.Errorf("check target: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Cancelled or replaced while the check ran.
	if m.txns[id] != tx || tx.state != StateDragging {
		return nil, fmt.Errorf("%w: transaction for %s changed during drop", ErrInvalidTransactionState, id)
	}

	if check.Blocked {
		delete(m.txns, id)
		return nil, &availability.SlotBlockedError{Date: date, Time: t, Reason: check.Reason}
	}

	conflicts := check.Conflicts
	if conflicts == nil {
		conflicts = []availability.Conflict{}
	}
	tx.proposal = &Proposal{
		AppointmentID: id,
		OriginalDate:  source.Date,
		OriginalTime:  source.Time,
		TargetDate:    date,
		TargetTime:    t,
		Capacity:      check.Occupancy,
		Conflicts:     conflicts,
	}
	tx.state = StatePendingConfirmation

	out := *tx.proposal
	return &out, nil
}

// Cancel discards a move that has not started saving.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txns[id]
	if !ok || (tx.state != StateDragging && tx.state != StatePendingConfirmation) {
		return m.stateError(id, ok, tx)
	}
	delete(m.txns, id)
	return nil
}

// ConfirmProposal applies the pending proposal locally, persists it and
// reconciles. On failure the pre-move appointment is restored and a
// *PersistenceError is returned along with the proposal it acted on.
// The proposal is nil only when no confirmation was attempted.
func (m *Manager) ConfirmProposal(ctx context.Context, id uuid.UUID) (*appointment.Appointment, *Proposal, error) {
	m.mu.Lock()
	tx, ok := m.txns[id]
	if !ok || tx.state != StatePendingConfirmation {
		err := m.stateError(id, ok, tx)
		m.mu.Unlock()
		return nil, nil, err
	}

	current := m.appts[id]
	snapshot := *current
	p := *tx.proposal

	patch := appointment.Patch{
		Date:            &p.TargetDate,
		Time:            &p.TargetTime,
		ExpectedVersion: snapshot.Version,
	}
	current.Date = p.TargetDate
	current.Time = p.TargetTime
	if tx.rebook {
		st := appointment.StatusScheduled
		patch.Status = &st
		current.Status = st
	}
	tx.state = StateSaving
	m.mu.Unlock()

	ctx, span := m.tracer.Start(ctx, "reschedule.confirm", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
		attribute.String("target.date", p.TargetDate.String()),
		attribute.String("target.time", p.TargetTime.String()),
	))
	defer span.End()

	updated, err := m.save(ctx, tx, id, snapshot, patch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
		return nil, &p, err
	}

	m.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", p.OriginalDate.String()+" "+p.OriginalTime.String()).
		Str("to", p.TargetDate.String()+" "+p.TargetTime.String()).
		Msg("appointment rescheduled")

	if m.vacancies != nil && snapshot.HoldsBookableSlot() {
		if err := m.vacancies.SlotVacated(ctx, snapshot.OrgID, p.OriginalDate, p.OriginalTime); err != nil {
			m.logger.Warn().Err(err).
				Str("appointment_id", id.String()).
				Msg("vacated slot handler failed")
		}
	}

	return updated, &p, nil
}

// NoShowResult reports a recorded no-show and whether a follow-up move was
// opened for it.
type NoShowResult struct {
	Appointment    appointment.Appointment
	RescheduleOpen bool
}

// RecordNoShow marks the appointment as falta through the same
// snapshot/rollback pair as a move. A pending move is abandoned. With
// openReschedule a fresh move starts in Dragging after the commit.
func (m *Manager) RecordNoShow(ctx context.Context, id uuid.UUID, openReschedule bool) (*NoShowResult, error) {
	m.mu.Lock()
	current, ok := m.appts[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotTracked
	}
	if t, ok := m.txns[id]; ok && t.state == StateSaving {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: appointment %s is %s", ErrInvalidTransactionState, id, t.state)
	}

	snapshot := *current
	status := appointment.StatusNoShow
	patch := appointment.Patch{Status: &status, ExpectedVersion: snapshot.Version}
	current.Status = status

	tx := &txn{state: StateSaving}
	m.txns[id] = tx
	m.mu.Unlock()

	ctx, span := m.tracer.Start(ctx, "reschedule.no_show", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
		attribute.Bool("open_reschedule", openReschedule),
	))
	defer span.End()

	updated, err := m.save(ctx, tx, id, snapshot, patch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
		return nil, err
	}

	result := &NoShowResult{Appointment: *updated}
	if openReschedule {
		m.mu.Lock()
		if m.txns[id] == tx {
			m.txns[id] = &txn{state: StateDragging, rebook: true}
			result.RescheduleOpen = true
		}
		m.mu.Unlock()
	}

	m.logger.Info().
		Str("appointment_id", id.String()).
		Bool("open_reschedule", result.RescheduleOpen).
		Msg("no-show recorded")

	return result, nil
}

// save runs the update for a transaction already in Saving and resolves it.
func (m *Manager) save(ctx context.Context, tx *txn, id uuid.UUID, snapshot appointment.Appointment, patch appointment.Patch) (*appointment.Appointment, error) {
	start := time.Now()
	updated, err := m.updater.Update(ctx, id, patch)
	if err == nil && updated == nil {
		err = errors.New("store returned no appointment")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx.proposal = nil
	if err != nil {
		restored := snapshot
		m.appts[id] = &restored
		tx.state = StateRolledBack
		m.observe(StateRolledBack, start)

		m.logger.Warn().Err(err).
			Str("appointment_id", id.String()).
			Msg("save failed, local change rolled back")
		return nil, &PersistenceError{AppointmentID: id, Restored: snapshot, Err: err}
	}

	cp := *updated
	m.appts[id] = &cp
	tx.state = StateCommitted
	m.observe(StateCommitted, start)

	out := cp
	return &out, nil
}

func (m *Manager) observe(outcome State, start time.Time) {
	if m.observer != nil {
		m.observer.RescheduleFinished(string(outcome), time.Since(start))
	}
}

func (m *Manager) stateError(id uuid.UUID, ok bool, tx *txn) error {
	if _, tracked := m.appts[id]; !tracked {
		return ErrNotTracked
	}
	state := StateIdle
	if ok {
		state = tx.state
	}
	return fmt.Errorf("%w: appointment %s is %s", ErrInvalidTransactionState, id, state)
}

// State returns the transaction state of id, Idle when none exists.
func (m *Manager) State(id uuid.UUID) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.txns[id]; ok {
		return t.state
	}
	return StateIdle
}

func (m *Manager) Appointment(id uuid.UUID) (appointment.Appointment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[id]
	if !ok {
		return appointment.Appointment{}, false
	}
	return *a, true
}

// Appointments returns the local collection ordered by date and time.
func (m *Manager) Appointments() []appointment.Appointment {
	m.mu.Lock()
	out := make([]appointment.Appointment, 0, len(m.appts))
	for _, a := range m.appts {
		out = append(out, *a)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Pending returns the proposal awaiting confirmation, if any.
func (m *Manager) Pending(id uuid.UUID) (*Proposal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.txns[id]
	if !ok || t.proposal == nil {
		return nil, false
	}
	p := *t.proposal
	return &p, true
}
