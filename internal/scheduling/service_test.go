package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/reschedule"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

var (
	monday    = calendar.MustParseDate("2024-01-08")
	tuesday   = calendar.MustParseDate("2024-01-09")
	wednesday = calendar.MustParseDate("2024-01-10")
	nineAM    = calendar.MustParseClock("09:00")
	twoPM     = calendar.MustParseClock("14:00")
	now       = time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC)
)

type memRules struct {
	hours    []availability.BusinessHourRule
	blocks   []availability.BlockedWindow
	capacity []availability.CapacityRule
}

func (r *memRules) BusinessHours(context.Context, uuid.UUID) ([]availability.BusinessHourRule, error) {
	return r.hours, nil
}

func (r *memRules) BlockedTimes(context.Context, uuid.UUID) ([]availability.BlockedWindow, error) {
	return r.blocks, nil
}

func (r *memRules) CapacityConfig(context.Context, uuid.UUID) ([]availability.CapacityRule, error) {
	return r.capacity, nil
}

type memAppointments struct {
	mu      sync.Mutex
	appts   map[uuid.UUID]appointment.Appointment
	events  []appointment.EventLog
	failing error
}

func newMemAppointments(appts ...appointment.Appointment) *memAppointments {
	s := &memAppointments{appts: map[uuid.UUID]appointment.Appointment{}}
	for _, a := range appts {
		s.appts[a.ID] = a
	}
	return s
}

func (s *memAppointments) Get(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *memAppointments) ListByDate(_ context.Context, orgID uuid.UUID, date calendar.Date) ([]appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range s.appts {
		if a.OrgID == orgID && a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAppointments) ListByPatient(_ context.Context, patientID uuid.UUID) ([]appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appointment.Appointment
	for _, a := range s.appts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memAppointments) Update(_ context.Context, id uuid.UUID, p appointment.Patch) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return nil, s.failing
	}
	a, ok := s.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if a.Version != p.ExpectedVersion {
		return nil, appointment.ErrStaleVersion
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	a.Version++
	s.appts[id] = a
	return &a, nil
}

func (s *memAppointments) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *memAppointments) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

type memWaitlist struct {
	mu      sync.Mutex
	entries []waitlist.Entry
}

func (s *memWaitlist) ListActive(_ context.Context, orgID uuid.UUID) ([]waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []waitlist.Entry
	for _, e := range s.entries {
		if e.OrgID == orgID && e.Status == waitlist.StatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memWaitlist) Get(_ context.Context, id uuid.UUID) (*waitlist.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, waitlist.ErrEntryNotFound
}

func (s *memWaitlist) RecordOffer(_ context.Context, id uuid.UUID, offer waitlist.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].Offer = &offer
			return nil
		}
	}
	return waitlist.ErrEntryNotFound
}

func (s *memWaitlist) RecordResponse(_ context.Context, e waitlist.Entry, _ waitlist.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == e.ID {
			s.entries[i] = e
			return nil
		}
	}
	return waitlist.ErrEntryNotFound
}

func (s *memWaitlist) ListExpiredOffers(context.Context, time.Time) ([]waitlist.Entry, error) {
	return nil, nil
}

type captureNotifier struct {
	vacancies []waitlist.Vacancy
	matches   [][]waitlist.Match
}

func (n *captureNotifier) NotifyMatches(_ context.Context, v waitlist.Vacancy, m []waitlist.Match) error {
	n.vacancies = append(n.vacancies, v)
	n.matches = append(n.matches, m)
	return nil
}

type slotCounter struct {
	slots    int
	outcomes []string
}

func (c *slotCounter) ObserveSlots(n int)                                 { c.slots += n }
func (c *slotCounter) RescheduleFinished(outcome string, _ time.Duration) { c.outcomes = append(c.outcomes, outcome) }

type fixture struct {
	org      uuid.UUID
	appt     appointment.Appointment
	appts    *memAppointments
	rules    *memRules
	wl       *memWaitlist
	notifier *captureNotifier
	observer *slotCounter
	svc      *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	org := uuid.New()
	appt := appointment.Appointment{
		ID:              uuid.New(),
		OrgID:           org,
		PatientID:       uuid.New(),
		Date:            monday,
		Time:            nineAM,
		DurationMinutes: 60,
		Status:          appointment.StatusScheduled,
		PaymentStatus:   appointment.PaymentPending,
		Version:         1,
	}

	f := &fixture{
		org:      org,
		appt:     appt,
		appts:    newMemAppointments(appt),
		rules:    &memRules{},
		notifier: &captureNotifier{},
		observer: &slotCounter{},
		wl: &memWaitlist{entries: []waitlist.Entry{
			{ID: uuid.New(), OrgID: org, PatientID: uuid.New(), Priority: waitlist.PriorityHigh, Status: waitlist.StatusActive, CreatedAt: now.Add(-48 * time.Hour)},
			{ID: uuid.New(), OrgID: org, PatientID: uuid.New(), Priority: waitlist.PriorityNormal, Status: waitlist.StatusActive, CreatedAt: now.Add(-24 * time.Hour)},
		}},
	}

	wl := waitlist.NewService(f.wl, f.notifier, waitlist.Config{}, waitlist.WithClock(func() time.Time { return now }))
	opts = append([]Option{WithObserver(f.observer)}, opts...)
	f.svc = NewService(f.rules, f.appts, wl, Config{}, opts...)
	return f
}

func TestScenarioD_MoveCommitsAndReoffersVacatedSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	p, err := f.svc.DropMove(ctx, f.org, f.appt.ID, monday, twoPM)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Capacity.Occupied)
	assert.Equal(t, 4, p.Capacity.MaxCapacity)

	updated, err := f.svc.ConfirmMove(ctx, f.org, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, twoPM, updated.Time)
	assert.Equal(t, 2, updated.Version)

	local, ok := f.svc.Moves().Appointment(f.appt.ID)
	require.True(t, ok)
	assert.Equal(t, twoPM, local.Time)
	assert.Equal(t, reschedule.StateCommitted, f.svc.Moves().State(f.appt.ID))

	require.Len(t, f.notifier.vacancies, 1)
	assert.Equal(t, waitlist.Vacancy{OrgID: f.org, Date: monday, Time: nineAM}, f.notifier.vacancies[0])
	assert.Len(t, f.notifier.matches[0], 2)

	matches, err := f.svc.Matches(ctx, f.org, monday, nineAM)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, waitlist.PriorityHigh, matches[0].Entry.Priority)

	assert.Equal(t, []string{appointment.EventRescheduleCommitted}, f.appts.eventTypes())
	assert.Equal(t, []string{string(reschedule.StateCommitted)}, f.observer.outcomes)
}

func TestConfirmMove_RollbackRestoresAndRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	_, err := f.svc.DropMove(ctx, f.org, f.appt.ID, monday, twoPM)
	require.NoError(t, err)

	f.appts.failing = errors.New("connection reset")
	_, err = f.svc.ConfirmMove(ctx, f.org, f.appt.ID)

	var perr *reschedule.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, nineAM, perr.Restored.Time)

	local, _ := f.svc.Moves().Appointment(f.appt.ID)
	assert.Equal(t, f.appt, local)
	assert.Empty(t, f.notifier.vacancies)
	assert.Equal(t, []string{appointment.EventRescheduleRolledBack}, f.appts.eventTypes())
}

func TestConfirmMove_RacingDropNeverLosesTheProposal(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.DropMove(ctx, f.org, f.appt.ID, monday, twoPM)
		}()
		_, err := f.svc.ConfirmMove(ctx, f.org, f.appt.ID)
		wg.Wait()

		if err != nil {
			assert.ErrorIs(t, err, reschedule.ErrInvalidTransactionState)
			assert.Empty(t, f.appts.eventTypes())
			continue
		}
		require.Len(t, f.appts.events, 1)
		assert.Contains(t, string(f.appts.events[0].Payload), `"to_time":"14:00"`)
	}
}

func TestDropMove_BlockedTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rules.blocks = []availability.BlockedWindow{{
		ID:        uuid.New(),
		Title:     "Staff training",
		StartDate: monday,
		EndDate:   monday,
		StartTime: calendar.ClockPtr("14:00"),
		EndTime:   calendar.ClockPtr("16:00"),
	}}

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	_, err := f.svc.DropMove(ctx, f.org, f.appt.ID, monday, twoPM)

	var blocked *availability.SlotBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "Staff training", blocked.Reason)
	assert.Equal(t, reschedule.StateIdle, f.svc.Moves().State(f.appt.ID))
}

func TestDropMove_RejectsTimesOffTheSlotGrid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, tt := range []struct{ at, reason string }{
		{"20:59", availability.ReasonOutsideHours},
		{"07:13", availability.ReasonOffGrid},
	} {
		require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
		_, err := f.svc.DropMove(ctx, f.org, f.appt.ID, monday, calendar.MustParseClock(tt.at))

		var blocked *availability.SlotBlockedError
		require.ErrorAs(t, err, &blocked, tt.at)
		assert.Equal(t, tt.reason, blocked.Reason)
		assert.Equal(t, reschedule.StateIdle, f.svc.Moves().State(f.appt.ID))
	}
}

func TestDropMove_ReportsCapacityAndConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rules.capacity = []availability.CapacityRule{{
		DayOfWeek:   time.Tuesday,
		Start:       calendar.MustParseClock("13:00"),
		End:         calendar.MustParseClock("18:00"),
		MaxPatients: 2,
	}}

	other := f.appt
	other.ID = uuid.New()
	other.PatientID = uuid.New()
	other.Date = tuesday
	other.Time = twoPM
	sameWeek := f.appt
	sameWeek.ID = uuid.New()
	sameWeek.Date = wednesday
	f.appts.appts[other.ID] = other
	f.appts.appts[sameWeek.ID] = sameWeek

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	p, err := f.svc.DropMove(ctx, f.org, f.appt.ID, tuesday, twoPM)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Capacity.Occupied)
	assert.Equal(t, 2, p.Capacity.MaxCapacity)
	assert.False(t, p.Capacity.IsNearCapacity)
	assert.False(t, p.Capacity.IsFull)

	require.Len(t, p.Conflicts, 1)
	assert.Equal(t, sameWeek.ID, p.Conflicts[0].AppointmentID)
	assert.Equal(t, 1, p.Conflicts[0].DaysApart)
}

func TestBeginMove_OtherOrgIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.svc.BeginMove(ctx, uuid.New(), f.appt.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	_, err = f.svc.DropMove(ctx, uuid.New(), f.appt.ID, monday, twoPM)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
	assert.ErrorIs(t, f.svc.CancelMove(uuid.New(), f.appt.ID), appointment.ErrAppointmentNotFound)
	assert.NoError(t, f.svc.CancelMove(f.org, f.appt.ID))
}

func TestRecordNoShow_OpensFollowUpMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.RecordNoShow(ctx, f.org, f.appt.ID, true)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusNoShow, res.Appointment.Status)
	assert.True(t, res.RescheduleOpen)
	assert.Equal(t, reschedule.StateDragging, f.svc.Moves().State(f.appt.ID))

	_, err = f.svc.DropMove(ctx, f.org, f.appt.ID, tuesday, twoPM)
	require.NoError(t, err)
	rebooked, err := f.svc.ConfirmMove(ctx, f.org, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, rebooked.Status)
	assert.Equal(t, tuesday, rebooked.Date)

	// the no-show had already released 09:00, so nothing is re-offered
	assert.Empty(t, f.notifier.vacancies)
	assert.Equal(t, []string{appointment.EventNoShowRecorded, appointment.EventRescheduleCommitted}, f.appts.eventTypes())
}

func TestSlots_AnnotatesOccupancy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rules.capacity = []availability.CapacityRule{{
		DayOfWeek:   time.Monday,
		Start:       calendar.MustParseClock("08:00"),
		End:         calendar.MustParseClock("12:00"),
		MaxPatients: 1,
	}}

	views, err := f.svc.Slots(ctx, f.org, monday, 0)
	require.NoError(t, err)
	require.Len(t, views, 28) // default Monday 07:00-21:00
	assert.Equal(t, 28, f.observer.slots)

	var nine availability.SlotView
	for _, v := range views {
		if v.Time == nineAM {
			nine = v
		}
	}
	assert.True(t, nine.IsAvailable)
	assert.Equal(t, 1, nine.Occupancy.Occupied)
	assert.True(t, nine.Occupancy.IsFull)
	assert.Equal(t, 0, nine.Occupancy.Available)
}

func TestSlots_RejectsBadStep(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Slots(context.Background(), f.org, monday, -5)
	assert.ErrorIs(t, err, ErrInvalidSlotMinutes)
}

func TestWeek_SharedAxis(t *testing.T) {
	f := newFixture(t)
	grid, err := f.svc.Week(context.Background(), f.org, calendar.MustParseDate("2024-01-13"), 2, 60)
	require.NoError(t, err)
	require.Len(t, grid, 2)

	saturday, sunday := grid[0], grid[1]
	assert.False(t, saturday.Closed)
	assert.True(t, sunday.Closed)
	assert.Len(t, saturday.Slots, 6) // 07:00-13:00
	assert.Len(t, sunday.Slots, 6)
	assert.True(t, sunday.Slots[0].IsOutsideBusinessHours)
}

type recordingLocker struct {
	locked []uuid.UUID
	err    error
}

func (l *recordingLocker) WithAppointmentLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	l.locked = append(l.locked, id)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func TestConfirmMove_UsesAppointmentLock(t *testing.T) {
	ctx := context.Background()
	locker := &recordingLocker{}
	f := newFixture(t, WithLocker(locker))

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	_, err := f.svc.DropMove(ctx, f.org, f.appt.ID, monday, twoPM)
	require.NoError(t, err)
	_, err = f.svc.ConfirmMove(ctx, f.org, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.appt.ID}, locker.locked)
}

func TestConfirmMove_LockContentionRollsBack(t *testing.T) {
	ctx := context.Background()
	busy := errors.New("appointment lock not acquired")
	f := newFixture(t, WithLocker(&recordingLocker{err: busy}))

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	_, err := f.svc.DropMove(ctx, f.org, f.appt.ID, monday, twoPM)
	require.NoError(t, err)
	_, err = f.svc.ConfirmMove(ctx, f.org, f.appt.ID)
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, reschedule.StateRolledBack, f.svc.Moves().State(f.appt.ID))

	stored, err := f.appts.Get(ctx, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, nineAM, stored.Time)
}

func TestMoveStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.MoveStatus(f.org, f.appt.ID)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	require.NoError(t, f.svc.BeginMove(ctx, f.org, f.appt.ID))
	_, err = f.svc.DropMove(ctx, f.org, f.appt.ID, monday, twoPM)
	require.NoError(t, err)

	st, err := f.svc.MoveStatus(f.org, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, reschedule.StatePendingConfirmation, st.State)
	require.NotNil(t, st.Proposal)
	assert.Equal(t, twoPM, st.Proposal.TargetTime)
	assert.Equal(t, nineAM, st.Appointment.Time)
}

func TestConflicts_IgnoresOtherOrgs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	elsewhere := f.appt
	elsewhere.ID = uuid.New()
	elsewhere.OrgID = uuid.New()
	elsewhere.Date = wednesday
	f.appts.appts[elsewhere.ID] = elsewhere

	conflicts, err := f.svc.Conflicts(ctx, f.org, f.appt.PatientID, tuesday)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, f.appt.ID, conflicts[0].AppointmentID)

	conflicts, err = f.svc.Conflicts(ctx, elsewhere.OrgID, f.appt.PatientID, tuesday)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, elsewhere.ID, conflicts[0].AppointmentID)
}

func TestRespondToOffer_OtherOrgIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entry := f.wl.entries[0]

	_, err := f.svc.RespondToOffer(ctx, uuid.New(), entry.ID, true)
	assert.ErrorIs(t, err, waitlist.ErrEntryNotFound)

	_, err = f.svc.RespondToOffer(ctx, f.org, entry.ID, true)
	assert.ErrorIs(t, err, waitlist.ErrNoOffer)
}

func TestCapacityOverlaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	overlaps, err := f.svc.CapacityOverlaps(ctx, f.org)
	require.NoError(t, err)
	assert.NotNil(t, overlaps)
	assert.Empty(t, overlaps)

	f.rules.capacity = []availability.CapacityRule{
		{DayOfWeek: time.Monday, Start: calendar.MustParseClock("08:00"), End: calendar.MustParseClock("12:00"), MaxPatients: 3},
		{DayOfWeek: time.Monday, Start: calendar.MustParseClock("11:00"), End: calendar.MustParseClock("14:00"), MaxPatients: 2},
		{DayOfWeek: time.Tuesday, Start: calendar.MustParseClock("11:00"), End: calendar.MustParseClock("14:00"), MaxPatients: 2},
	}
	overlaps, err = f.svc.CapacityOverlaps(ctx, f.org)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, 3, overlaps[0].First.MaxPatients)
	assert.Equal(t, 2, overlaps[0].Second.MaxPatients)
}

type invalidatingRules struct {
	*memRules
	invalidated []uuid.UUID
}

func (r *invalidatingRules) Invalidate(_ context.Context, orgID uuid.UUID) error {
	r.invalidated = append(r.invalidated, orgID)
	return nil
}

func TestRefreshRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.RefreshRules(ctx, f.org), "uncached stores have nothing to drop")

	cached := &invalidatingRules{memRules: &memRules{}}
	svc := NewService(cached, f.appts, nil, Config{})
	require.NoError(t, svc.RefreshRules(ctx, f.org))
	assert.Equal(t, []uuid.UUID{f.org}, cached.invalidated)
}

func TestSlots_ReportsOverCapacityAppointments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rules.capacity = []availability.CapacityRule{{
		DayOfWeek:   time.Monday,
		Start:       calendar.MustParseClock("09:00"),
		End:         calendar.MustParseClock("10:00"),
		MaxPatients: 1,
	}}
	extra := f.appt
	extra.ID = uuid.New()
	extra.PatientID = uuid.New()
	f.appts.appts[extra.ID] = extra

	views, err := f.svc.Slots(ctx, f.org, monday, 0)
	require.NoError(t, err)
	for _, v := range views {
		if v.Time == nineAM {
			assert.Len(t, v.OverCapacity, 1)
			assert.True(t, v.Occupancy.IsFull)
			continue
		}
		assert.Empty(t, v.OverCapacity, v.Time.String())
	}
}
