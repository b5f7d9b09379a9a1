package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// DefaultMaxCapacity applies when an organization has no capacity configuration.
const DefaultMaxCapacity = 4

const nearCapacityRatio = 0.75

// Occupancy is advisory: a full slot stays selectable.
type Occupancy struct {
	Occupied       int  `json:"occupied"`
	Available      int  `json:"available"`
	MaxCapacity    int  `json:"max_capacity"`
	IsFull         bool `json:"is_full"`
	IsNearCapacity bool `json:"is_near_capacity"`
}

// EvaluateSlot counts appointments holding exactly slot time t.
func EvaluateSlot(t calendar.Clock, appointments []appointment.Appointment, maxCapacity int) Occupancy {
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}

	occupied := 0
	for _, a := range appointments {
		if a.Occupies() && a.Time == t {
			occupied++
		}
	}

	available := maxCapacity - occupied
	if available < 0 {
		available = 0
	}

	return Occupancy{
		Occupied:       occupied,
		Available:      available,
		MaxCapacity:    maxCapacity,
		IsFull:         occupied >= maxCapacity,
		IsNearCapacity: float64(occupied) >= nearCapacityRatio*float64(maxCapacity),
	}
}

// CapacityRule is one row of the capacity configuration table.
type CapacityRule struct {
	ID          uuid.UUID      `json:"id"`
	DayOfWeek   time.Weekday   `json:"day_of_week"`
	Start       calendar.Clock `json:"start_time"`
	End         calendar.Clock `json:"end_time"`
	MaxPatients int            `json:"max_patients"`
}

func (r CapacityRule) contains(t calendar.Clock) bool {
	return t >= r.Start && t < r.End
}

func (r CapacityRule) overlaps(start, end calendar.Clock) bool {
	return r.Start < end && r.End > start
}

// CapacityTable resolves max patients per weekday and time range.
type CapacityTable struct {
	Rules   []CapacityRule
	Default int
}

func NewCapacityTable(rules []CapacityRule, def int) CapacityTable {
	if def <= 0 {
		def = DefaultMaxCapacity
	}
	return CapacityTable{Rules: rules, Default: def}
}

func (c CapacityTable) fallback() int {
	if c.Default <= 0 {
		return DefaultMaxCapacity
	}
	return c.Default
}

// MaxFor matches the slot start against configured ranges. When ranges
// overlap the most restrictive one wins.
func (c CapacityTable) MaxFor(wd time.Weekday, t calendar.Clock) int {
	best, found := 0, false
	for _, r := range c.Rules {
		if r.DayOfWeek != wd || !r.contains(t) {
			continue
		}
		if !found || r.MaxPatients < best {
			best, found = r.MaxPatients, true
		}
	}
	if !found {
		return c.fallback()
	}
	return best
}

// MinForInterval is the smallest capacity among ranges touching
// [t, t+minutes).
func (c CapacityTable) MinForInterval(wd time.Weekday, t calendar.Clock, minutes int) int {
	if minutes <= 0 {
		minutes = 1
	}
	end := t.Add(minutes)
	best, found := 0, false
	for _, r := range c.Rules {
		if r.DayOfWeek != wd || !r.overlaps(t, end) {
			continue
		}
		if !found || r.MaxPatients < best {
			best, found = r.MaxPatients, true
		}
	}
	if !found {
		return c.fallback()
	}
	return best
}

// CapacityOverlap is a pair of configuration rows covering the same time.
type CapacityOverlap struct {
	First  CapacityRule `json:"first"`
	Second CapacityRule `json:"second"`
}

// Overlaps lists configuration rows that overlap on the same weekday.
func (c CapacityTable) Overlaps() []CapacityOverlap {
	var out []CapacityOverlap
	for i := 0; i < len(c.Rules); i++ {
		for j := i + 1; j < len(c.Rules); j++ {
			a, b := c.Rules[i], c.Rules[j]
			if a.DayOfWeek == b.DayOfWeek && a.overlaps(b.Start, b.End) {
				out = append(out, CapacityOverlap{First: a, Second: b})
			}
		}
	}
	return out
}

// OverCapacityIDs sweeps each day in start order and marks every appointment
// that pushes concurrent occupancy above the capacity of its interval, plus
// any appointment explicitly flagged as over capacity.
func OverCapacityIDs(appointments []appointment.Appointment, table CapacityTable) map[uuid.UUID]bool {
	byDate := make(map[calendar.Date][]appointment.Appointment)
	for _, a := range appointments {
		if !a.Occupies() {
			continue
		}
		byDate[a.Date] = append(byDate[a.Date], a)
	}

	result := make(map[uuid.UUID]bool)
	for date, day := range byDate {
		sort.SliceStable(day, func(i, j int) bool {
			if day[i].Time != day[j].Time {
				return day[i].Time < day[j].Time
			}
			return day[i].ID.String() < day[j].ID.String()
		})

		var activeEnds []calendar.Clock
		for _, a := range day {
			kept := activeEnds[:0]
			for _, end := range activeEnds {
				if end > a.Time {
					kept = append(kept, end)
				}
			}
			activeEnds = kept

			limit := table.MinForInterval(date.Weekday(), a.Time, a.Duration())
			if a.FlaggedOverCapacity() || len(activeEnds)+1 > limit {
				result[a.ID] = true
			}
			activeEnds = append(activeEnds, a.End())
		}
	}
	return result
}

// SlotView is a generated slot with its occupancy. OverCapacity lists the
// appointments starting in the slot that exceed configured capacity.
type SlotView struct {
	TimeSlot
	Occupancy    Occupancy   `json:"occupancy"`
	OverCapacity []uuid.UUID `json:"over_capacity,omitempty"`
}

// AnnotateSlots attaches occupancy and over-capacity marks to each slot of
// date.
func AnnotateSlots(date calendar.Date, slots []TimeSlot, appointments []appointment.Appointment, table CapacityTable) []SlotView {
	over := OverCapacityIDs(appointments, table)

	out := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		limit := table.MaxFor(date.Weekday(), s.Time)
		view := SlotView{TimeSlot: s, Occupancy: EvaluateSlot(s.Time, appointments, limit)}
		for _, a := range appointments {
			if a.Date == date && a.Time == s.Time && over[a.ID] {
				view.OverCapacity = append(view.OverCapacity, a.ID)
			}
		}
		out = append(out, view)
	}
	return out
}
