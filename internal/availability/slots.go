package availability

import (
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

const (
	DefaultSlotMinutes = 30

	ReasonOutsideHours = "outside business hours"
	ReasonBreak        = "break"
	ReasonOffGrid      = "not a slot start"
)

// TimeSlot is a derived, per-render candidate start time.
type TimeSlot struct {
	Time                   calendar.Clock `json:"time"`
	IsAvailable            bool           `json:"is_available"`
	IsBlocked              bool           `json:"is_blocked"`
	BlockReason            string         `json:"block_reason,omitempty"`
	IsInBreak              bool           `json:"is_in_break"`
	IsOutsideBusinessHours bool           `json:"is_outside_business_hours"`
}

// GenerateSlots walks the opening hours of date in steps of slotMinutes.
// The last slot always ends at or before close; partial slots are dropped.
func GenerateSlots(date calendar.Date, rules []BusinessHourRule, blocks []BlockedWindow, slotMinutes int) []TimeSlot {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}

	rule, _ := ResolveRule(date.Weekday(), rules)
	if !rule.IsOpen {
		return []TimeSlot{}
	}

	slots := make([]TimeSlot, 0, int(rule.Close-rule.Open)/slotMinutes)
	for t := rule.Open; t.Add(slotMinutes) <= rule.Close; t = t.Add(slotMinutes) {
		slots = append(slots, buildSlot(date, t, rule, blocks))
	}
	return slots
}

func buildSlot(date calendar.Date, t calendar.Clock, rule BusinessHourRule, blocks []BlockedWindow) TimeSlot {
	slot := TimeSlot{Time: t, IsInBreak: rule.InBreak(t)}
	if b, ok := FirstBlock(date, t, blocks); ok {
		slot.IsBlocked = true
		slot.BlockReason = b.Title
	}
	slot.IsAvailable = !slot.IsInBreak && !slot.IsBlocked
	return slot
}

// DayGrid is one column of a week view.
type DayGrid struct {
	Date   calendar.Date `json:"date"`
	Closed bool          `json:"closed"`
	Slots  []TimeSlot    `json:"slots"`
}

// GenerateWeekGrid lays out days consecutive dates from start on a shared
// time axis: the earliest open to the latest close across those days. Steps
// outside a given day's hours are flagged IsOutsideBusinessHours and are not
// available.
func GenerateWeekGrid(start calendar.Date, days int, rules []BusinessHourRule, blocks []BlockedWindow, slotMinutes int) []DayGrid {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	if days <= 0 {
		days = 7
	}

	var axisOpen, axisClose calendar.Clock
	haveAxis := false
	for i := 0; i < days; i++ {
		rule, _ := ResolveRule(start.AddDays(i).Weekday(), rules)
		if !rule.IsOpen {
			continue
		}
		if !haveAxis || rule.Open < axisOpen {
			axisOpen = rule.Open
		}
		if !haveAxis || rule.Close > axisClose {
			axisClose = rule.Close
		}
		haveAxis = true
	}

	grid := make([]DayGrid, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDays(i)
		rule, _ := ResolveRule(date.Weekday(), rules)
		day := DayGrid{Date: date, Closed: !rule.IsOpen, Slots: []TimeSlot{}}
		if haveAxis {
			for t := axisOpen; t.Add(slotMinutes) <= axisClose; t = t.Add(slotMinutes) {
				if !rule.IsOpen || t < rule.Open || t.Add(slotMinutes) > rule.Close {
					day.Slots = append(day.Slots, TimeSlot{Time: t, IsOutsideBusinessHours: true})
					continue
				}
				day.Slots = append(day.Slots, buildSlot(date, t, rule, blocks))
			}
		}
		grid = append(grid, day)
	}
	return grid
}

// SlotCheck is the verdict on an arbitrary target time.
type SlotCheck struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// CheckTime evaluates a drop target or manual booking time against the day's
// slot grid, breaks and blocked windows. Only times GenerateSlots would emit
// for slotMinutes pass.
func CheckTime(date calendar.Date, t calendar.Clock, rules []BusinessHourRule, blocks []BlockedWindow, slotMinutes int) SlotCheck {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}

	rule, _ := ResolveRule(date.Weekday(), rules)
	if !rule.IsOpen || t < rule.Open || t.Add(slotMinutes) > rule.Close {
		return SlotCheck{Blocked: true, Reason: ReasonOutsideHours}
	}
	if int(t-rule.Open)%slotMinutes != 0 {
		return SlotCheck{Blocked: true, Reason: ReasonOffGrid}
	}
	if rule.InBreak(t) {
		return SlotCheck{Blocked: true, Reason: ReasonBreak}
	}
	if b, ok := FirstBlock(date, t, blocks); ok {
		return SlotCheck{Blocked: true, Reason: b.Title}
	}
	return SlotCheck{}
}

// SlotBlockedError rejects a move or booking onto an unavailable time.
type SlotBlockedError struct {
	Date   calendar.Date
	Time   calendar.Clock
	Reason string
}

func (e *SlotBlockedError) Error() string {
	return fmt.Sprintf("slot %s %s is blocked: %s", e.Date, e.Time, e.Reason)
}
