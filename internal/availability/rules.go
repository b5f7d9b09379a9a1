package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrInvalidRule  = errors.New("invalid business hour rule")
	ErrInvalidBlock = errors.New("invalid blocked time window")
)

// BusinessHourRule configures one weekday. Times are practice-local wall clock.
type BusinessHourRule struct {
	DayOfWeek  time.Weekday    `json:"day_of_week"`
	IsOpen     bool            `json:"is_open"`
	Open       calendar.Clock  `json:"open_time"`
	Close      calendar.Clock  `json:"close_time"`
	BreakStart *calendar.Clock `json:"break_start,omitempty"`
	BreakEnd   *calendar.Clock `json:"break_end,omitempty"`
}

func (r BusinessHourRule) HasBreak() bool {
	return r.BreakStart != nil && r.BreakEnd != nil
}

// InBreak reports whether c falls in [breakStart, breakEnd).
func (r BusinessHourRule) InBreak(c calendar.Clock) bool {
	return r.HasBreak() && c >= *r.BreakStart && c < *r.BreakEnd
}

func (r BusinessHourRule) Validate() error {
	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day_of_week %d", ErrInvalidRule, r.DayOfWeek)
	}
	if !r.IsOpen {
		return nil
	}
	if r.Open >= r.Close {
		return fmt.Errorf("%w: open %s must be before close %s", ErrInvalidRule, r.Open, r.Close)
	}
	if (r.BreakStart == nil) != (r.BreakEnd == nil) {
		return fmt.Errorf("%w: break needs both start and end", ErrInvalidRule)
	}
	if r.HasBreak() {
		bs, be := *r.BreakStart, *r.BreakEnd
		if bs >= be {
			return fmt.Errorf("%w: break start %s must be before break end %s", ErrInvalidRule, bs, be)
		}
		if bs < r.Open || bs >= r.Close || be < r.Open || be > r.Close {
			return fmt.Errorf("%w: break %s-%s outside opening hours", ErrInvalidRule, bs, be)
		}
	}
	return nil
}

// DefaultRule is used when no rule is configured for a weekday:
// 07:00-21:00 on weekdays, 07:00-13:00 Saturday, closed Sunday.
func DefaultRule(wd time.Weekday) BusinessHourRule {
	switch wd {
	case time.Sunday:
		return BusinessHourRule{DayOfWeek: wd, IsOpen: false}
	case time.Saturday:
		return BusinessHourRule{DayOfWeek: wd, IsOpen: true, Open: calendar.NewClock(7, 0), Close: calendar.NewClock(13, 0)}
	default:
		return BusinessHourRule{DayOfWeek: wd, IsOpen: true, Open: calendar.NewClock(7, 0), Close: calendar.NewClock(21, 0)}
	}
}

// ResolveRule picks the configured rule for wd. fallback is true when the
// default was used because nothing was configured for that weekday.
func ResolveRule(wd time.Weekday, rules []BusinessHourRule) (rule BusinessHourRule, fallback bool) {
	for _, r := range rules {
		if r.DayOfWeek == wd {
			return r, false
		}
	}
	return DefaultRule(wd), true
}

// BlockedWindow is an explicit closure, absolute or recurring, all-day or partial.
type BlockedWindow struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	StartDate     calendar.Date   `json:"start_date"`
	EndDate       calendar.Date   `json:"end_date"`
	StartTime     *calendar.Clock `json:"start_time,omitempty"`
	EndTime       *calendar.Clock `json:"end_time,omitempty"`
	IsRecurring   bool            `json:"is_recurring"`
	RecurringDays []time.Weekday  `json:"recurring_days,omitempty"`
}

// IsAllDay is true when either time bound is missing.
func (b BlockedWindow) IsAllDay() bool {
	return b.StartTime == nil || b.EndTime == nil
}

// AppliesOn reports whether the window is active on date. Recurrence is
// bounded by [StartDate, EndDate].
func (b BlockedWindow) AppliesOn(date calendar.Date) bool {
	if !date.Between(b.StartDate, b.EndDate) {
		return false
	}
	if !b.IsRecurring {
		return true
	}
	wd := date.Weekday()
	for _, d := range b.RecurringDays {
		if d == wd {
			return true
		}
	}
	return false
}

// Covers reports whether the slot starting at c on date is blocked.
func (b BlockedWindow) Covers(date calendar.Date, c calendar.Clock) bool {
	if !b.AppliesOn(date) {
		return false
	}
	if b.IsAllDay() {
		return true
	}
	return c >= *b.StartTime && c < *b.EndTime
}

func (b BlockedWindow) Validate() error {
	if b.EndDate.Before(b.StartDate) {
		return fmt.Errorf("%w: start date %s after end date %s", ErrInvalidBlock, b.StartDate, b.EndDate)
	}
	if b.StartTime != nil && b.EndTime != nil && *b.StartTime >= *b.EndTime {
		return fmt.Errorf("%w: start time %s must be before end time %s", ErrInvalidBlock, *b.StartTime, *b.EndTime)
	}
	if b.IsRecurring && len(b.RecurringDays) == 0 {
		return fmt.Errorf("%w: recurring block without days", ErrInvalidBlock)
	}
	return nil
}

// FirstBlock returns the first window covering (date, c), in slice order.
func FirstBlock(date calendar.Date, c calendar.Clock, blocks []BlockedWindow) (BlockedWindow, bool) {
	for _, b := range blocks {
		if b.Covers(date, c) {
			return b, true
		}
	}
	return BlockedWindow{}, false
}
