package waitlist

import (
	"math"
	"sort"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

const (
	preferenceBonus   = 20
	maxWaitingBonus   = 30
	refusalPenalty    = 5
	DefaultMatchLimit = 5
)

// ScoreBreakdown itemizes a match score.
type ScoreBreakdown struct {
	Day      int `json:"day"`
	Period   int `json:"period"`
	Priority int `json:"priority"`
	Waiting  int `json:"waiting"`
	Refusals int `json:"refusals"`
}

func (b ScoreBreakdown) Total() int {
	return b.Day + b.Period + b.Priority + b.Waiting - b.Refusals
}

type Match struct {
	Entry     Entry          `json:"entry"`
	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// FindMatches ranks the active entries whose preferences admit the slot.
// The result is sorted by score, highest first; equal scores keep input
// order.
func FindMatches(date calendar.Date, t calendar.Clock, entries []Entry, now time.Time) []Match {
	wd := date.Weekday()
	period := PeriodOf(t)

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		if e.Status != StatusActive {
			continue
		}
		b, ok := score(e, wd, period, now)
		if !ok {
			continue
		}
		matches = append(matches, Match{Entry: e, Score: b.Total(), Breakdown: b})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func score(e Entry, wd time.Weekday, period Period, now time.Time) (ScoreBreakdown, bool) {
	var b ScoreBreakdown

	if len(e.PreferredDays) > 0 {
		if !containsDay(e.PreferredDays, wd) {
			return b, false
		}
		b.Day = preferenceBonus
	}
	if len(e.PreferredPeriods) > 0 {
		if !containsPeriod(e.PreferredPeriods, period) {
			return b, false
		}
		b.Period = preferenceBonus
	}

	b.Priority = e.Priority.Bonus()
	b.Waiting = waitingDays(e.CreatedAt, now)
	b.Refusals = refusalPenalty * e.RefusalCount
	return b, true
}

func waitingDays(created, now time.Time) int {
	days := int(math.Floor(now.Sub(created).Hours() / 24))
	if days < 0 {
		return 0
	}
	if days > maxWaitingBonus {
		return maxWaitingBonus
	}
	return days
}

func containsDay(days []time.Weekday, wd time.Weekday) bool {
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}

func containsPeriod(periods []Period, p Period) bool {
	for _, q := range periods {
		if q == p {
			return true
		}
	}
	return false
}
