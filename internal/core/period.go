package core

import "time"

// Period is a half-open budget window [Start, End).
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// CurrentPeriod returns the budget window containing today. The window starts
// on monthStartDay of this month, or of the previous month when today is
// earlier in the month, and lasts exactly one calendar month.
func CurrentPeriod(today Date, monthStartDay int) Period {
	day := ClampMonthStartDay(monthStartDay)
	start := NewDate(today.Year(), today.Month(), day)
	if today.Day() < day {
		start = NewDate(today.Year(), today.Month()-1, day)
	}
	return Period{Start: start, End: start.AddMonthsClamped(1)}
}

// Contains reports whether d falls inside the window.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && d.Before(p.End)
}

// ContainsTimestamp reports whether the entry timestamp s falls inside the
// window, with day boundaries at midnight in loc. Unparsable timestamps are
// outside every window.
func (p Period) ContainsTimestamp(s string, loc *time.Location) bool {
	t, ok := ParseTimestamp(s, loc)
	if !ok {
		return false
	}
	if loc == nil {
		loc = time.Local
	}
	return p.Contains(DateOf(t.In(loc)))
}

func (p Period) String() string {
	return p.Start.String() + " .. " + p.End.String()
}
