package analysis

import (
	"fmt"
	"time"
)

// Mode selects which transactions an analysis covers.
type Mode string

const (
	ModeToday Mode = "today"
	ModeWeek  Mode = "week"
	ModeMonth Mode = "month"
	ModeDate  Mode = "date"
	ModeAll   Mode = "all"
)

// DateLayout is the format of the picked day for ModeDate.
const DateLayout = "2006-01-02"

// Window is a half-open time range [Start, End). A zero bound is unbounded.
type Window struct {
	Mode  Mode
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// ParseWindow builds a window relative to now. Calendar days are taken in loc.
// date is only read for ModeDate.
func ParseWindow(mode, date string, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	switch Mode(mode) {
	case ModeToday:
		start := startOfDay(now)
		return Window{Mode: ModeToday, Start: start, End: start.AddDate(0, 0, 1)}, nil
	case ModeWeek:
		return Window{Mode: ModeWeek, Start: now.AddDate(0, 0, -7)}, nil
	case ModeMonth:
		return Window{Mode: ModeMonth, Start: now.AddDate(0, -1, 0)}, nil
	case ModeDate:
		if date == "" {
			return Window{}, fmt.Errorf("date is required for mode %q", ModeDate)
		}
		day, err := time.ParseInLocation(DateLayout, date, loc)
		if err != nil {
			return Window{}, fmt.Errorf("invalid date %q: %w", date, err)
		}
		return Window{Mode: ModeDate, Start: day, End: day.AddDate(0, 0, 1)}, nil
	case ModeAll:
		return Window{Mode: ModeAll}, nil
	default:
		return Window{}, fmt.Errorf("unknown mode %q (want today, week, month, date or all)", mode)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
