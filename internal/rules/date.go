package rules

import (
	"fmt"
	"strings"
	"time"
)

// DatePattern names a calendar period relative to the current moment.
type DatePattern string

const (
	Today     DatePattern = "today"
	Yesterday DatePattern = "yesterday"
	ThisWeek  DatePattern = "this-week"
	LastWeek  DatePattern = "last-week"
	ThisMonth DatePattern = "this-month"
	LastMonth DatePattern = "last-month"
	ThisYear  DatePattern = "this-year"
	LastYear  DatePattern = "last-year"
)

// AllDatePatterns lists every DatePattern.
var AllDatePatterns = []DatePattern{Today, Yesterday, ThisWeek, LastWeek, ThisMonth, LastMonth, ThisYear, LastYear}

// ParseDatePattern accepts pattern names case-insensitively, with '-' or '_'.
func ParseDatePattern(s string) (DatePattern, error) {
	p := DatePattern(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, known := range AllDatePatterns {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown date pattern: %q", s)
}

// Contains reports whether t falls inside the period named by p, computed
// from now's calendar in now's location. Weeks start on Monday at 00:00.
func (p DatePattern) Contains(t, now time.Time) bool {
	start, end, ok := p.Period(now)
	if !ok {
		return false
	}
	t = t.In(now.Location())
	return !t.Before(start) && t.Before(end)
}

// Period returns the half-open interval [start, end) for p.
func (p DatePattern) Period(now time.Time) (start, end time.Time, ok bool) {
	y, m, d := now.Date()
	loc := now.Location()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	monday := today.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	firstOfMonth := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	firstOfYear := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)

	switch p {
	case Today:
		return today, today.AddDate(0, 0, 1), true
	case Yesterday:
		return today.AddDate(0, 0, -1), today, true
	case ThisWeek:
		return monday, monday.AddDate(0, 0, 7), true
	case LastWeek:
		return monday.AddDate(0, 0, -7), monday, true
	case ThisMonth:
		return firstOfMonth, firstOfMonth.AddDate(0, 1, 0), true
	case LastMonth:
		return firstOfMonth.AddDate(0, -1, 0), firstOfMonth, true
	case ThisYear:
		return firstOfYear, firstOfYear.AddDate(1, 0, 0), true
	case LastYear:
		return firstOfYear.AddDate(-1, 0, 0), firstOfYear, true
	}
	return time.Time{}, time.Time{}, false
}
