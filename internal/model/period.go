package model

import (
	"fmt"
	"time"
)

// Period selects the leaderboard window.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod parses a leaderboard period. An empty string means all-time.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodWeek, PeriodMonth:
		return Period(s), nil
	}
	return "", fmt.Errorf("invalid period %q: must be week, month or all", s)
}

// Since returns the lower bound on confirmed_at for the period, or the
// zero time for all-time.
func (p Period) Since(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodMonth:
		return now.Add(-30 * 24 * time.Hour)
	}
	return time.Time{}
}
