package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxSynthesizedDay is the latest day of month a carried-over transaction can
// land on; every month has at least 28 days.
const MaxSynthesizedDay = 28

// MonthToken identifies a calendar month.
type MonthToken struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month t falls in, as seen in loc (nil means UTC).
func MonthOf(t time.Time, loc *time.Location) MonthToken {
	y, m, _ := t.In(orUTC(loc)).Date()
	return MonthToken{Year: y, Month: m}
}

// Key is the persisted marker form "<year>-<monthIndex>" with a zero-based month.
func (m MonthToken) Key() string {
	return fmt.Sprintf("%d-%d", m.Year, int(m.Month)-1)
}

// ParseMonthKey is the inverse of Key.
func ParseMonthKey(s string) (MonthToken, error) {
	year, idx, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return MonthToken{}, fmt.Errorf("invalid month key %q", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return MonthToken{}, fmt.Errorf("invalid month key %q", s)
	}
	i, err := strconv.Atoi(idx)
	if err != nil || i < 0 || i > 11 {
		return MonthToken{}, fmt.Errorf("invalid month key %q", s)
	}
	return MonthToken{Year: y, Month: time.Month(i + 1)}, nil
}

// ParseMonth parses the human form "2006-01".
func ParseMonth(s string) (MonthToken, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthToken{}, fmt.Errorf("%w %q: expected YYYY-MM", ErrInvalidMonth, s)
	}
	return MonthToken{Year: t.Year(), Month: t.Month()}, nil
}

func (m MonthToken) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m MonthToken) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m MonthToken) Prev() MonthToken {
	return m.AddMonths(-1)
}

func (m MonthToken) Next() MonthToken {
	return m.AddMonths(1)
}

func (m MonthToken) AddMonths(n int) MonthToken {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthToken{Year: t.Year(), Month: t.Month()}
}

// MonthsUntil returns the signed number of calendar months from m to o.
func (m MonthToken) MonthsUntil(o MonthToken) int {
	return (o.Year-m.Year)*12 + int(o.Month) - int(m.Month)
}

// Compare returns -1, 0 or +1.
func (m MonthToken) Compare(o MonthToken) int {
	switch d := m.MonthsUntil(o); {
	case d > 0:
		return -1
	case d < 0:
		return 1
	}
	return 0
}

func (m MonthToken) Before(o MonthToken) bool {
	return m.Compare(o) < 0
}

// Start returns midnight of the first day of the month in loc.
func (m MonthToken) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, orUTC(loc))
}

// Contains reports whether t falls in the month as seen in loc.
func (m MonthToken) Contains(t time.Time, loc *time.Location) bool {
	return MonthOf(t, loc) == m
}

// DayIn returns midnight of day min(day, 28) of the month in loc.
func (m MonthToken) DayIn(day int, loc *time.Location) time.Time {
	if day > MaxSynthesizedDay {
		day = MaxSynthesizedDay
	}
	if day < 1 {
		day = 1
	}
	return time.Date(m.Year, m.Month, day, 0, 0, 0, 0, orUTC(loc))
}

// DaysIn returns the number of days in the month.
func (m MonthToken) DaysIn() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
