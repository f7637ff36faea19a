package core

import (
	"fmt"
	"strings"
	"time"
)

// Month identifies a calendar month. It is the key of monthly allocations.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOfTime returns the month containing t.
func MonthOfTime(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth accepts YYYY-MM and YYYY-MM-DD (the day is dropped).
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOfTime(t), nil
		}
	}
	return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
}

func (m Month) Validate() error {
	if m.Year < 1900 || m.Year > 9999 || m.Month < time.January || m.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start returns the first day of the month.
func (m Month) Start() Date {
	return Date{Time: time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)}
}

// End returns the last day of the month.
func (m Month) End() Date {
	return Date{Time: m.Start().AddDate(0, 1, -1)}
}

// AddMonths returns the month n months away.
func (m Month) AddMonths(n int) Month {
	return MonthOfTime(m.Start().AddDate(0, n, 0))
}

// Contains reports whether d falls within the month.
func (m Month) Contains(d Date) bool {
	return d.Year() == m.Year && d.Time.Month() == m.Month
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// ParseDate parses the date formats found in bank exports: ISO dates,
// US month/day/year with slashes or dashes, and a few long forms.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		time.DateOnly,
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"01-02-2006",
		"1-2-2006",
		"01/02/06",
		"1/2/06",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
