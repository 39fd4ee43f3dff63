// internal/utils/period.go
package utils

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

type Period struct {
	Type  string    `json:"period_type"`
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
}

// ParseMonth turns "2025-06" into the calendar month it names.
func ParseMonth(month string) (Period, error) {
	start, err := time.ParseInLocation("2006-01", month, time.UTC)
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	return Period{Type: "month", Start: start, End: start.AddDate(0, 1, -1)}, nil
}

func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// ParsePeriod validates an explicit start/end pair.
func ParsePeriod(periodType, start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	if e.Before(s) {
		return Period{}, fmt.Errorf("period end %s is before start %s", end, start)
	}
	if periodType == "" {
		periodType = "month"
	}
	return Period{Type: periodType, Start: s, End: e}, nil
}

// Previous returns the period of equal calendar shape immediately before p.
// Month periods step back one month.
func (p Period) Previous() Period {
	if p.Type == "month" {
		start := p.Start.AddDate(0, -1, 0)
		return Period{Type: p.Type, Start: start, End: start.AddDate(0, 1, -1)}
	}
	span := p.End.Sub(p.Start) + 24*time.Hour
	return Period{Type: p.Type, Start: p.Start.Add(-span), End: p.Start.AddDate(0, 0, -1)}
}

func (p Period) Label() string {
	if p.Type == "month" {
		return p.Start.Format("January 2006")
	}
	return p.Start.Format(DateLayout) + " to " + p.End.Format(DateLayout)
}
