package performance

import (
	"fmt"
	"time"
)

// NamedPeriod is a window token accepted by ResolveNamedPeriod
type NamedPeriod string

const (
	Period1M  NamedPeriod = "1M"
	Period3M  NamedPeriod = "3M"
	Period6M  NamedPeriod = "6M"
	Period1Y  NamedPeriod = "1Y"
	PeriodYTD NamedPeriod = "YTD"
	PeriodAll NamedPeriod = "ALL"
)

// ResolveNamedPeriod resolves a named window token relative to now.
// ALL returns an open-start period; the engine clamps it to the earliest
// available data point.
func ResolveNamedPeriod(token NamedPeriod, now time.Time) (Period, error) {
	end := now
	switch token {
	case Period1M:
		return Period{StartDate: end.AddDate(0, 0, -30), EndDate: end, Label: "Last month"}, nil
	case Period3M:
		return Period{StartDate: end.AddDate(0, 0, -90), EndDate: end, Label: "Last 3 months"}, nil
	case Period6M:
		return Period{StartDate: end.AddDate(0, 0, -180), EndDate: end, Label: "Last 6 months"}, nil
	case Period1Y:
		return Period{StartDate: end.AddDate(0, 0, -365), EndDate: end, Label: "Last year"}, nil
	case PeriodYTD:
		start := time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, end.Location())
		return Period{StartDate: start, EndDate: end, Label: "Year to date"}, nil
	case PeriodAll:
		return Period{EndDate: end, Label: "All time"}, nil
	}
	return Period{}, fmt.Errorf("%w: unknown token %q", ErrInvalidPeriod, token)
}

// ResolveExplicitPeriod resolves an explicit date pair. The range must be
// strictly ordered.
func ResolveExplicitPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return Period{}, fmt.Errorf("%w: start must precede end", ErrInvalidPeriod)
	}
	label := fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	return Period{StartDate: start, EndDate: end, Label: label}, nil
}

// periodDays returns the window length in whole days, rounding partial
// days up, never below 1.
func periodDays(p Period) int {
	days := int(p.EndDate.Sub(p.StartDate).Hours() / 24)
	if p.EndDate.Sub(p.StartDate)%(24*time.Hour) != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}
