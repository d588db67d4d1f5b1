package performance

import (
	"time"

	"carteira/internal/domain"
)

// PriceAsOf returns the price judged "as of" the target date: the latest
// point with a non-nil price and date <= target. Markets are not open
// every day and different assets gap on different dates, so the boundary
// price is looked up with a nearest-prior-or-equal policy. Returns nil
// when no prior point exists - the asset has no data for that boundary.
func PriceAsOf(points []domain.PricePoint, target time.Time) *float64 {
	var best *float64
	for i := range points {
		if points[i].Date.After(target) {
			break
		}
		if points[i].Price != nil {
			v := points[i].Price.InexactFloat64()
			best = &v
		}
	}
	return best
}

// assetSeries pairs an asset with its ordered historical points and
// answers level queries against a window.
type assetSeries struct {
	asset  *domain.Asset
	points []domain.PricePoint
}

// usable reports whether the series can produce a return over the window
func (s *assetSeries) usable(p Period) bool {
	if s == nil || s.asset == nil || len(s.points) == 0 {
		return false
	}
	if s.asset.CalcMode == domain.CalcModePercentage {
		return len(s.changesIn(p.StartDate, p.EndDate)) > 0
	}
	start := PriceAsOf(s.points, p.StartDate)
	end := PriceAsOf(s.points, p.EndDate)
	return start != nil && *start != 0 && end != nil
}

// levelAt returns the asset's growth factor from the window start to the
// target date (1.0 = unchanged). ok is false when the boundary cannot be
// resolved; callers drop the date rather than interpolate.
func (s *assetSeries) levelAt(start, target time.Time) (float64, bool) {
	if s == nil || s.asset == nil {
		return 0, false
	}
	if s.asset.CalcMode == domain.CalcModePercentage {
		// A date preceding the series' first observation is unresolved,
		// same as a price-mode date with no prior point. Without this a
		// flat 1.0 factor would slip through the every-allocation filter.
		if !s.observedBy(target) {
			return 0, false
		}
		factor := 1.0
		for _, c := range s.changesIn(start, target) {
			factor *= 1 + c/100
		}
		return factor, true
	}
	p0 := PriceAsOf(s.points, start)
	pt := PriceAsOf(s.points, target)
	if p0 == nil || *p0 == 0 || pt == nil {
		return 0, false
	}
	return *pt / *p0, true
}

// observedBy reports whether the series has any observation at or
// before the target date
func (s *assetSeries) observedBy(target time.Time) bool {
	for i := range s.points {
		if s.points[i].Date.After(target) {
			break
		}
		if s.points[i].Price != nil || s.points[i].PercentageChange != nil {
			return true
		}
	}
	return false
}

// changesIn collects percentage changes with start < date <= end
func (s *assetSeries) changesIn(start, end time.Time) []float64 {
	var changes []float64
	for i := range s.points {
		d := s.points[i].Date
		if !d.After(start) || d.After(end) {
			continue
		}
		if s.points[i].PercentageChange != nil {
			changes = append(changes, s.points[i].PercentageChange.InexactFloat64())
		}
	}
	return changes
}

// datesIn returns the series' observation dates within [start, end]
func (s *assetSeries) datesIn(start, end time.Time) []time.Time {
	var dates []time.Time
	for i := range s.points {
		d := s.points[i].Date
		if d.Before(start) || d.After(end) {
			continue
		}
		if s.points[i].Price != nil || s.points[i].PercentageChange != nil {
			dates = append(dates, d)
		}
	}
	return dates
}

// earliestDate returns the first date carrying any observation
func (s *assetSeries) earliestDate() (time.Time, bool) {
	for i := range s.points {
		if s.points[i].Price != nil || s.points[i].PercentageChange != nil {
			return s.points[i].Date, true
		}
	}
	return time.Time{}, false
}
