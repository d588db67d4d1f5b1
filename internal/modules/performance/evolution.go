package performance

import (
	"sort"
	"time"
)

type monthKey struct {
	year  int
	month time.Month
}

// buildEvolution reconstructs the basket's notional value at each date in
// the union of the usable allocations' observation dates within the window.
// Each allocation's slice of the principal is projected forward by its
// growth factor; a date is kept only when every allocation resolves there
// (no interpolation across partial coverage). Points are then downsampled
// to the last observation of each calendar month.
func buildEvolution(
	allocations []weightedSeries,
	benchmarks map[string]*assetSeries,
	period Period,
) []EvolutionPoint {
	if len(allocations) == 0 {
		return nil
	}

	dateSet := make(map[time.Time]bool)
	for _, ws := range allocations {
		for _, d := range ws.series.datesIn(period.StartDate, period.EndDate) {
			dateSet[d] = true
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var points []EvolutionPoint
	for _, d := range dates {
		value := 0.0
		complete := true
		for _, ws := range allocations {
			level, ok := ws.series.levelAt(period.StartDate, d)
			if !ok {
				complete = false
				break
			}
			value += NotionalPrincipal * ws.weight / 100 * level
		}
		if !complete {
			continue
		}

		point := EvolutionPoint{Date: d, BasketValue: value}
		for name, bs := range benchmarks {
			if level, ok := bs.levelAt(period.StartDate, d); ok {
				if point.BenchmarkValues == nil {
					point.BenchmarkValues = make(map[string]float64)
				}
				point.BenchmarkValues[name] = NotionalPrincipal * level
			}
		}
		points = append(points, point)
	}

	return lastOfMonth(points)
}

// lastOfMonth keeps one representative point per calendar month, the last
// available observation, so downstream charting and volatility work on a
// compact monthly series.
func lastOfMonth(points []EvolutionPoint) []EvolutionPoint {
	grouped := make(map[monthKey]EvolutionPoint)
	for _, p := range points {
		key := monthKey{year: p.Date.Year(), month: p.Date.Month()}
		if existing, ok := grouped[key]; !ok || p.Date.After(existing.Date) {
			grouped[key] = p
		}
	}

	result := make([]EvolutionPoint, 0, len(grouped))
	for _, p := range grouped {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result
}
