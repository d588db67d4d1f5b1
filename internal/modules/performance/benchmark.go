package performance

import "sort"

// compareBenchmarks computes each configured reference index's own period
// return through the same alignment pipeline the basket uses (benchmarks
// are just assets). A benchmark with no usable data in the window is
// omitted from the list, never an error. The second return value is the
// risk-free proxy's period return, 0 when the proxy has no usable data.
func (s *Service) compareBenchmarks(
	benchSeries map[string]*assetSeries,
	period Period,
	basketReturn float64,
) ([]BenchmarkComparison, float64) {
	riskFreeReturn := 0.0
	comparisons := make([]BenchmarkComparison, 0, len(benchSeries))

	for name, series := range benchSeries {
		if !series.usable(period) {
			s.log.Debug().
				Str("benchmark", name).
				Str("period", period.Label).
				Msg("Benchmark lacks usable data in window, omitted")
			continue
		}

		level, ok := series.levelAt(period.StartDate, period.EndDate)
		if !ok {
			continue
		}
		periodReturn := (level - 1) * 100

		comparisons = append(comparisons, BenchmarkComparison{
			Name:               name,
			PeriodReturn:       periodReturn,
			DifferenceVsBasket: basketReturn - periodReturn,
		})

		if name == s.riskFreeProxy {
			riskFreeReturn = periodReturn
		}
	}

	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].Name < comparisons[j].Name
	})

	return comparisons, riskFreeReturn
}
