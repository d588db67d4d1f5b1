package formulas

import "math"

// SimpleReturn calculates the percentage return between two price levels.
// Returns nil when the start price is zero: the caller must treat that as
// "insufficient data for this asset", not abort the whole computation.
func SimpleReturn(startPrice, endPrice float64) *float64 {
	if startPrice == 0 {
		return nil
	}
	r := (endPrice - startPrice) / startPrice * 100
	return &r
}

// CompoundChanges compounds a sequence of percentage changes into a single
// period return. Used for percentage-based assets (daily-rate indices)
// whose points carry the period contribution directly.
func CompoundChanges(changes []float64) float64 {
	factor := 1.0
	for _, c := range changes {
		factor *= 1 + c/100
	}
	return (factor - 1) * 100
}

// PeriodicReturns derives simple percentage changes between consecutive
// series values. Zero predecessors are skipped rather than producing Inf.
func PeriodicReturns(values []float64) []float64 {
	returns := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1]*100)
	}
	return returns
}

// AnnualizedReturn re-expresses a total period return as an equivalent
// compounding annual rate: (1 + total/100)^(365/days) - 1, as a percentage.
// For a period of exactly 365 days this equals the raw return.
func AnnualizedReturn(totalReturnPct float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	return (math.Pow(1+totalReturnPct/100, 365/float64(days)) - 1) * 100
}
