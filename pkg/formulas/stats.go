// Package formulas provides the financial math shared by the analytics engine.
package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Volatility calculates the population standard deviation of periodic
// returns. Population (not sample) deviation is deliberate: the evolution
// series is the complete set of observations for the window, not a sample
// drawn from it, and the choice affects annualization and cross-checks.
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.PopStdDev(returns, nil)
}
