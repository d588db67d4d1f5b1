package formulas

// SharpeRatio calculates a risk-adjusted return: excess return over a
// risk-free proxy divided by volatility.
//
//	Sharpe = (Portfolio Return - Risk-free Return) / Volatility
//
// Defined as 0 (not Inf/NaN) when volatility is 0, so a flat series never
// poisons downstream aggregation.
func SharpeRatio(totalReturn, riskFreeReturn, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (totalReturn - riskFreeReturn) / volatility
}
