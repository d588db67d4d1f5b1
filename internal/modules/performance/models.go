// Package performance implements the basket analytics engine: period
// resolution, price alignment, weighted return aggregation, evolution
// series reconstruction, risk metrics and benchmark comparison.
package performance

import (
	"errors"
	"time"
)

// Engine failure taxonomy. Structural input errors abort the whole
// computation; per-asset data gaps never do - they degrade the result and
// are reported via HasInsufficientData.
var (
	ErrInvalidPeriod = errors.New("invalid performance period")
	ErrEmptyBasket   = errors.New("basket has no allocations")
	ErrNoUsableData  = errors.New("no allocation has usable price data in the period")
)

// NotionalPrincipal is the hypothetical amount invested at the start of the
// window when reconstructing the basket's evolution series.
const NotionalPrincipal = 10000.0

// Period is a resolved performance window. A zero StartDate marks an
// open start ("all time"); the engine clamps it to the earliest available
// data point before computing.
type Period struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Label     string    `json:"label"`
}

// OpenStart reports whether the period start is still unresolved
func (p Period) OpenStart() bool {
	return p.StartDate.IsZero()
}

// AssetReturn is one allocation's contribution to the basket return.
// Percentage-based assets report normalized levels (base 100) as prices.
type AssetReturn struct {
	AssetID          string  `json:"asset_id"`
	Ticker           string  `json:"ticker"`
	StartPrice       float64 `json:"start_price"`
	EndPrice         float64 `json:"end_price"`
	ReturnPercentage float64 `json:"return_percentage"`
	AllocationWeight float64 `json:"allocation_weight"`
	WeightedReturn   float64 `json:"weighted_return"`
}

// EvolutionPoint is one reconstructed notional value of the basket,
// alongside the same notional invested in each benchmark.
type EvolutionPoint struct {
	Date            time.Time          `json:"date"`
	BasketValue     float64            `json:"basket_value"`
	BenchmarkValues map[string]float64 `json:"benchmark_values,omitempty"`
}

// BenchmarkComparison reports a reference index's same-window return and
// the basket's out/under-performance against it.
type BenchmarkComparison struct {
	Name               string  `json:"name"`
	PeriodReturn       float64 `json:"period_return"`
	DifferenceVsBasket float64 `json:"difference_vs_basket"`
}

// BasketPerformance is the engine's primary output
type BasketPerformance struct {
	PeriodLabel         string                `json:"period_label"`
	StartDate           time.Time             `json:"start_date"`
	EndDate             time.Time             `json:"end_date"`
	TotalReturn         float64               `json:"total_return"`
	AnnualizedReturn    float64               `json:"annualized_return"`
	StartValue          float64               `json:"start_value"`
	EndValue            float64               `json:"end_value"`
	AbsoluteGain        float64               `json:"absolute_gain"`
	Volatility          float64               `json:"volatility"`
	SharpeRatio         float64               `json:"sharpe_ratio"`
	AssetReturns        []AssetReturn         `json:"asset_returns"`
	Evolution           []EvolutionPoint      `json:"evolution"`
	Benchmarks          []BenchmarkComparison `json:"benchmarks"`
	HasInsufficientData bool                  `json:"has_insufficient_data"`
}
