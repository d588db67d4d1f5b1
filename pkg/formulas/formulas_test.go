package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleReturn(t *testing.T) {
	tests := []struct {
		name     string
		start    float64
		end      float64
		expected *float64
	}{
		{name: "gain", start: 100, end: 110, expected: floatPtr(10)},
		{name: "loss", start: 50, end: 45, expected: floatPtr(-10)},
		{name: "flat", start: 100, end: 100, expected: floatPtr(0)},
		{name: "zero start price", start: 0, end: 100, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SimpleReturn(tt.start, tt.end)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-9)
		})
	}
}

func TestCompoundChanges(t *testing.T) {
	// Two daily rates of 1% compound to 2.01%
	assert.InDelta(t, 2.01, CompoundChanges([]float64{1, 1}), 1e-9)
	assert.InDelta(t, 0, CompoundChanges(nil), 1e-9)
	// A gain followed by the inverse loss is a wash
	assert.InDelta(t, 0, CompoundChanges([]float64{25, -20}), 1e-9)
}

func TestPeriodicReturns(t *testing.T) {
	returns := PeriodicReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 10, returns[0], 1e-9)
	assert.InDelta(t, -10, returns[1], 1e-9)

	// Zero predecessors are skipped, not turned into Inf
	returns = PeriodicReturns([]float64{0, 100, 110})
	require.Len(t, returns, 1)
	assert.InDelta(t, 10, returns[0], 1e-9)

	assert.Empty(t, PeriodicReturns([]float64{100}))
}

func TestAnnualizedReturn(t *testing.T) {
	// Over exactly 365 days the annualized return equals the raw return
	assert.InDelta(t, 12.5, AnnualizedReturn(12.5, 365), 1e-9)

	// Half a year of 10% compounds to 21% annualized
	assert.InDelta(t, 21, AnnualizedReturn(10, 182), 0.2)

	assert.Equal(t, 0.0, AnnualizedReturn(10, 0))
	assert.Equal(t, 0.0, AnnualizedReturn(10, -5))
}

func TestVolatility(t *testing.T) {
	// A perfectly flat series has zero volatility
	assert.Equal(t, 0.0, Volatility([]float64{0, 0, 0, 0}))

	// Population stddev of {1,-1,1,-1} is exactly 1
	assert.InDelta(t, 1, Volatility([]float64{1, -1, 1, -1}), 1e-9)

	// Too short to measure dispersion
	assert.Equal(t, 0.0, Volatility([]float64{5}))
	assert.Equal(t, 0.0, Volatility(nil))
}

func TestSharpeRatio(t *testing.T) {
	assert.InDelta(t, 2, SharpeRatio(10, 4, 3), 1e-9)

	// Zero volatility yields 0, never Inf or NaN
	assert.Equal(t, 0.0, SharpeRatio(10, 4, 0))
}

func floatPtr(f float64) *float64 { return &f }
