package charts

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/modules/performance"
)

func sampleResult() *performance.BasketPerformance {
	return &performance.BasketPerformance{
		PeriodLabel:      "Last 3 months",
		TotalReturn:      3.2,
		AnnualizedReturn: 13.4,
		Evolution: []performance.EvolutionPoint{
			{Date: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), BasketValue: 10000, BenchmarkValues: map[string]float64{"CDI": 10000}},
			{Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), BasketValue: 10150, BenchmarkValues: map[string]float64{"CDI": 10090}},
			{Date: time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC), BasketValue: 10320, BenchmarkValues: map[string]float64{"CDI": 10180}},
		},
	}
}

func TestEvolutionData(t *testing.T) {
	svc := NewService(zerolog.Nop())

	lines := svc.EvolutionData(sampleResult())

	require.Len(t, lines["basket"], 3)
	assert.Equal(t, "2024-01-31", lines["basket"][0].Time)
	assert.Equal(t, 10000.0, lines["basket"][0].Value)

	require.Len(t, lines["CDI"], 3)
	assert.Equal(t, 10180.0, lines["CDI"][2].Value)
}

func TestRenderEvolutionPNG(t *testing.T) {
	svc := NewService(zerolog.Nop())

	buf, err := svc.RenderEvolutionPNG("Conservative", sampleResult())
	require.NoError(t, err)
	assert.NotEmpty(t, buf)

	// PNG signature
	require.Greater(t, len(buf), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf[:4])
}

func TestRenderEvolutionPNG_EmptySeries(t *testing.T) {
	svc := NewService(zerolog.Nop())

	_, err := svc.RenderEvolutionPNG("Empty", &performance.BasketPerformance{})
	assert.Error(t, err)
}
