// Package charts renders basket evolution series as chart data and PNG
// images.
package charts

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/vicanso/go-charts/v2"

	"carteira/internal/modules/performance"
)

// DataPoint represents a single point on a chart
type DataPoint struct {
	Time  string  `json:"time"` // YYYY-MM-DD format
	Value float64 `json:"value"`
}

// Service turns performance results into chart payloads
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// EvolutionData converts an evolution series into per-line chart points.
// The basket line is keyed "basket"; benchmark lines keep their names.
func (s *Service) EvolutionData(result *performance.BasketPerformance) map[string][]DataPoint {
	lines := make(map[string][]DataPoint)

	for _, p := range result.Evolution {
		date := p.Date.Format("2006-01-02")
		lines["basket"] = append(lines["basket"], DataPoint{Time: date, Value: p.BasketValue})
		for name, value := range p.BenchmarkValues {
			lines[name] = append(lines[name], DataPoint{Time: date, Value: value})
		}
	}

	return lines
}

// RenderEvolutionPNG renders the basket's evolution as a line chart,
// with one line per benchmark alongside the basket itself.
func (s *Service) RenderEvolutionPNG(title string, result *performance.BasketPerformance) ([]byte, error) {
	if len(result.Evolution) == 0 {
		return nil, fmt.Errorf("evolution series is empty, nothing to render")
	}

	// Benchmark lines only make sense when present at every point
	var benchmarkNames []string
	if len(result.Evolution) > 0 {
		for name := range result.Evolution[0].BenchmarkValues {
			benchmarkNames = append(benchmarkNames, name)
		}
		sort.Strings(benchmarkNames)
	}

	xLabels := make([]string, 0, len(result.Evolution))
	basketValues := make([]float64, 0, len(result.Evolution))
	benchmarkValues := make(map[string][]float64, len(benchmarkNames))

	labelFormat := "Jan 02"
	if len(result.Evolution) > 24 {
		labelFormat = "Jan '06"
	}

	for _, p := range result.Evolution {
		xLabels = append(xLabels, p.Date.Format(labelFormat))
		basketValues = append(basketValues, p.BasketValue)
		for _, name := range benchmarkNames {
			benchmarkValues[name] = append(benchmarkValues[name], p.BenchmarkValues[name])
		}
	}

	series := [][]float64{basketValues}
	legend := []string{"Basket"}
	for _, name := range benchmarkNames {
		series = append(series, benchmarkValues[name])
		legend = append(legend, name)
	}

	yMin, yMax := valueBounds(series)

	subtitle := fmt.Sprintf("Return: %.2f%% | Annualized: %.2f%% | Vol: %.2f | Sharpe: %.2f",
		result.TotalReturn, result.AnnualizedReturn, result.Volatility, result.SharpeRatio)

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	p, err := charts.LineRender(
		series,
		charts.TitleTextOptionFunc(title+"\n"+subtitle),
		charts.LegendLabelsOptionFunc(legend),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	s.log.Debug().
		Int("points", len(result.Evolution)).
		Int("lines", len(series)).
		Msg("Evolution chart rendered")

	return buf, nil
}

// valueBounds finds the global min and max across all lines, padded by
// 5% so lines never touch the chart edges.
func valueBounds(series [][]float64) (float64, float64) {
	minVal, maxVal := series[0][0], series[0][0]
	for _, line := range series {
		for _, v := range line {
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
	}

	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	return minVal - padding, maxVal + padding
}
