package performance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"carteira/internal/domain"
	"carteira/pkg/formulas"
)

// BenchmarkSpec names a reference index the engine compares baskets against
type BenchmarkSpec struct {
	Name    string
	AssetID string
}

// weightedSeries pairs a fetched series with its allocation weight
type weightedSeries struct {
	allocation domain.Allocation
	series     *assetSeries
	weight     float64
}

// Service computes basket performance. It is stateless per invocation:
// one call reads a snapshot of histories and returns a derived result, so
// concurrent calls for different baskets or periods are independent.
type Service struct {
	history       domain.PriceHistoryProvider
	benchmarks    []BenchmarkSpec
	riskFreeProxy string // benchmark name whose period return is the risk-free rate
	log           zerolog.Logger
}

// NewService creates a new performance service
func NewService(
	history domain.PriceHistoryProvider,
	benchmarks []BenchmarkSpec,
	riskFreeProxy string,
	log zerolog.Logger,
) *Service {
	return &Service{
		history:       history,
		benchmarks:    benchmarks,
		riskFreeProxy: riskFreeProxy,
		log:           log.With().Str("service", "performance").Logger(),
	}
}

// ComputeBasketPerformance reconstructs how the basket would have performed
// over the period. Structural errors (empty basket, bad period, no usable
// data at all) abort; per-asset data gaps exclude that asset and set
// HasInsufficientData so callers can render a partial-data notice.
func (s *Service) ComputeBasketPerformance(
	ctx context.Context,
	allocations []domain.Allocation,
	period Period,
) (*BasketPerformance, error) {
	if len(allocations) == 0 {
		return nil, ErrEmptyBasket
	}
	if !period.OpenStart() && !period.StartDate.Before(period.EndDate) {
		return nil, ErrInvalidPeriod
	}

	assetSeriesByID := s.fetchSeries(ctx, allocations)
	benchSeries := s.fetchBenchmarks(ctx)

	if period.OpenStart() {
		earliest, ok := earliestAcross(assetSeriesByID)
		if !ok {
			return nil, ErrNoUsableData
		}
		period.StartDate = earliest
	}

	// Per-allocation returns, excluding assets without usable boundary data
	var (
		usable              []weightedSeries
		assetReturns        []AssetReturn
		totalReturn         float64
		hasInsufficientData bool
	)
	for _, alloc := range allocations {
		series := assetSeriesByID[alloc.AssetID]
		weight := alloc.TargetPercentage.InexactFloat64()
		if series == nil || !series.usable(period) {
			hasInsufficientData = true
			s.log.Debug().
				Str("asset_id", alloc.AssetID).
				Str("period", period.Label).
				Msg("Allocation lacks usable prices, excluded from basket return")
			continue
		}

		ar := series.assetReturn(period, weight)
		assetReturns = append(assetReturns, ar)
		totalReturn += ar.WeightedReturn
		usable = append(usable, weightedSeries{allocation: alloc, series: series, weight: weight})
	}

	if len(usable) == 0 {
		return nil, ErrNoUsableData
	}

	evolution := buildEvolution(usable, benchSeries, period)

	values := make([]float64, len(evolution))
	for i, p := range evolution {
		values[i] = p.BasketValue
	}
	volatility := formulas.Volatility(formulas.PeriodicReturns(values))

	benchmarkComparisons, riskFreeReturn := s.compareBenchmarks(benchSeries, period, totalReturn)

	endValue := NotionalPrincipal * (1 + totalReturn/100)
	result := &BasketPerformance{
		PeriodLabel:         period.Label,
		StartDate:           period.StartDate,
		EndDate:             period.EndDate,
		TotalReturn:         totalReturn,
		AnnualizedReturn:    formulas.AnnualizedReturn(totalReturn, periodDays(period)),
		StartValue:          NotionalPrincipal,
		EndValue:            endValue,
		AbsoluteGain:        endValue - NotionalPrincipal,
		Volatility:          volatility,
		SharpeRatio:         formulas.SharpeRatio(totalReturn, riskFreeReturn, volatility),
		AssetReturns:        assetReturns,
		Evolution:           evolution,
		Benchmarks:          benchmarkComparisons,
		HasInsufficientData: hasInsufficientData,
	}

	s.log.Info().
		Str("period", period.Label).
		Int("allocations", len(allocations)).
		Int("usable", len(usable)).
		Float64("total_return", totalReturn).
		Bool("partial_data", hasInsufficientData).
		Msg("Computed basket performance")

	return result, nil
}

// fetchSeries loads the histories of all allocation assets. Fetches run
// concurrently since they are independent reads; a failed fetch degrades
// that asset to "no usable data" instead of failing the request.
func (s *Service) fetchSeries(ctx context.Context, allocations []domain.Allocation) map[string]*assetSeries {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = make(map[string]*assetSeries, len(allocations))
	)

	for _, alloc := range allocations {
		wg.Add(1)
		go func(assetID string) {
			defer wg.Done()
			series := s.loadSeries(ctx, assetID)
			mu.Lock()
			result[assetID] = series
			mu.Unlock()
		}(alloc.AssetID)
	}
	wg.Wait()

	return result
}

func (s *Service) fetchBenchmarks(ctx context.Context) map[string]*assetSeries {
	result := make(map[string]*assetSeries, len(s.benchmarks))
	for _, spec := range s.benchmarks {
		if series := s.loadSeries(ctx, spec.AssetID); series != nil {
			result[spec.Name] = series
		}
	}
	return result
}

func (s *Service) loadSeries(ctx context.Context, assetID string) *assetSeries {
	asset, err := s.history.GetAsset(ctx, assetID)
	if err != nil {
		s.log.Warn().Err(err).Str("asset_id", assetID).Msg("Failed to load asset metadata")
		return nil
	}
	points, err := s.history.GetHistoricalSeries(ctx, assetID)
	if err != nil {
		s.log.Warn().Err(err).Str("asset_id", assetID).Msg("Failed to load historical series")
		return nil
	}
	return &assetSeries{asset: asset, points: points}
}

// assetReturn computes one allocation's return and weighted contribution.
// Percentage-based assets report normalized levels (base 100) as boundary
// prices since they have no price level of their own.
func (s *assetSeries) assetReturn(period Period, weight float64) AssetReturn {
	ar := AssetReturn{
		AssetID:          s.asset.ID,
		Ticker:           s.asset.Ticker,
		AllocationWeight: weight,
	}

	if s.asset.CalcMode == domain.CalcModePercentage {
		ret := formulas.CompoundChanges(s.changesIn(period.StartDate, period.EndDate))
		ar.StartPrice = 100
		ar.EndPrice = 100 * (1 + ret/100)
		ar.ReturnPercentage = ret
	} else {
		start := PriceAsOf(s.points, period.StartDate)
		end := PriceAsOf(s.points, period.EndDate)
		ar.StartPrice = *start
		ar.EndPrice = *end
		// usable() guarantees a non-zero start price here
		ar.ReturnPercentage = *formulas.SimpleReturn(*start, *end)
	}

	ar.WeightedReturn = ar.ReturnPercentage * weight / 100
	return ar
}

// earliestAcross finds the earliest observation over all fetched series
func earliestAcross(series map[string]*assetSeries) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, s := range series {
		if s == nil {
			continue
		}
		if d, ok := s.earliestDate(); ok && (!found || d.Before(earliest)) {
			earliest = d
			found = true
		}
	}
	return earliest, found
}
