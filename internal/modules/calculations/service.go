package calculations

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"carteira/internal/domain"
	"carteira/internal/modules/performance"
)

// Service answers basket performance queries through the cache
type Service struct {
	engine      *performance.Service
	allocations domain.AllocationProvider
	cache       *Cache
	log         zerolog.Logger
}

// NewService creates a new calculations service. cache may be nil, in
// which case every request computes fresh.
func NewService(
	engine *performance.Service,
	allocations domain.AllocationProvider,
	cache *Cache,
	log zerolog.Logger,
) *Service {
	return &Service{
		engine:      engine,
		allocations: allocations,
		cache:       cache,
		log:         log.With().Str("service", "calculations").Logger(),
	}
}

// BasketPerformanceForToken computes a basket's performance over a named
// period, serving from cache when a fresh result exists.
func (s *Service) BasketPerformanceForToken(ctx context.Context, basketID string, token performance.NamedPeriod) (*performance.BasketPerformance, error) {
	period, err := performance.ResolveNamedPeriod(token, time.Now())
	if err != nil {
		return nil, err
	}
	return s.compute(ctx, basketID, cacheKey(basketID, string(token)), period)
}

// BasketPerformanceForRange computes a basket's performance over an
// explicit date window. Explicit ranges bypass the cache: they are
// unbounded in variety and rarely repeat.
func (s *Service) BasketPerformanceForRange(ctx context.Context, basketID string, start, end time.Time) (*performance.BasketPerformance, error) {
	period, err := performance.ResolveExplicitPeriod(start, end)
	if err != nil {
		return nil, err
	}

	allocations, err := s.allocations.GetBasketAllocations(ctx, basketID)
	if err != nil {
		return nil, err
	}

	return s.engine.ComputeBasketPerformance(ctx, allocations, period)
}

// InvalidateBasket drops cached results after a basket definition change
func (s *Service) InvalidateBasket(ctx context.Context, basketID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateBasket(ctx, basketID)
}

func (s *Service) compute(ctx context.Context, basketID, key string, period performance.Period) (*performance.BasketPerformance, error) {
	if s.cache != nil {
		if cached := s.cache.Get(ctx, key); cached != nil {
			s.log.Debug().Str("basket_id", basketID).Str("period", period.Label).Msg("Performance served from cache")
			return cached, nil
		}
	}

	allocations, err := s.allocations.GetBasketAllocations(ctx, basketID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.ComputeBasketPerformance(ctx, allocations, period)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, result)
	}

	return result, nil
}
