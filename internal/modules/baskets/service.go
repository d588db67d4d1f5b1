package baskets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/domain"
)

var (
	// ErrBasketNotFound is returned when a basket ID does not exist
	ErrBasketNotFound = errors.New("basket not found")

	// ErrInvalidAllocation is returned when target percentages do not
	// sum to 100 within tolerance, or an individual target is out of range
	ErrInvalidAllocation = errors.New("invalid basket allocation")

	// ErrDuplicateAsset is returned when the same asset appears twice
	ErrDuplicateAsset = errors.New("duplicate asset in basket")
)

// allocationTolerance absorbs representation noise in user-entered
// percentages. Targets must sum to 100 within this bound.
var allocationTolerance = decimal.NewFromFloat(0.01)

var oneHundred = decimal.NewFromInt(100)

// Service validates and manages baskets
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new baskets service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "baskets").Logger(),
	}
}

// AllocationInput is one requested slice of a new or updated basket
type AllocationInput struct {
	AssetID          string          `json:"asset_id"`
	TargetPercentage decimal.Decimal `json:"target_percentage"`
}

// Create validates and stores a new basket, returning it with its
// generated ID.
func (s *Service) Create(ctx context.Context, name, description string, inputs []AllocationInput) (*domain.Basket, error) {
	if err := validateAllocations(inputs); err != nil {
		return nil, err
	}

	basket := domain.Basket{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
	}
	for _, in := range inputs {
		basket.Allocations = append(basket.Allocations, domain.Allocation{
			BasketID:         basket.ID,
			AssetID:          in.AssetID,
			TargetPercentage: in.TargetPercentage,
		})
	}

	if err := s.repo.Insert(ctx, basket); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("basket_id", basket.ID).
		Str("name", name).
		Int("allocations", len(inputs)).
		Msg("Basket created")

	return &basket, nil
}

// Update validates and replaces an existing basket's definition
func (s *Service) Update(ctx context.Context, basketID, name, description string, inputs []AllocationInput) (*domain.Basket, error) {
	if err := validateAllocations(inputs); err != nil {
		return nil, err
	}

	basket := domain.Basket{
		ID:          basketID,
		Name:        name,
		Description: description,
	}
	for _, in := range inputs {
		basket.Allocations = append(basket.Allocations, domain.Allocation{
			BasketID:         basketID,
			AssetID:          in.AssetID,
			TargetPercentage: in.TargetPercentage,
		})
	}

	if err := s.repo.Update(ctx, basket); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, basketID)
}

// Delete removes a basket
func (s *Service) Delete(ctx context.Context, basketID string) error {
	return s.repo.Delete(ctx, basketID)
}

// Get returns one basket with its allocations
func (s *Service) Get(ctx context.Context, basketID string) (*domain.Basket, error) {
	return s.repo.GetByID(ctx, basketID)
}

// List returns all baskets
func (s *Service) List(ctx context.Context) ([]domain.Basket, error) {
	return s.repo.List(ctx)
}

// GetBasketAllocations returns a basket's allocations for the
// performance engine. An unknown basket is ErrBasketNotFound, not an
// empty slice, so callers can distinguish it from a basket that merely
// has no allocations yet.
func (s *Service) GetBasketAllocations(ctx context.Context, basketID string) ([]domain.Allocation, error) {
	allocations, err := s.repo.GetAllocations(ctx, basketID)
	if err != nil {
		return nil, err
	}
	if len(allocations) == 0 {
		if _, err := s.repo.GetByID(ctx, basketID); err != nil {
			return nil, err
		}
	}
	return allocations, nil
}

// validateAllocations enforces the basket shape: at least one slice,
// no duplicate assets, every target in (0, 100], and a total of 100
// within tolerance.
func validateAllocations(inputs []AllocationInput) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: basket needs at least one allocation", ErrInvalidAllocation)
	}

	seen := make(map[string]bool, len(inputs))
	total := decimal.Zero
	for _, in := range inputs {
		if in.AssetID == "" {
			return fmt.Errorf("%w: allocation is missing an asset", ErrInvalidAllocation)
		}
		if seen[in.AssetID] {
			return fmt.Errorf("%w: asset %s", ErrDuplicateAsset, in.AssetID)
		}
		seen[in.AssetID] = true

		if in.TargetPercentage.LessThanOrEqual(decimal.Zero) || in.TargetPercentage.GreaterThan(oneHundred) {
			return fmt.Errorf("%w: asset %s target %s is out of range", ErrInvalidAllocation, in.AssetID, in.TargetPercentage)
		}
		total = total.Add(in.TargetPercentage)
	}

	if total.Sub(oneHundred).Abs().GreaterThan(allocationTolerance) {
		return fmt.Errorf("%w: targets sum to %s, expected 100", ErrInvalidAllocation, total)
	}

	return nil
}
