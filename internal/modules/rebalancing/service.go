// Package rebalancing turns a target allocation into concrete buy and
// sell suggestions at current prices.
package rebalancing

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/domain"
)

var oneHundred = decimal.NewFromInt(100)

// Suggestion is one proposed trade moving a position toward its target
type Suggestion struct {
	AssetID         string                 `json:"asset_id"`
	Ticker          string                 `json:"ticker,omitempty"`
	CurrentShares   decimal.Decimal        `json:"current_shares"`
	TargetShares    decimal.Decimal        `json:"target_shares"`
	ShareDifference decimal.Decimal        `json:"share_difference"`
	Action          domain.TransactionType `json:"action"`
	EstimatedCost   decimal.Decimal        `json:"estimated_cost"`
	CurrentPercent  decimal.Decimal        `json:"current_percent"`
	TargetPercent   decimal.Decimal        `json:"target_percent"`
}

// Plan is the full set of suggested trades with cash impact.
// TotalEstimatedCost is the money the plan spends, so it counts buy
// legs only; sell proceeds flow into CashAfterRebalance instead.
type Plan struct {
	Suggestions        []Suggestion    `json:"suggestions"`
	TotalBuyCost       decimal.Decimal `json:"total_buy_cost"`
	TotalSellProceeds  decimal.Decimal `json:"total_sell_proceeds"`
	TotalEstimatedCost decimal.Decimal `json:"total_estimated_cost"`
	CashAfterRebalance decimal.Decimal `json:"cash_after_rebalance"`
	Warnings           []string        `json:"warnings,omitempty"`
}

// Service computes rebalance plans
type Service struct {
	history domain.PriceHistoryProvider
	log     zerolog.Logger
}

// NewService creates a new rebalancing service
func NewService(history domain.PriceHistoryProvider, log zerolog.Logger) *Service {
	return &Service{
		history: history,
		log:     log.With().Str("service", "rebalancing").Logger(),
	}
}

// ComputePlan sizes each target allocation at its current price and
// derives the share delta against current holdings. Whole shares only:
// target shares round down. Allocations that cannot be priced are
// skipped and reported in Warnings rather than aborting the plan.
func (s *Service) ComputePlan(
	ctx context.Context,
	allocations []domain.Allocation,
	positions []domain.Position,
	prices map[string]decimal.Decimal,
	targetAmount decimal.Decimal,
	cashBalance decimal.Decimal,
) (*Plan, error) {
	if targetAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("target amount must be positive, got %s", targetAmount)
	}

	sharesByAsset := make(map[string]decimal.Decimal, len(positions))
	for _, pos := range positions {
		sharesByAsset[pos.AssetID] = pos.Shares
	}

	portfolioValue := decimal.Zero
	for _, pos := range positions {
		if price, ok := prices[pos.AssetID]; ok {
			portfolioValue = portfolioValue.Add(pos.Shares.Mul(price))
		}
	}

	plan := &Plan{
		TotalBuyCost:      decimal.Zero,
		TotalSellProceeds: decimal.Zero,
	}

	for _, alloc := range allocations {
		price, ok := prices[alloc.AssetID]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			warning := fmt.Sprintf("asset %s has no current price, skipped", alloc.AssetID)
			plan.Warnings = append(plan.Warnings, warning)
			s.log.Warn().
				Str("asset_id", alloc.AssetID).
				Msg("Allocation cannot be priced, skipped in rebalance plan")
			continue
		}

		currentShares := sharesByAsset[alloc.AssetID]
		targetValue := targetAmount.Mul(alloc.TargetPercentage).Div(oneHundred)
		targetShares := targetValue.Div(price).Floor()
		diff := targetShares.Sub(currentShares)

		if diff.IsZero() {
			continue
		}

		suggestion := Suggestion{
			AssetID:         alloc.AssetID,
			CurrentShares:   currentShares,
			TargetShares:    targetShares,
			ShareDifference: diff,
			EstimatedCost:   diff.Abs().Mul(price),
			TargetPercent:   alloc.TargetPercentage,
		}
		if portfolioValue.IsPositive() {
			suggestion.CurrentPercent = currentShares.Mul(price).Div(portfolioValue).Mul(oneHundred).Round(2)
		}

		if diff.IsPositive() {
			suggestion.Action = domain.TransactionBuy
			plan.TotalBuyCost = plan.TotalBuyCost.Add(suggestion.EstimatedCost)
		} else {
			suggestion.Action = domain.TransactionSell
			plan.TotalSellProceeds = plan.TotalSellProceeds.Add(suggestion.EstimatedCost)
		}

		if ticker, err := s.lookupTicker(ctx, alloc.AssetID); err == nil {
			suggestion.Ticker = ticker
		}

		plan.Suggestions = append(plan.Suggestions, suggestion)
	}

	sort.Slice(plan.Suggestions, func(i, j int) bool {
		return plan.Suggestions[i].AssetID < plan.Suggestions[j].AssetID
	})

	plan.TotalEstimatedCost = plan.TotalBuyCost
	plan.CashAfterRebalance = cashBalance.Sub(plan.TotalBuyCost).Add(plan.TotalSellProceeds)

	s.log.Info().
		Int("suggestions", len(plan.Suggestions)).
		Int("warnings", len(plan.Warnings)).
		Str("total_buy_cost", plan.TotalBuyCost.String()).
		Str("total_sell_proceeds", plan.TotalSellProceeds.String()).
		Msg("Rebalance plan computed")

	return plan, nil
}

// LatestPrices resolves the newest stored price for each allocation's
// asset. Assets without any stored price are simply absent from the map;
// ComputePlan turns that into a warning.
func (s *Service) LatestPrices(ctx context.Context, allocations []domain.Allocation) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(allocations))
	if s.history == nil {
		return prices
	}

	for _, alloc := range allocations {
		points, err := s.history.GetHistoricalSeries(ctx, alloc.AssetID)
		if err != nil {
			s.log.Warn().Err(err).Str("asset_id", alloc.AssetID).Msg("Failed to load history for pricing")
			continue
		}
		for i := len(points) - 1; i >= 0; i-- {
			if points[i].Price != nil {
				prices[alloc.AssetID] = *points[i].Price
				break
			}
		}
	}

	return prices
}

func (s *Service) lookupTicker(ctx context.Context, assetID string) (string, error) {
	if s.history == nil {
		return "", fmt.Errorf("no history provider")
	}
	asset, err := s.history.GetAsset(ctx, assetID)
	if err != nil {
		return "", err
	}
	return asset.Ticker, nil
}
