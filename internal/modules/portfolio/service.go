package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/domain"
)

// ErrInvalidTransaction is returned for malformed transaction input
var ErrInvalidTransaction = errors.New("invalid transaction")

// Service derives positions from the transaction ledger and prices them
// against stored history.
type Service struct {
	repo    *Repository
	history domain.PriceHistoryProvider
	log     zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo *Repository, history domain.PriceHistoryProvider, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		history: history,
		log:     log.With().Str("service", "portfolio").Logger(),
	}
}

// TransactionInput is a requested buy or sell
type TransactionInput struct {
	UserID        string                 `json:"user_id"`
	AssetID       string                 `json:"asset_id"`
	Type          domain.TransactionType `json:"type"`
	Shares        decimal.Decimal        `json:"shares"`
	PricePerShare decimal.Decimal        `json:"price_per_share"`
	Date          string                 `json:"date"`
}

// RecordTransaction validates and stores one transaction
func (s *Service) RecordTransaction(ctx context.Context, in TransactionInput) (*domain.Transaction, error) {
	if in.Type != domain.TransactionBuy && in.Type != domain.TransactionSell {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, in.Type)
	}
	if in.Shares.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: shares must be positive", ErrInvalidTransaction)
	}
	if in.PricePerShare.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidTransaction)
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	txn := domain.Transaction{
		ID:            uuid.New().String(),
		UserID:        in.UserID,
		AssetID:       in.AssetID,
		Type:          in.Type,
		Shares:        in.Shares,
		PricePerShare: in.PricePerShare,
		Date:          date,
	}

	if err := s.repo.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}

	return &txn, nil
}

// GetCurrentPositions folds the full transaction history into current
// holdings and prices them at each asset's latest observation. Assets
// without any stored price keep a zero CurrentPrice.
func (s *Service) GetCurrentPositions(ctx context.Context) ([]domain.Position, error) {
	txns, err := s.repo.GetTransactions(ctx)
	if err != nil {
		return nil, err
	}

	positions := AccumulatePositions(txns)

	for i := range positions {
		price, err := s.latestPrice(ctx, positions[i].AssetID)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("asset_id", positions[i].AssetID).
				Msg("Failed to price position, leaving at zero")
			continue
		}
		positions[i].CurrentPrice = price
	}

	return positions, nil
}

// Summary describes the portfolio's current state
type Summary struct {
	Positions     []PositionView  `json:"positions"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	InvestedValue decimal.Decimal `json:"invested_value"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// PositionView is a position with its share of the invested total
type PositionView struct {
	domain.Position
	Value         decimal.Decimal `json:"value"`
	PercentOfPort decimal.Decimal `json:"percent_of_portfolio"`
}

// GetSummary returns current positions, cash, and total values
func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	positions, err := s.GetCurrentPositions(ctx)
	if err != nil {
		return nil, err
	}

	cash, err := s.repo.GetCashBalance(ctx)
	if err != nil {
		return nil, err
	}

	invested := decimal.Zero
	for _, p := range positions {
		invested = invested.Add(p.CurrentValue())
	}
	total := invested.Add(cash)

	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		view := PositionView{Position: p, Value: p.CurrentValue()}
		if total.IsPositive() {
			view.PercentOfPort = view.Value.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
		}
		views = append(views, view)
	}

	return &Summary{
		Positions:     views,
		CashBalance:   cash,
		InvestedValue: invested,
		TotalValue:    total,
	}, nil
}

// GetCashBalance returns the uninvested cash amount
func (s *Service) GetCashBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.GetCashBalance(ctx)
}

// SetCashBalance updates the uninvested cash amount
func (s *Service) SetCashBalance(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: cash balance cannot be negative", ErrInvalidTransaction)
	}
	return s.repo.SetCashBalance(ctx, amount)
}

// AccumulatePositions folds transactions into per-asset positions.
// Buys raise the share count and blend the average cost; sells reduce
// shares without touching cost. Fully closed positions are dropped.
func AccumulatePositions(txns []domain.Transaction) []domain.Position {
	byAsset := make(map[string]*domain.Position)

	for _, txn := range txns {
		pos, ok := byAsset[txn.AssetID]
		if !ok {
			pos = &domain.Position{AssetID: txn.AssetID}
			byAsset[txn.AssetID] = pos
		}

		switch txn.Type {
		case domain.TransactionBuy:
			newShares := pos.Shares.Add(txn.Shares)
			cost := pos.Shares.Mul(pos.AverageCost).Add(txn.Shares.Mul(txn.PricePerShare))
			pos.AverageCost = cost.Div(newShares)
			pos.Shares = newShares
		case domain.TransactionSell:
			pos.Shares = pos.Shares.Sub(txn.Shares)
		}

		if !pos.Shares.IsPositive() {
			delete(byAsset, txn.AssetID)
		}
	}

	positions := make([]domain.Position, 0, len(byAsset))
	for _, pos := range byAsset {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].AssetID < positions[j].AssetID
	})

	return positions
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format")
	}
	return d, nil
}

// latestPrice returns the newest stored price for an asset
func (s *Service) latestPrice(ctx context.Context, assetID string) (decimal.Decimal, error) {
	points, err := s.history.GetHistoricalSeries(ctx, assetID)
	if err != nil {
		return decimal.Zero, err
	}

	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Price != nil {
			return *points[i].Price, nil
		}
	}

	return decimal.Zero, fmt.Errorf("no price history for asset %s", assetID)
}
