package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"carteira/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			asset_id TEXT NOT NULL,
			type TEXT NOT NULL,
			shares TEXT NOT NULL,
			price TEXT NOT NULL,
			executed_at TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE cash_balance (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			amount TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

// stubHistory serves fixed latest prices per asset
type stubHistory struct {
	prices map[string]float64
}

func (s *stubHistory) GetAsset(_ context.Context, assetID string) (*domain.Asset, error) {
	return &domain.Asset{ID: assetID, Ticker: assetID, Type: domain.AssetTypeEquity, CalcMode: domain.CalcModePrice}, nil
}

func (s *stubHistory) GetHistoricalSeries(_ context.Context, assetID string) ([]domain.PricePoint, error) {
	price, ok := s.prices[assetID]
	if !ok {
		return nil, errors.New("no history")
	}
	d := decimal.NewFromFloat(price)
	return []domain.PricePoint{{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: &d}}, nil
}

func newTestService(t *testing.T, prices map[string]float64) *Service {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	return NewService(repo, &stubHistory{prices: prices}, zerolog.Nop())
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func buy(assetID string, shares, price float64, date string) TransactionInput {
	return TransactionInput{AssetID: assetID, Type: domain.TransactionBuy, Shares: dec(shares), PricePerShare: dec(price), Date: date}
}

func sell(assetID string, shares, price float64, date string) TransactionInput {
	return TransactionInput{AssetID: assetID, Type: domain.TransactionSell, Shares: dec(shares), PricePerShare: dec(price), Date: date}
}

func TestAccumulatePositions_BuysBlendAverageCost(t *testing.T) {
	txns := []domain.Transaction{
		{AssetID: "a", Type: domain.TransactionBuy, Shares: dec(10), PricePerShare: dec(100)},
		{AssetID: "a", Type: domain.TransactionBuy, Shares: dec(10), PricePerShare: dec(120)},
	}

	positions := AccumulatePositions(txns)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Shares.Equal(dec(20)))
	assert.True(t, positions[0].AverageCost.Equal(dec(110)), "got %s", positions[0].AverageCost)
}

func TestAccumulatePositions_SellReducesWithoutTouchingCost(t *testing.T) {
	txns := []domain.Transaction{
		{AssetID: "a", Type: domain.TransactionBuy, Shares: dec(10), PricePerShare: dec(100)},
		{AssetID: "a", Type: domain.TransactionSell, Shares: dec(4), PricePerShare: dec(130)},
	}

	positions := AccumulatePositions(txns)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Shares.Equal(dec(6)))
	assert.True(t, positions[0].AverageCost.Equal(dec(100)))
}

func TestAccumulatePositions_ClosedPositionDropped(t *testing.T) {
	txns := []domain.Transaction{
		{AssetID: "a", Type: domain.TransactionBuy, Shares: dec(10), PricePerShare: dec(100)},
		{AssetID: "a", Type: domain.TransactionSell, Shares: dec(10), PricePerShare: dec(110)},
		{AssetID: "b", Type: domain.TransactionBuy, Shares: dec(5), PricePerShare: dec(50)},
	}

	positions := AccumulatePositions(txns)
	require.Len(t, positions, 1)
	assert.Equal(t, "b", positions[0].AssetID)
}

func TestAccumulatePositions_ReopeningStartsFreshCost(t *testing.T) {
	txns := []domain.Transaction{
		{AssetID: "a", Type: domain.TransactionBuy, Shares: dec(10), PricePerShare: dec(100)},
		{AssetID: "a", Type: domain.TransactionSell, Shares: dec(10), PricePerShare: dec(110)},
		{AssetID: "a", Type: domain.TransactionBuy, Shares: dec(2), PricePerShare: dec(90)},
	}

	positions := AccumulatePositions(txns)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Shares.Equal(dec(2)))
	assert.True(t, positions[0].AverageCost.Equal(dec(90)))
}

func TestRecordTransactionAndDerivePositions(t *testing.T) {
	svc := newTestService(t, map[string]float64{"a": 110, "b": 45})
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, buy("a", 50, 100, "2024-01-02"))
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, buy("b", 20, 50, "2024-01-03"))
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, sell("b", 20, 48, "2024-01-10"))
	require.NoError(t, err)

	positions, err := svc.GetCurrentPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "a", positions[0].AssetID)
	assert.True(t, positions[0].CurrentPrice.Equal(dec(110)))
	assert.True(t, positions[0].CurrentValue().Equal(dec(5500)))
}

func TestRecordTransaction_Validation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, TransactionInput{AssetID: "a", Type: "SHORT", Shares: dec(1), PricePerShare: dec(1), Date: "2024-01-02"})
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	_, err = svc.RecordTransaction(ctx, buy("a", 0, 100, "2024-01-02"))
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	_, err = svc.RecordTransaction(ctx, buy("a", 1, -5, "2024-01-02"))
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	_, err = svc.RecordTransaction(ctx, buy("a", 1, 100, "02/01/2024"))
	assert.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestGetCurrentPositions_UnpricedAssetKeepsZeroPrice(t *testing.T) {
	svc := newTestService(t, map[string]float64{})
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, buy("ghost", 10, 100, "2024-01-02"))
	require.NoError(t, err)

	positions, err := svc.GetCurrentPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].CurrentPrice.IsZero())
}

func TestCashBalance(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	cash, err := svc.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.True(t, cash.IsZero())

	require.NoError(t, svc.SetCashBalance(ctx, dec(2500)))
	require.NoError(t, svc.SetCashBalance(ctx, dec(3000)))

	cash, err = svc.GetCashBalance(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(dec(3000)))

	assert.ErrorIs(t, svc.SetCashBalance(ctx, dec(-1)), ErrInvalidTransaction)
}

func TestGetSummary(t *testing.T) {
	svc := newTestService(t, map[string]float64{"a": 100, "b": 50})
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, buy("a", 60, 90, "2024-01-02"))
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, buy("b", 80, 45, "2024-01-02"))
	require.NoError(t, err)
	require.NoError(t, svc.SetCashBalance(ctx, dec(1000)))

	summary, err := svc.GetSummary(ctx)
	require.NoError(t, err)

	// 60*100 + 80*50 = 10000 invested, 11000 total
	assert.True(t, summary.InvestedValue.Equal(dec(10000)))
	assert.True(t, summary.TotalValue.Equal(dec(11000)))
	require.Len(t, summary.Positions, 2)

	// a is 6000 of 11000
	assert.True(t, summary.Positions[0].PercentOfPort.Equal(dec(54.55)), "got %s", summary.Positions[0].PercentOfPort)
}
