package historical

import (
	"context"
	"database/sql"
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

	_, err = db.Exec(`
		CREATE TABLE assets (
			id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			calc_mode TEXT NOT NULL DEFAULT 'price',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE historical_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset_id TEXT NOT NULL,
			date TEXT NOT NULL,
			price TEXT,
			percentage_change TEXT,
			UNIQUE(asset_id, date)
		);
	`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) (*Repository, *sql.DB) {
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db, zerolog.Nop()), db
}

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestUpsertAndGetAsset(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	asset := domain.Asset{
		ID:       "asset-1",
		Ticker:   "PETR4",
		Name:     "Petrobras PN",
		Type:     domain.AssetTypeEquity,
		CalcMode: domain.CalcModePrice,
	}
	require.NoError(t, repo.UpsertAsset(ctx, asset))

	got, err := repo.GetAsset(ctx, "asset-1")
	require.NoError(t, err)
	assert.Equal(t, asset, *got)

	byTicker, err := repo.GetAssetByTicker(ctx, "PETR4")
	require.NoError(t, err)
	assert.Equal(t, asset.ID, byTicker.ID)

	// Upsert with the same ID updates in place
	asset.Name = "Petrobras"
	require.NoError(t, repo.UpsertAsset(ctx, asset))

	assets, err := repo.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "Petrobras", assets[0].Name)
}

func TestGetAsset_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetAsset(context.Background(), "missing")
	assert.Error(t, err)
}

func TestUpsertPricesAndGetSeries(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertAsset(ctx, domain.Asset{
		ID: "asset-1", Ticker: "VALE3", Type: domain.AssetTypeEquity, CalcMode: domain.CalcModePrice,
	}))

	// Inserted out of order to verify the read path sorts by date
	points := []domain.PricePoint{
		{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Price: decPtr(62.10)},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: decPtr(68.50)},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Price: decPtr(65.00)},
	}
	require.NoError(t, repo.UpsertPrices(ctx, "asset-1", points))

	series, err := repo.GetHistoricalSeries(ctx, "asset-1")
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), series[2].Date)
	require.NotNil(t, series[0].Price)
	assert.True(t, series[0].Price.Equal(decimal.NewFromFloat(68.50)))
	assert.Nil(t, series[0].PercentageChange)
}

func TestUpsertPrices_OverwritesSameDate(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertPrices(ctx, "asset-1", []domain.PricePoint{{Date: date, Price: decPtr(10)}}))
	require.NoError(t, repo.UpsertPrices(ctx, "asset-1", []domain.PricePoint{{Date: date, Price: decPtr(11)}}))

	series, err := repo.GetHistoricalSeries(ctx, "asset-1")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.True(t, series[0].Price.Equal(decimal.NewFromInt(11)))
}

func TestGetHistoricalSeries_PercentageMode(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	points := []domain.PricePoint{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), PercentageChange: decPtr(0.045)},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), PercentageChange: decPtr(0.044)},
	}
	require.NoError(t, repo.UpsertPrices(ctx, "cdi", points))

	series, err := repo.GetHistoricalSeries(ctx, "cdi")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Nil(t, series[0].Price)
	require.NotNil(t, series[0].PercentageChange)
	assert.True(t, series[0].PercentageChange.Equal(decimal.NewFromFloat(0.045)))
}

func TestGetSeriesRange(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	var points []domain.PricePoint
	for d := 1; d <= 10; d++ {
		points = append(points, domain.PricePoint{
			Date:  time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
			Price: decPtr(float64(100 + d)),
		})
	}
	require.NoError(t, repo.UpsertPrices(ctx, "asset-1", points))

	series, err := repo.GetSeriesRange(ctx, "asset-1",
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), series[2].Date)
}

func TestLatestDate(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, ok, err := repo.LatestDate(ctx, "asset-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.UpsertPrices(ctx, "asset-1", []domain.PricePoint{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: decPtr(10)},
		{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Price: decPtr(11)},
	}))

	latest, ok, err := repo.LatestDate(ctx, "asset-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), latest)
}

func TestCheckStaleness(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertAsset(ctx, domain.Asset{ID: "fresh", Ticker: "AAAA11", Type: domain.AssetTypeFund}))
	require.NoError(t, repo.UpsertAsset(ctx, domain.Asset{ID: "stale", Ticker: "BBBB11", Type: domain.AssetTypeFund}))
	require.NoError(t, repo.UpsertAsset(ctx, domain.Asset{ID: "empty", Ticker: "CCCC11", Type: domain.AssetTypeFund}))

	require.NoError(t, repo.UpsertPrices(ctx, "fresh", []domain.PricePoint{
		{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Price: decPtr(10)},
	}))
	require.NoError(t, repo.UpsertPrices(ctx, "stale", []domain.PricePoint{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Price: decPtr(10)},
	}))

	infos, err := repo.CheckStaleness(ctx, now)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	byID := make(map[string]StalenessInfo)
	for _, info := range infos {
		byID[info.AssetID] = info
	}

	assert.False(t, byID["fresh"].Outdated)
	assert.True(t, byID["stale"].Outdated)
	assert.True(t, byID["empty"].Outdated)
	assert.Nil(t, byID["empty"].LatestDate)
}
