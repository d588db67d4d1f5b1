package baskets

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE baskets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE basket_allocations (
			basket_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			target_percentage TEXT NOT NULL,
			PRIMARY KEY (basket_id, asset_id)
		);
	`)
	require.NoError(t, err)

	return db
}

func newTestService(t *testing.T) *Service {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	return NewService(repo, zerolog.Nop())
}

func pct(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestCreateAndGetBasket(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	basket, err := svc.Create(ctx, "Conservative", "mostly fixed income", []AllocationInput{
		{AssetID: "cdb", TargetPercentage: pct(70)},
		{AssetID: "ivvb", TargetPercentage: pct(30)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, basket.ID)

	got, err := svc.Get(ctx, basket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Conservative", got.Name)
	assert.Equal(t, "mostly fixed income", got.Description)
	require.Len(t, got.Allocations, 2)
	assert.Equal(t, "cdb", got.Allocations[0].AssetID)
	assert.True(t, got.Allocations[0].TargetPercentage.Equal(pct(70)))
}

func TestCreateBasket_ToleranceAccepted(t *testing.T) {
	svc := newTestService(t)

	// 33.33 * 3 = 99.99, within the 0.01 tolerance
	_, err := svc.Create(context.Background(), "Thirds", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(33.33)},
		{AssetID: "b", TargetPercentage: pct(33.33)},
		{AssetID: "c", TargetPercentage: pct(33.33)},
	})
	assert.NoError(t, err)
}

func TestCreateBasket_SumOutOfTolerance(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), "Broken", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(60)},
		{AssetID: "b", TargetPercentage: pct(39.5)},
	})
	assert.ErrorIs(t, err, ErrInvalidAllocation)
}

func TestCreateBasket_DuplicateAsset(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), "Dup", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(50)},
		{AssetID: "a", TargetPercentage: pct(50)},
	})
	assert.ErrorIs(t, err, ErrDuplicateAsset)
}

func TestCreateBasket_RejectsOutOfRangeTargets(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), "Zero", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(0)},
		{AssetID: "b", TargetPercentage: pct(100)},
	})
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	_, err = svc.Create(context.Background(), "Empty", "", nil)
	assert.ErrorIs(t, err, ErrInvalidAllocation)
}

func TestUpdateBasket_ReplacesAllocations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	basket, err := svc.Create(ctx, "Mix", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(50)},
		{AssetID: "b", TargetPercentage: pct(50)},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, basket.ID, "Mix v2", "rebalanced", []AllocationInput{
		{AssetID: "c", TargetPercentage: pct(100)},
	})
	require.NoError(t, err)

	assert.Equal(t, "Mix v2", updated.Name)
	require.Len(t, updated.Allocations, 1)
	assert.Equal(t, "c", updated.Allocations[0].AssetID)
}

func TestUpdateBasket_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Update(context.Background(), "missing", "X", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(100)},
	})
	assert.ErrorIs(t, err, ErrBasketNotFound)
}

func TestDeleteBasket(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	basket, err := svc.Create(ctx, "Gone", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(100)},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, basket.ID))

	_, err = svc.Get(ctx, basket.ID)
	assert.ErrorIs(t, err, ErrBasketNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, basket.ID), ErrBasketNotFound)
}

func TestListBaskets(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Beh", "", []AllocationInput{{AssetID: "a", TargetPercentage: pct(100)}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Alef", "", []AllocationInput{{AssetID: "b", TargetPercentage: pct(100)}})
	require.NoError(t, err)

	baskets, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, baskets, 2)
	assert.Equal(t, "Alef", baskets[0].Name)
	assert.Equal(t, "Beh", baskets[1].Name)
}

func TestGetBasketAllocations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	basket, err := svc.Create(ctx, "Provider", "", []AllocationInput{
		{AssetID: "a", TargetPercentage: pct(60)},
		{AssetID: "b", TargetPercentage: pct(40)},
	})
	require.NoError(t, err)

	allocations, err := svc.GetBasketAllocations(ctx, basket.ID)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, basket.ID, allocations[0].BasketID)
}

func TestGetBasketAllocationsUnknownBasket(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetBasketAllocations(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBasketNotFound)
}
