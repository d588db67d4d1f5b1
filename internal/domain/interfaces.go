package domain

import "context"

// PriceHistoryProvider supplies ordered historical series for assets.
// The analytics engine depends on this interface, never on the concrete
// store, so histories can come from SQLite, a fixture, or a remote cache.
type PriceHistoryProvider interface {
	// GetHistoricalSeries returns the asset's points ordered by date ascending.
	GetHistoricalSeries(ctx context.Context, assetID string) ([]PricePoint, error)
	// GetAsset returns asset metadata (calc mode is needed to interpret the series).
	GetAsset(ctx context.Context, assetID string) (*Asset, error)
}

// AllocationProvider supplies the target allocations of a basket
type AllocationProvider interface {
	GetBasketAllocations(ctx context.Context, basketID string) ([]Allocation, error)
}
