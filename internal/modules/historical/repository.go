// Package historical stores per-asset daily price history and exposes it
// to the performance engine.
package historical

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/domain"
)

// StaleThreshold is how old the newest observation may be before an
// asset's history is reported as outdated.
const StaleThreshold = 24 * time.Hour

const dateLayout = "2006-01-02"

// Repository handles asset and price history database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new historical repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "historical").Logger(),
	}
}

// GetAsset returns one asset by ID
func (r *Repository) GetAsset(ctx context.Context, assetID string) (*domain.Asset, error) {
	query := "SELECT id, ticker, name, type, calc_mode FROM assets WHERE id = ?"

	var asset domain.Asset
	err := r.db.QueryRowContext(ctx, query, assetID).Scan(
		&asset.ID,
		&asset.Ticker,
		&asset.Name,
		&asset.Type,
		&asset.CalcMode,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("asset %s not found", assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}

	return &asset, nil
}

// GetAssetByTicker returns one asset by its ticker symbol
func (r *Repository) GetAssetByTicker(ctx context.Context, ticker string) (*domain.Asset, error) {
	query := "SELECT id, ticker, name, type, calc_mode FROM assets WHERE ticker = ?"

	var asset domain.Asset
	err := r.db.QueryRowContext(ctx, query, ticker).Scan(
		&asset.ID,
		&asset.Ticker,
		&asset.Name,
		&asset.Type,
		&asset.CalcMode,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("asset with ticker %s not found", ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset by ticker: %w", err)
	}

	return &asset, nil
}

// ListAssets returns all tracked assets ordered by ticker
func (r *Repository) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	query := "SELECT id, ticker, name, type, calc_mode FROM assets ORDER BY ticker"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var asset domain.Asset
		if err := rows.Scan(&asset.ID, &asset.Ticker, &asset.Name, &asset.Type, &asset.CalcMode); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// UpsertAsset inserts or updates an asset
func (r *Repository) UpsertAsset(ctx context.Context, asset domain.Asset) error {
	now := time.Now().Unix()

	query := `
		INSERT INTO assets (id, ticker, name, type, calc_mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ticker = excluded.ticker,
			name = excluded.name,
			type = excluded.type,
			calc_mode = excluded.calc_mode,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, asset.ID, asset.Ticker, asset.Name, asset.Type, asset.CalcMode, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}

	r.log.Debug().
		Str("asset_id", asset.ID).
		Str("ticker", asset.Ticker).
		Msg("Asset upserted")

	return nil
}

// GetHistoricalSeries returns an asset's full history ordered by date
// ascending, as the performance engine requires.
func (r *Repository) GetHistoricalSeries(ctx context.Context, assetID string) ([]domain.PricePoint, error) {
	query := `
		SELECT date, price, percentage_change
		FROM historical_prices
		WHERE asset_id = ?
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical prices: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var dateStr string
		var priceStr, changeStr sql.NullString

		if err := rows.Scan(&dateStr, &priceStr, &changeStr); err != nil {
			return nil, fmt.Errorf("failed to scan historical price: %w", err)
		}

		point, err := parsePoint(dateStr, priceStr, changeStr)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating historical prices: %w", err)
	}

	return points, nil
}

// GetSeriesRange returns an asset's history restricted to [from, to]
func (r *Repository) GetSeriesRange(ctx context.Context, assetID string, from, to time.Time) ([]domain.PricePoint, error) {
	query := `
		SELECT date, price, percentage_change
		FROM historical_prices
		WHERE asset_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, assetID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query historical price range: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var dateStr string
		var priceStr, changeStr sql.NullString

		if err := rows.Scan(&dateStr, &priceStr, &changeStr); err != nil {
			return nil, fmt.Errorf("failed to scan historical price: %w", err)
		}

		point, err := parsePoint(dateStr, priceStr, changeStr)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating historical prices: %w", err)
	}

	return points, nil
}

// UpsertPrices writes a batch of observations for one asset inside a
// single transaction. Existing (asset, date) rows are overwritten.
func (r *Repository) UpsertPrices(ctx context.Context, assetID string, points []domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin price upsert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO historical_prices (asset_id, date, price, percentage_change)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(asset_id, date) DO UPDATE SET
			price = excluded.price,
			percentage_change = excluded.percentage_change
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		var priceStr, changeStr interface{}
		if p.Price != nil {
			priceStr = p.Price.String()
		}
		if p.PercentageChange != nil {
			changeStr = p.PercentageChange.String()
		}

		if _, err := stmt.ExecContext(ctx, assetID, p.Date.Format(dateLayout), priceStr, changeStr); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", assetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price upsert: %w", err)
	}

	r.log.Debug().
		Str("asset_id", assetID).
		Int("points", len(points)).
		Msg("Historical prices upserted")

	return nil
}

// LatestDate returns the newest observation date for an asset.
// ok is false when the asset has no history at all.
func (r *Repository) LatestDate(ctx context.Context, assetID string) (time.Time, bool, error) {
	query := "SELECT MAX(date) FROM historical_prices WHERE asset_id = ?"

	var dateStr sql.NullString
	if err := r.db.QueryRowContext(ctx, query, assetID).Scan(&dateStr); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest price date: %w", err)
	}
	if !dateStr.Valid {
		return time.Time{}, false, nil
	}

	d, err := time.Parse(dateLayout, dateStr.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse latest price date %q: %w", dateStr.String, err)
	}

	return d, true, nil
}

// StalenessInfo describes how fresh one asset's history is
type StalenessInfo struct {
	AssetID    string     `json:"asset_id"`
	Ticker     string     `json:"ticker"`
	LatestDate *time.Time `json:"latest_date,omitempty"`
	Outdated   bool       `json:"outdated"`
}

// CheckStaleness reports, per asset, whether the newest observation is
// older than StaleThreshold relative to now. Assets with no history at
// all are reported as outdated.
func (r *Repository) CheckStaleness(ctx context.Context, now time.Time) ([]StalenessInfo, error) {
	assets, err := r.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-StaleThreshold)

	infos := make([]StalenessInfo, 0, len(assets))
	for _, asset := range assets {
		info := StalenessInfo{AssetID: asset.ID, Ticker: asset.Ticker}

		latest, ok, err := r.LatestDate(ctx, asset.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			info.Outdated = true
		} else {
			info.LatestDate = &latest
			info.Outdated = latest.Before(cutoff)
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// parsePoint converts stored TEXT decimals back into a price point
func parsePoint(dateStr string, priceStr, changeStr sql.NullString) (domain.PricePoint, error) {
	d, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("failed to parse price date %q: %w", dateStr, err)
	}

	point := domain.PricePoint{Date: d}
	if priceStr.Valid {
		price, err := decimal.NewFromString(priceStr.String)
		if err != nil {
			return domain.PricePoint{}, fmt.Errorf("failed to parse stored price %q: %w", priceStr.String, err)
		}
		point.Price = &price
	}
	if changeStr.Valid {
		change, err := decimal.NewFromString(changeStr.String)
		if err != nil {
			return domain.PricePoint{}, fmt.Errorf("failed to parse stored percentage change %q: %w", changeStr.String, err)
		}
		point.PercentageChange = &change
	}

	return point, nil
}
