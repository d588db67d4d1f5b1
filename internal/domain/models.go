// Package domain provides core domain models and types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetType represents the category of a tracked asset
type AssetType string

const (
	AssetTypeEquity   AssetType = "EQUITY"
	AssetTypeFund     AssetType = "FUND"
	AssetTypeIndex    AssetType = "INDEX"
	AssetTypeCurrency AssetType = "CURRENCY"
	AssetTypeCrypto   AssetType = "CRYPTO"
)

// CalcMode determines how an asset's historical series is interpreted.
// Price-based assets store levels; percentage-based assets (e.g. a daily
// rate index such as CDI) store their period contribution directly.
type CalcMode string

const (
	CalcModePrice      CalcMode = "price"
	CalcModePercentage CalcMode = "percentage"
)

// Asset represents a tracked financial instrument
type Asset struct {
	ID       string    `json:"id"`
	Ticker   string    `json:"ticker"`
	Name     string    `json:"name"`
	Type     AssetType `json:"type"`
	CalcMode CalcMode  `json:"calc_mode"`
}

// PricePoint is one observation in an asset's historical series.
// Price and PercentageChange are nullable: price-based assets carry Price,
// percentage-based assets carry PercentageChange, and gaps carry neither.
type PricePoint struct {
	Date             time.Time        `json:"date"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	PercentageChange *decimal.Decimal `json:"percentage_change,omitempty"`
}

// Allocation is one (asset, target percentage) slice of a basket.
// Target percentages are kept as decimals so basket validation can use
// tolerance checks without accumulating float drift.
type Allocation struct {
	BasketID         string          `json:"basket_id"`
	AssetID          string          `json:"asset_id"`
	TargetPercentage decimal.Decimal `json:"target_percentage"`
}

// Basket is a named target allocation
type Basket struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Allocations []Allocation `json:"allocations"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TransactionType represents the direction of a portfolio transaction
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Transaction is a recorded buy or sell of an asset
type Transaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AssetID       string          `json:"asset_id"`
	Type          TransactionType `json:"type"`
	Shares        decimal.Decimal `json:"shares"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
	Date          time.Time       `json:"date"`
}

// Position is the current holding of one asset, derived from transactions
type Position struct {
	AssetID      string          `json:"asset_id"`
	Shares       decimal.Decimal `json:"shares"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// CurrentValue returns shares multiplied by the current price
func (p Position) CurrentValue() decimal.Decimal {
	return p.Shares.Mul(p.CurrentPrice)
}
