// Package portfolio derives current holdings from the transaction ledger.
package portfolio

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/domain"
)

const dateLayout = "2006-01-02"

// Repository handles transaction and cash balance database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// InsertTransaction records one buy or sell
func (r *Repository) InsertTransaction(ctx context.Context, txn domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, asset_id, type, shares, price, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		txn.ID,
		txn.UserID,
		txn.AssetID,
		txn.Type,
		txn.Shares.String(),
		txn.PricePerShare.String(),
		txn.Date.Format(dateLayout),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	r.log.Debug().
		Str("transaction_id", txn.ID).
		Str("asset_id", txn.AssetID).
		Str("type", string(txn.Type)).
		Str("shares", txn.Shares.String()).
		Msg("Transaction recorded")

	return nil
}

// GetTransactions returns all transactions ordered by execution date then
// insertion order, which is the order position derivation requires.
func (r *Repository) GetTransactions(ctx context.Context) ([]domain.Transaction, error) {
	query := `
		SELECT id, user_id, asset_id, type, shares, price, executed_at
		FROM transactions
		ORDER BY executed_at ASC, created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// GetTransactionsByAsset returns one asset's transactions in execution order
func (r *Repository) GetTransactionsByAsset(ctx context.Context, assetID string) ([]domain.Transaction, error) {
	query := `
		SELECT id, user_id, asset_id, type, shares, price, executed_at
		FROM transactions
		WHERE asset_id = ?
		ORDER BY executed_at ASC, created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by asset: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// DeleteTransaction removes one transaction by ID
func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}

	return nil
}

// GetCashBalance returns the uninvested cash amount, zero when unset
func (r *Repository) GetCashBalance(ctx context.Context) (decimal.Decimal, error) {
	var amountStr string
	err := r.db.QueryRowContext(ctx, "SELECT amount FROM cash_balance WHERE id = 1").Scan(&amountStr)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query cash balance: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse stored cash balance %q: %w", amountStr, err)
	}

	return amount, nil
}

// SetCashBalance writes the uninvested cash amount
func (r *Repository) SetCashBalance(ctx context.Context, amount decimal.Decimal) error {
	query := `
		INSERT INTO cash_balance (id, amount, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, amount.String(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set cash balance: %w", err)
	}

	r.log.Debug().Str("amount", amount.String()).Msg("Cash balance updated")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var txn domain.Transaction
	var sharesStr, priceStr, dateStr string

	if err := row.Scan(&txn.ID, &txn.UserID, &txn.AssetID, &txn.Type, &sharesStr, &priceStr, &dateStr); err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}

	shares, err := decimal.NewFromString(sharesStr)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to parse stored shares %q: %w", sharesStr, err)
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to parse stored price %q: %w", priceStr, err)
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to parse transaction date %q: %w", dateStr, err)
	}

	txn.Shares = shares
	txn.PricePerShare = price
	txn.Date = date
	return txn, nil
}
