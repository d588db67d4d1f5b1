// Package baskets manages named target allocations used by the
// performance engine and the rebalance planner.
package baskets

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"carteira/internal/database"
	"carteira/internal/domain"
)

// Repository handles basket and allocation database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new baskets repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "baskets").Logger(),
	}
}

// Insert stores a basket and its allocations in one transaction
func (r *Repository) Insert(ctx context.Context, basket domain.Basket) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		now := time.Now().Unix()

		_, err := tx.ExecContext(ctx,
			"INSERT INTO baskets (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			basket.ID, basket.Name, basket.Description, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert basket: %w", err)
		}

		if err := insertAllocations(ctx, tx, basket.ID, basket.Allocations); err != nil {
			return err
		}

		r.log.Debug().
			Str("basket_id", basket.ID).
			Str("name", basket.Name).
			Int("allocations", len(basket.Allocations)).
			Msg("Basket inserted")

		return nil
	})
}

// Update replaces a basket's name, description and allocations
func (r *Repository) Update(ctx context.Context, basket domain.Basket) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		now := time.Now().Unix()

		result, err := tx.ExecContext(ctx,
			"UPDATE baskets SET name = ?, description = ?, updated_at = ? WHERE id = ?",
			basket.Name, basket.Description, now, basket.ID)
		if err != nil {
			return fmt.Errorf("failed to update basket: %w", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrBasketNotFound
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM basket_allocations WHERE basket_id = ?", basket.ID); err != nil {
			return fmt.Errorf("failed to clear basket allocations: %w", err)
		}

		return insertAllocations(ctx, tx, basket.ID, basket.Allocations)
	})
}

// Delete removes a basket and its allocations
func (r *Repository) Delete(ctx context.Context, basketID string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM basket_allocations WHERE basket_id = ?", basketID); err != nil {
			return fmt.Errorf("failed to delete basket allocations: %w", err)
		}

		result, err := tx.ExecContext(ctx, "DELETE FROM baskets WHERE id = ?", basketID)
		if err != nil {
			return fmt.Errorf("failed to delete basket: %w", err)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return ErrBasketNotFound
		}

		r.log.Debug().Str("basket_id", basketID).Msg("Basket deleted")
		return nil
	})
}

// GetByID returns one basket with its allocations
func (r *Repository) GetByID(ctx context.Context, basketID string) (*domain.Basket, error) {
	query := "SELECT id, name, description, created_at, updated_at FROM baskets WHERE id = ?"

	var basket domain.Basket
	var createdAt, updatedAt int64
	err := r.db.QueryRowContext(ctx, query, basketID).Scan(
		&basket.ID, &basket.Name, &basket.Description, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBasketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query basket: %w", err)
	}
	basket.CreatedAt = time.Unix(createdAt, 0).UTC()
	basket.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	allocations, err := r.GetAllocations(ctx, basketID)
	if err != nil {
		return nil, err
	}
	basket.Allocations = allocations

	return &basket, nil
}

// List returns all baskets with their allocations, ordered by name
func (r *Repository) List(ctx context.Context) ([]domain.Basket, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM baskets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query baskets: %w", err)
	}
	defer rows.Close()

	var baskets []domain.Basket
	for rows.Next() {
		var basket domain.Basket
		var createdAt, updatedAt int64
		if err := rows.Scan(&basket.ID, &basket.Name, &basket.Description, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan basket: %w", err)
		}
		basket.CreatedAt = time.Unix(createdAt, 0).UTC()
		basket.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		baskets = append(baskets, basket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating baskets: %w", err)
	}

	for i := range baskets {
		allocations, err := r.GetAllocations(ctx, baskets[i].ID)
		if err != nil {
			return nil, err
		}
		baskets[i].Allocations = allocations
	}

	return baskets, nil
}

// GetAllocations returns a basket's allocations ordered by asset ID
func (r *Repository) GetAllocations(ctx context.Context, basketID string) ([]domain.Allocation, error) {
	query := `
		SELECT basket_id, asset_id, target_percentage
		FROM basket_allocations
		WHERE basket_id = ?
		ORDER BY asset_id
	`

	rows, err := r.db.QueryContext(ctx, query, basketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query basket allocations: %w", err)
	}
	defer rows.Close()

	var allocations []domain.Allocation
	for rows.Next() {
		var a domain.Allocation
		var pctStr string
		if err := rows.Scan(&a.BasketID, &a.AssetID, &pctStr); err != nil {
			return nil, fmt.Errorf("failed to scan basket allocation: %w", err)
		}
		pct, err := decimal.NewFromString(pctStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored target percentage %q: %w", pctStr, err)
		}
		a.TargetPercentage = pct
		allocations = append(allocations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating basket allocations: %w", err)
	}

	return allocations, nil
}

func insertAllocations(ctx context.Context, tx *sql.Tx, basketID string, allocations []domain.Allocation) error {
	for _, a := range allocations {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO basket_allocations (basket_id, asset_id, target_percentage) VALUES (?, ?, ?)",
			basketID, a.AssetID, a.TargetPercentage.String())
		if err != nil {
			return fmt.Errorf("failed to insert allocation for asset %s: %w", a.AssetID, err)
		}
	}
	return nil
}
