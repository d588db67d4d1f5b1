// Package calculations orchestrates performance computation with a
// persistent result cache.
package calculations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"carteira/internal/modules/performance"
)

// DefaultTTL is how long a cached performance result stays valid.
// History only gains one observation per day, so an hour is a safe
// compromise between freshness and recomputation cost.
const DefaultTTL = time.Hour

// Cache stores serialized performance results with an expiry
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger

	now func() time.Time
}

// NewCache creates a new result cache. A zero ttl uses DefaultTTL.
func NewCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "performance_cache").Logger(),
		now: time.Now,
	}
}

// Get returns a cached result, or nil when absent or expired.
// Cache failures are logged and reported as misses, never as errors.
func (c *Cache) Get(ctx context.Context, key string) *performance.BasketPerformance {
	query := "SELECT payload, expires_at FROM performance_cache WHERE cache_key = ?"

	var payload []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, query, key).Scan(&payload, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			c.log.Error().Err(err).Str("key", key).Msg("Failed to read cached result")
		}
		return nil
	}

	if c.now().Unix() >= expiresAt {
		return nil
	}

	var result performance.BasketPerformance
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Failed to decode cached result")
		return nil
	}

	return &result
}

// Set stores a result under the key, replacing any previous entry
func (c *Cache) Set(ctx context.Context, key string, result *performance.BasketPerformance) {
	payload, err := msgpack.Marshal(result)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Failed to encode result for cache")
		return
	}

	now := c.now()
	query := `
		INSERT INTO performance_cache (cache_key, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key)
		DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at, expires_at = excluded.expires_at
	`

	_, err = c.db.ExecContext(ctx, query, key, payload, now.Unix(), now.Add(c.ttl).Unix())
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Failed to cache result")
	}
}

// InvalidateBasket removes all cached results for one basket.
// Called when the basket's allocations change.
func (c *Cache) InvalidateBasket(ctx context.Context, basketID string) error {
	query := "DELETE FROM performance_cache WHERE cache_key LIKE ? || ':%'"
	_, err := c.db.ExecContext(ctx, query, basketID)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache for basket %s: %w", basketID, err)
	}
	return nil
}

// Prune removes expired entries
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx, "DELETE FROM performance_cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune performance cache: %w", err)
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

// cacheKey builds the key for one basket and period token combination
func cacheKey(basketID, token string) string {
	return basketID + ":" + token
}
