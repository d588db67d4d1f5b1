package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"carteira/internal/modules/calculations"
)

// CachePruneJob removes expired performance cache rows so the cache
// table does not grow without bound.
type CachePruneJob struct {
	cache *calculations.Cache
	log   zerolog.Logger
}

// NewCachePruneJob creates the cache prune job
func NewCachePruneJob(cache *calculations.Cache, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{
		cache: cache,
		log:   log.With().Str("job", "cache_prune").Logger(),
	}
}

// Name returns the job name
func (j *CachePruneJob) Name() string {
	return "cache_prune"
}

// Run prunes expired cache entries
func (j *CachePruneJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := j.cache.Prune(ctx)
	if err != nil {
		return err
	}

	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Pruned expired performance cache entries")
	}

	return nil
}
