package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"carteira/internal/modules/historical"
)

// StalenessJob logs assets whose history has gone stale. Keeping it in
// the log gives the UI's staleness endpoint an audit trail in long
// deployments.
type StalenessJob struct {
	repo *historical.Repository
	log  zerolog.Logger
}

// NewStalenessJob creates the staleness check job
func NewStalenessJob(repo *historical.Repository, log zerolog.Logger) *StalenessJob {
	return &StalenessJob{
		repo: repo,
		log:  log.With().Str("job", "staleness_check").Logger(),
	}
}

// Name returns the job name
func (j *StalenessJob) Name() string {
	return "staleness_check"
}

// Run checks all assets and logs the outdated ones
func (j *StalenessJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	infos, err := j.repo.CheckStaleness(ctx, time.Now())
	if err != nil {
		return err
	}

	outdated := 0
	for _, info := range infos {
		if !info.Outdated {
			continue
		}
		outdated++
		event := j.log.Warn().Str("asset_id", info.AssetID).Str("ticker", info.Ticker)
		if info.LatestDate != nil {
			event = event.Time("latest_date", *info.LatestDate)
		}
		event.Msg("Asset price history is outdated")
	}

	if outdated == 0 {
		j.log.Debug().Int("assets", len(infos)).Msg("All asset histories are fresh")
	}

	return nil
}
