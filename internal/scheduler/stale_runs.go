package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/entangler/internal/database"
	"github.com/aristath/entangler/internal/modules/training"
)

// staleRunMaxAge is how long a run may stay in the running state before it is
// considered orphaned by a crashed or killed process.
const staleRunMaxAge = 24 * time.Hour

// StaleRunsJob aborts runs stuck in the running state, removes episode rows
// whose parent run no longer exists, and vacuums the database to reclaim the
// freed pages.
type StaleRunsJob struct {
	repo *training.RunRepository
	db   *database.DB
	log  zerolog.Logger
}

// NewStaleRunsJob creates a stale runs cleanup job
func NewStaleRunsJob(repo *training.RunRepository, db *database.DB, log zerolog.Logger) *StaleRunsJob {
	return &StaleRunsJob{
		repo: repo,
		db:   db,
		log:  log.With().Str("job", "stale_runs").Logger(),
	}
}

// Name returns the job name
func (j *StaleRunsJob) Name() string {
	return "stale_runs"
}

// Run aborts stale runs, prunes orphaned episodes, and vacuums
func (j *StaleRunsJob) Run(ctx context.Context) error {
	aborted, err := j.repo.AbortStaleRuns(staleRunMaxAge)
	if err != nil {
		return fmt.Errorf("aborting stale runs failed: %w", err)
	}

	pruned, err := j.repo.PruneOrphanEpisodes()
	if err != nil {
		return fmt.Errorf("pruning orphan episodes failed: %w", err)
	}

	if aborted > 0 || pruned > 0 {
		j.log.Info().
			Int64("aborted_runs", aborted).
			Int64("pruned_episodes", pruned).
			Msg("Stale run cleanup completed")
	}

	// Daily is the only maintenance window this service has.
	if err := j.db.Vacuum(ctx); err != nil {
		return fmt.Errorf("vacuum after cleanup failed: %w", err)
	}

	return nil
}
