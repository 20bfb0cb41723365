package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/entangler/internal/database"
)

// WALCheckpointJob truncates the WAL file of the runs database. Episode
// batches are write-heavy, so without periodic checkpoints the WAL can grow
// well past the database itself.
type WALCheckpointJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewWALCheckpointJob creates a WAL checkpoint job
func NewWALCheckpointJob(db *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:  db,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run performs a TRUNCATE checkpoint on the runs database
func (j *WALCheckpointJob) Run(ctx context.Context) error {
	if err := j.db.WALCheckpoint(ctx, "TRUNCATE"); err != nil {
		return fmt.Errorf("checkpoint of %s failed: %w", j.db.Name(), err)
	}

	stats, err := j.db.GetStats()
	if err != nil {
		j.log.Warn().Err(err).Msg("Checkpoint succeeded but stats unavailable")
		return nil
	}

	j.log.Info().
		Int64("db_size_bytes", stats.SizeBytes).
		Int64("wal_size_bytes", stats.WALSizeBytes).
		Msg("WAL checkpoint completed")

	return nil
}
