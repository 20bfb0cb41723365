package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/entangler/internal/modules/training"
	helpers "github.com/aristath/entangler/internal/testing"
)

func TestWALCheckpointJob(t *testing.T) {
	db, cleanup := helpers.NewTestDB(t, "runs", training.Schema)
	defer cleanup()

	job := NewWALCheckpointJob(db, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run(context.Background()))
}

func TestStaleRunsJob(t *testing.T) {
	db, cleanup := helpers.NewTestDB(t, "runs", training.Schema)
	defer cleanup()

	repo := training.NewRunRepository(db, zerolog.Nop())

	stale := &training.Run{
		ID:        "run-stale",
		Status:    training.StatusRunning,
		Config:    training.DefaultRunConfig(),
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, repo.CreateRun(stale))
	require.NoError(t, repo.InsertEpisodes([]training.EpisodeStat{
		{RunID: "run-gone", Episode: 0, Steps: 3},
	}))

	job := NewStaleRunsJob(repo, db, zerolog.Nop())
	assert.Equal(t, "stale_runs", job.Name())
	require.NoError(t, job.Run(context.Background()))

	got, err := repo.GetRun("run-stale")
	require.NoError(t, err)
	assert.Equal(t, training.StatusAborted, got.Status)

	orphans, err := repo.EpisodesForRun("run-gone")
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestStaleRunsJobRespectsContext(t *testing.T) {
	db, cleanup := helpers.NewTestDB(t, "runs", training.Schema)
	defer cleanup()

	repo := training.NewRunRepository(db, zerolog.Nop())
	job := NewStaleRunsJob(repo, db, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, job.Run(ctx))
}

func TestSchedulerAddJobRejectsBadSchedule(t *testing.T) {
	db, cleanup := helpers.NewTestDB(t, "runs", training.Schema)
	defer cleanup()

	s := New(zerolog.Nop())
	job := NewWALCheckpointJob(db, zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", job))
	assert.Error(t, s.AddJob("not-a-schedule", job))
}
