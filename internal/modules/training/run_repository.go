package training

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/entangler/internal/database"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// Schema is the runs database schema, owned by this repository and applied
// at startup (idempotent).
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	config          TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	completed_at    INTEGER,
	episodes        INTEGER NOT NULL DEFAULT 0,
	head_mean_steps REAL,
	tail_mean_steps REAL,
	agent_snapshot  BLOB,
	error           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS episodes (
	run_id  TEXT NOT NULL,
	episode INTEGER NOT NULL,
	steps   INTEGER NOT NULL,
	reward  REAL NOT NULL,
	solved  INTEGER NOT NULL,
	PRIMARY KEY (run_id, episode)
);

CREATE INDEX IF NOT EXISTS idx_episodes_run ON episodes(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

// RunRepository handles persistence of runs and their episode statistics.
type RunRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *database.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("component", "run_repository").Logger(),
	}
}

// InitSchema applies the runs schema.
func (r *RunRepository) InitSchema() error {
	if _, err := r.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to apply runs schema: %w", err)
	}
	return nil
}

// CreateRun persists a new run row.
func (r *RunRepository) CreateRun(run *Run) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO runs (id, status, config, created_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, string(run.Status), string(cfg), run.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	r.log.Info().Str("run_id", run.ID).Msg("Run created")
	return nil
}

// GetRun retrieves a run by ID. Returns ErrRunNotFound if no row exists.
func (r *RunRepository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, status, config, created_at, completed_at,
		       episodes, head_mean_steps, tail_mean_steps, error
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepository) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT id, status, config, created_at, completed_at,
		       episodes, head_mean_steps, tail_mean_steps, error
		FROM runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun scans one run row via the given Scan function.
func scanRun(scan func(dest ...interface{}) error) (*Run, error) {
	var (
		run         Run
		status      string
		cfgJSON     string
		createdAt   int64
		completedAt sql.NullInt64
		headMean    sql.NullFloat64
		tailMean    sql.NullFloat64
	)
	err := scan(&run.ID, &status, &cfgJSON, &createdAt, &completedAt,
		&run.Episodes, &headMean, &tailMean, &run.Error)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		run.CompletedAt = &t
	}
	run.HeadMeanSteps = headMean.Float64
	run.TailMeanSteps = tailMean.Float64

	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run config: %w", err)
	}
	return &run, nil
}

// CompleteRun marks a run completed, storing the episode count, the
// learning-curve summary, and the agent's serialized weight graph.
func (r *RunRepository) CompleteRun(id string, episodes int, headMean, tailMean float64, snapshot []byte) error {
	_, err := r.db.Exec(`
		UPDATE runs
		SET status = ?, completed_at = ?, episodes = ?,
		    head_mean_steps = ?, tail_mean_steps = ?, agent_snapshot = ?
		WHERE id = ?
	`, string(StatusCompleted), time.Now().Unix(), episodes, headMean, tailMean, snapshot, id)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", id, err)
	}
	return nil
}

// FailRun marks a run failed with a cause.
func (r *RunRepository) FailRun(id string, cause string) error {
	_, err := r.db.Exec(`
		UPDATE runs
		SET status = ?, completed_at = ?, error = ?
		WHERE id = ?
	`, string(StatusFailed), time.Now().Unix(), cause, id)
	if err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", id, err)
	}
	return nil
}

// InsertEpisodes persists a batch of episode statistics in one transaction.
func (r *RunRepository) InsertEpisodes(stats []EpisodeStat) error {
	if len(stats) == 0 {
		return nil
	}

	return database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO episodes (run_id, episode, steps, reward, solved)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare episode insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range stats {
			if _, err := stmt.Exec(s.RunID, s.Episode, s.Steps, s.Reward, s.Solved); err != nil {
				return fmt.Errorf("failed to insert episode %d of run %s: %w", s.Episode, s.RunID, err)
			}
		}
		return nil
	})
}

// EpisodesForRun returns all episode statistics of a run in episode order.
func (r *RunRepository) EpisodesForRun(id string) ([]EpisodeStat, error) {
	rows, err := r.db.Query(`
		SELECT run_id, episode, steps, reward, solved
		FROM episodes
		WHERE run_id = ?
		ORDER BY episode
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes for run %s: %w", id, err)
	}
	defer rows.Close()

	var stats []EpisodeStat
	for rows.Next() {
		var s EpisodeStat
		if err := rows.Scan(&s.RunID, &s.Episode, &s.Steps, &s.Reward, &s.Solved); err != nil {
			return nil, fmt.Errorf("failed to scan episode row: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// EpisodeSteps returns just the per-episode step counts of a run, in order.
func (r *RunRepository) EpisodeSteps(id string) ([]int, error) {
	rows, err := r.db.Query(`
		SELECT steps FROM episodes WHERE run_id = ? ORDER BY episode
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query episode steps for run %s: %w", id, err)
	}
	defer rows.Close()

	var steps []int
	for rows.Next() {
		var s int
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan step count: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// AgentSnapshot returns the serialized agent weight graph of a completed run.
func (r *RunRepository) AgentSnapshot(id string) ([]byte, error) {
	var snapshot []byte
	err := r.db.QueryRow(`SELECT agent_snapshot FROM runs WHERE id = ?`, id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent snapshot for run %s: %w", id, err)
	}
	return snapshot, nil
}

// AbortStaleRuns marks runs stuck in the running state for longer than
// maxAge as aborted. Returns the number of runs marked.
func (r *RunRepository) AbortStaleRuns(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := r.db.Exec(`
		UPDATE runs
		SET status = ?, completed_at = ?, error = 'aborted as stale'
		WHERE status = ? AND created_at < ?
	`, string(StatusAborted), time.Now().Unix(), string(StatusRunning), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to abort stale runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PruneOrphanEpisodes deletes episode rows whose run no longer exists.
// Returns the number of rows deleted.
func (r *RunRepository) PruneOrphanEpisodes() (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM episodes
		WHERE run_id NOT IN (SELECT id FROM runs)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphan episodes: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
