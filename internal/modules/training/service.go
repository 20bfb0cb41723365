package training

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/entangler/internal/events"
	"github.com/aristath/entangler/internal/modules/agent"
	"github.com/aristath/entangler/internal/modules/register"
)

// episodeBatchSize is the number of episode rows written per transaction.
const episodeBatchSize = 100

// Service executes training runs. Each run gets one background goroutine
// driving the strictly sequential predict/step/train loop; persistence is
// serialized through the repository and progress is published on the bus.
type Service struct {
	repo *RunRepository
	bus  *events.Bus
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewService creates a training service.
func NewService(repo *RunRepository, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("component", "training").Logger(),
	}
}

// StartRun validates the configuration, persists a new run in the running
// state, and launches its interaction loop in the background. A zero seed is
// replaced with a time-derived one so the stored config stays reproducible.
func (s *Service) StartRun(cfg RunConfig) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	run := &Run{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateRun(run); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(run.ID, cfg)
	}()

	s.log.Info().
		Str("run_id", run.ID).
		Int("episodes", cfg.Episodes).
		Int("num_actions", cfg.NumActions()).
		Int64("seed", cfg.Seed).
		Msg("Training run started")

	return run, nil
}

// Wait blocks until all in-flight runs have finished. Used on shutdown and
// by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Run returns a run by ID.
func (s *Service) Run(id string) (*Run, error) {
	return s.repo.GetRun(id)
}

// Runs lists the most recent runs.
func (s *Service) Runs(limit int) ([]Run, error) {
	return s.repo.ListRuns(limit)
}

// Episodes returns all episode statistics of a run.
func (s *Service) Episodes(id string) ([]EpisodeStat, error) {
	if _, err := s.repo.GetRun(id); err != nil {
		return nil, err
	}
	return s.repo.EpisodesForRun(id)
}

// Curve returns the learning curve of a run: raw episode lengths, a
// moving-average smoothing, and head/tail means.
func (s *Service) Curve(id string) (*Curve, error) {
	if _, err := s.repo.GetRun(id); err != nil {
		return nil, err
	}
	steps, err := s.repo.EpisodeSteps(id)
	if err != nil {
		return nil, err
	}

	window := len(steps) / 50
	if window < 1 {
		window = 1
	}
	smoothed := movingAverage(steps, window)

	points := make([]CurvePoint, len(steps))
	for i, st := range steps {
		points[i] = CurvePoint{Episode: i, Steps: st, Smoothed: smoothed[i]}
	}
	head, tail := headTailMeans(steps)

	return &Curve{
		RunID:    id,
		Points:   points,
		Window:   window,
		HeadMean: head,
		TailMean: tail,
	}, nil
}

// execute drives the full interaction loop of one run.
func (s *Service) execute(runID string, cfg RunConfig) {
	log := s.log.With().Str("run_id", runID).Logger()

	env, err := register.New(cfg.RegisterConfig(), log)
	if err != nil {
		s.fail(runID, fmt.Errorf("failed to construct environment: %w", err))
		return
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ag, err := agent.New(cfg.AgentConfig(env.NumActions()), rng, log)
	if err != nil {
		s.fail(runID, fmt.Errorf("failed to construct agent: %w", err))
		return
	}

	s.bus.Publish(&events.Event{Type: events.RunStarted, RunID: runID})

	steps := make([]int, 0, cfg.Episodes)
	batch := make([]EpisodeStat, 0, episodeBatchSize)

	for ep := 0; ep < cfg.Episodes; ep++ {
		obs := env.Reset()
		var reward float64
		for {
			action := ag.Predict(obs)
			next, r, done, err := env.Step(action)
			if err != nil {
				s.fail(runID, fmt.Errorf("episode %d: %w", ep, err))
				return
			}
			ag.Train(r)
			obs, reward = next, r
			if done {
				break
			}
		}
		ag.ClearTrace()

		stat := EpisodeStat{
			RunID:   runID,
			Episode: ep,
			Steps:   env.Steps(),
			Reward:  reward,
			Solved:  reward == 1,
		}
		steps = append(steps, stat.Steps)
		batch = append(batch, stat)

		if len(batch) >= episodeBatchSize {
			if err := s.repo.InsertEpisodes(batch); err != nil {
				s.fail(runID, err)
				return
			}
			batch = batch[:0]
		}

		s.bus.Publish(&events.Event{
			Type:  events.EpisodeCompleted,
			RunID: runID,
			Data: map[string]interface{}{
				"episode": stat.Episode,
				"steps":   stat.Steps,
				"solved":  stat.Solved,
			},
		})
	}

	if err := s.repo.InsertEpisodes(batch); err != nil {
		s.fail(runID, err)
		return
	}

	head, tail := headTailMeans(steps)
	snapshot, err := ag.Snapshot()
	if err != nil {
		s.fail(runID, err)
		return
	}
	if err := s.repo.CompleteRun(runID, len(steps), head, tail, snapshot); err != nil {
		s.fail(runID, err)
		return
	}

	s.bus.Publish(&events.Event{
		Type:  events.RunCompleted,
		RunID: runID,
		Data: map[string]interface{}{
			"episodes":  len(steps),
			"head_mean": head,
			"tail_mean": tail,
		},
	})

	log.Info().
		Int("episodes", len(steps)).
		Float64("head_mean_steps", head).
		Float64("tail_mean_steps", tail).
		Int("percepts", ag.NumPercepts()).
		Msg("Training run completed")
}

// fail marks the run failed and publishes the failure.
func (s *Service) fail(runID string, cause error) {
	s.log.Error().Err(cause).Str("run_id", runID).Msg("Training run failed")
	if err := s.repo.FailRun(runID, cause.Error()); err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist run failure")
	}
	s.bus.Publish(&events.Event{
		Type:  events.RunFailed,
		RunID: runID,
		Data:  map[string]interface{}{"error": cause.Error()},
	})
}
