// Package training runs agent-environment interaction loops as persisted,
// observable background runs: N independent episodes of predict/step/train
// against a fresh environment and agent pair, with per-episode statistics
// stored for learning-curve analysis.
package training

import (
	"fmt"
	"time"

	"github.com/aristath/entangler/internal/modules/agent"
	"github.com/aristath/entangler/internal/modules/register"
)

// RunStatus is the lifecycle state of a training run.
type RunStatus string

const (
	// StatusRunning - the background loop is executing episodes
	StatusRunning RunStatus = "running"
	// StatusCompleted - all episodes finished, summary and snapshot stored
	StatusCompleted RunStatus = "completed"
	// StatusFailed - the loop aborted with an error
	StatusFailed RunStatus = "failed"
	// StatusAborted - marked stale by the maintenance job
	StatusAborted RunStatus = "aborted"
)

// RunConfig holds everything needed to reproduce a training run. A zero
// Seed is replaced with a time-derived seed before the run is persisted,
// so the stored config always reproduces the run exactly.
type RunConfig struct {
	NumIons  int             `json:"num_ions"`
	Dim      int             `json:"dim"`
	Goals    [][]int         `json:"goal"`
	Phases   register.Phases `json:"phases"`
	MaxSteps int             `json:"max_steps"`
	Episodes int             `json:"episodes"`
	Glow     float64         `json:"glow"`
	Damp     float64         `json:"damp"`
	Beta     float64         `json:"beta"`
	Seed     int64           `json:"seed"`
}

// DefaultRunConfig returns the standard GHZ-search run: the default register
// configuration driven by a default PS agent for 5000 episodes.
func DefaultRunConfig() RunConfig {
	reg := register.DefaultConfig()
	return RunConfig{
		NumIons:  reg.NumIons,
		Dim:      reg.Dim,
		Goals:    reg.Goals,
		Phases:   reg.Phases,
		MaxSteps: reg.MaxSteps,
		Episodes: 5000,
		Glow:     0.1,
		Damp:     0,
		Beta:     0.1,
	}
}

// RegisterConfig projects the environment part of the run configuration.
func (c RunConfig) RegisterConfig() register.Config {
	return register.Config{
		NumIons:  c.NumIons,
		Dim:      c.Dim,
		Goals:    c.Goals,
		Phases:   c.Phases,
		MaxSteps: c.MaxSteps,
	}
}

// AgentConfig projects the agent part of the run configuration for the
// given action count.
func (c RunConfig) AgentConfig(numActions int) agent.Config {
	return agent.Config{
		NumActions: numActions,
		Glow:       c.Glow,
		Damp:       c.Damp,
		Beta:       c.Beta,
	}
}

// NumActions returns the cardinality of the gate catalog this configuration
// induces.
func (c RunConfig) NumActions() int {
	return c.NumIons*len(c.Phases.PulseAngles)*len(c.Phases.PulsePhases) + len(c.Phases.MSPhases)
}

// Validate checks the run configuration by delegating to the environment and
// agent parameter validation, plus the run-level episode count.
func (c RunConfig) Validate() error {
	if err := c.RegisterConfig().Validate(); err != nil {
		return err
	}
	if err := c.AgentConfig(c.NumActions()).Validate(); err != nil {
		return err
	}
	if c.Episodes < 1 {
		return fmt.Errorf("episodes must be positive, got %d", c.Episodes)
	}
	return nil
}

// Run is the persisted record of a training run.
type Run struct {
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	Config        RunConfig  `json:"config"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Episodes      int        `json:"episodes"`
	HeadMeanSteps float64    `json:"head_mean_steps"`
	TailMeanSteps float64    `json:"tail_mean_steps"`
	Error         string     `json:"error,omitempty"`
}

// EpisodeStat is the per-episode record of a run.
type EpisodeStat struct {
	RunID   string  `json:"run_id"`
	Episode int     `json:"episode"`
	Steps   int     `json:"steps"`
	Reward  float64 `json:"reward"`
	Solved  bool    `json:"solved"`
}

// CurvePoint is one point of a learning curve.
type CurvePoint struct {
	Episode  int     `json:"episode"`
	Steps    int     `json:"steps"`
	Smoothed float64 `json:"smoothed"`
}

// Curve is the learning-curve summary of a run: raw and moving-average
// episode lengths plus head/tail means over the first and last 10% of
// episodes (the learning evidence).
type Curve struct {
	RunID    string       `json:"run_id"`
	Points   []CurvePoint `json:"points"`
	Window   int          `json:"window"`
	HeadMean float64      `json:"head_mean"`
	TailMean float64      `json:"tail_mean"`
}

// headTailMeans returns the mean of the first and last 10% of the step
// counts (at least one episode each).
func headTailMeans(steps []int) (float64, float64) {
	if len(steps) == 0 {
		return 0, 0
	}
	window := len(steps) / 10
	if window < 1 {
		window = 1
	}

	mean := func(chunk []int) float64 {
		sum := 0
		for _, s := range chunk {
			sum += s
		}
		return float64(sum) / float64(len(chunk))
	}
	return mean(steps[:window]), mean(steps[len(steps)-window:])
}

// movingAverage smooths the step counts with a trailing window.
func movingAverage(steps []int, window int) []float64 {
	out := make([]float64, len(steps))
	sum := 0
	for i, s := range steps {
		sum += s
		if i >= window {
			sum -= steps[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = float64(sum) / float64(n)
	}
	return out
}
