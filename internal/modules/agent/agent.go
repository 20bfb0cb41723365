// Package agent implements a two-layered projective simulation (PS) learner:
// a lazily grown percept→action weight graph sampled by softmax, reinforced
// through a glow (eligibility) trace and damped toward the neutral weight 1.
package agent

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
)

// ErrInvalidConfig reports malformed agent construction parameters.
var ErrInvalidConfig = errors.New("invalid agent configuration")

// Percept is anything that encodes itself as a canonical hash key. The
// register's Observation satisfies this; the agent never inspects amplitudes.
type Percept interface {
	PerceptKey() string
}

// Config holds the agent's learning parameters.
type Config struct {
	NumActions int     `json:"num_actions"`
	Glow       float64 `json:"glow"` // eta: per-step geometric decay of the trace is (1-glow)
	Damp       float64 `json:"damp"` // gamma: pull of h-values toward 1 per update
	Beta       float64 `json:"beta"` // softmax inverse temperature
}

// DefaultConfig returns the standard PS parameters for a given action count.
func DefaultConfig(numActions int) Config {
	return Config{
		NumActions: numActions,
		Glow:       0.1,
		Damp:       0,
		Beta:       0.1,
	}
}

// Validate checks the learning parameters.
func (c Config) Validate() error {
	if c.NumActions < 1 {
		return fmt.Errorf("%w: num_actions must be positive, got %d", ErrInvalidConfig, c.NumActions)
	}
	if c.Glow < 0 || c.Glow > 1 {
		return fmt.Errorf("%w: glow must be in [0,1], got %g", ErrInvalidConfig, c.Glow)
	}
	if c.Damp < 0 || c.Damp > 1 {
		return fmt.Errorf("%w: damp must be in [0,1], got %g", ErrInvalidConfig, c.Damp)
	}
	if c.Beta <= 0 {
		return fmt.Errorf("%w: beta must be positive, got %g", ErrInvalidConfig, c.Beta)
	}
	return nil
}

// Agent is a tabular PS learner. Weights persist across episodes; only the
// glow trace is cleared between them. Single-writer: the rng and matrices
// are mutated without locking, one goroutine drives an instance.
type Agent struct {
	cfg      Config
	rng      *rand.Rand
	percepts map[string]int
	h        [][]float64 // h-values, init 1 per new percept row
	g        [][]float64 // glow trace, init 0 per new percept row
	log      zerolog.Logger
}

// New creates an agent with an empty percept graph. The rng is shared with
// the caller so a whole run can be seeded once for reproducibility.
func New(cfg Config, rng *rand.Rand, log zerolog.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	return &Agent{
		cfg:      cfg,
		rng:      rng,
		percepts: make(map[string]int),
		log:      log.With().Str("component", "agent").Logger(),
	}, nil
}

// Config returns the agent's learning parameters.
func (a *Agent) Config() Config {
	return a.cfg
}

// NumPercepts returns the number of distinct percepts seen so far.
func (a *Agent) NumPercepts() int {
	return len(a.percepts)
}

// Predict maps the observation to a percept (creating a fresh row of h=1,
// g=0 weights if unseen), samples an action from the softmax over the
// percept's h-values, and marks the visited pair in the glow trace.
func (a *Agent) Predict(obs Percept) int {
	key := obs.PerceptKey()
	idx, ok := a.percepts[key]
	if !ok {
		idx = len(a.h)
		a.percepts[key] = idx

		hRow := make([]float64, a.cfg.NumActions)
		for i := range hRow {
			hRow[i] = 1
		}
		a.h = append(a.h, hRow)
		a.g = append(a.g, make([]float64, a.cfg.NumActions))

		a.log.Debug().Int("percepts", len(a.percepts)).Msg("New percept added")
	}

	action := a.sample(a.actionProbabilities(a.h[idx]))
	a.g[idx][action] = 1
	return action
}

// Train applies the PS update to the whole graph:
//
//	h ← h - damp·(h-1) + reward·g
//	g ← (1-glow)·g
//
// so pairs visited recently carry the most credit (backward-view eligibility
// trace with geometric decay). A call with an empty graph is a no-op.
func (a *Agent) Train(reward float64) {
	decay := 1 - a.cfg.Glow
	for p := range a.h {
		for j := range a.h[p] {
			a.h[p][j] += -a.cfg.Damp*(a.h[p][j]-1) + reward*a.g[p][j]
			a.g[p][j] *= decay
		}
	}
}

// ClearTrace zeroes the glow trace at an episode boundary. Accumulated
// h-values are retained across episodes.
func (a *Agent) ClearTrace() {
	for p := range a.g {
		for j := range a.g[p] {
			a.g[p][j] = 0
		}
	}
}

// actionProbabilities computes the softmax over a percept's h-values with
// inverse temperature beta, rescaled by the maximum to avoid overflow.
func (a *Agent) actionProbabilities(h []float64) []float64 {
	maxH := h[0]
	for _, v := range h[1:] {
		if v > maxH {
			maxH = v
		}
	}

	probs := make([]float64, len(h))
	var norm float64
	for i, v := range h {
		probs[i] = math.Exp(a.cfg.Beta * (v - maxH))
		norm += probs[i]
	}
	for i := range probs {
		probs[i] /= norm
	}
	return probs
}

// sample draws an index from a normalized distribution.
func (a *Agent) sample(probs []float64) int {
	r := a.rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if r < cum {
			return i
		}
	}
	return len(probs) - 1
}
