package register

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/entangler/pkg/linalg"
)

// Environment owns the quantum state of the register and the reward logic.
// All configuration is validated at construction and immutable afterwards;
// gate unitaries are precomputed once into a fixed ordered catalog.
//
// Single-writer: no internal locking, one goroutine drives an instance.
type Environment struct {
	cfg       Config
	gates     []Gate
	unitaries []*mat.CDense
	state     []complex128
	steps     int
	done      bool
	log       zerolog.Logger
}

// New creates an environment from a validated configuration. Malformed
// configuration is fatal: the error wraps ErrInvalidConfig and no
// environment is returned.
func New(cfg Config, log zerolog.Logger) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gates, unitaries, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	e := &Environment{
		cfg:       cfg,
		gates:     gates,
		unitaries: unitaries,
		state:     make([]complex128, cfg.StateSize()),
		log:       log.With().Str("component", "register").Logger(),
	}
	e.Reset()

	e.log.Debug().
		Int("num_ions", cfg.NumIons).
		Int("dim", cfg.Dim).
		Int("num_actions", len(gates)).
		Int("state_size", cfg.StateSize()).
		Msg("Environment constructed")

	return e, nil
}

// Config returns a copy of the construction parameters.
func (e *Environment) Config() Config {
	return e.cfg
}

// NumActions returns the cardinality of the gate catalog.
func (e *Environment) NumActions() int {
	return len(e.gates)
}

// Actions returns a copy of the ordered gate catalog.
func (e *Environment) Actions() []Gate {
	out := make([]Gate, len(e.gates))
	copy(out, e.gates)
	return out
}

// Steps returns the number of steps taken in the current episode.
func (e *Environment) Steps() int {
	return e.steps
}

// Done reports whether the current episode has terminated.
func (e *Environment) Done() bool {
	return e.done
}

// Reset re-initializes the state to |0…0⟩, zeroes the step counter, clears
// the terminal flag, and returns the initial observation.
func (e *Environment) Reset() Observation {
	for i := range e.state {
		e.state[i] = 0
	}
	e.state[0] = 1
	e.steps = 0
	e.done = false
	return e.observation()
}

// Step applies the gate for the given action index, advances the episode,
// and returns the new observation, the binary reward, and the terminal flag.
// An out-of-range action returns an error wrapping ErrInvalidAction and
// leaves the state, counter, and terminal flag unmodified.
func (e *Environment) Step(action int) (Observation, float64, bool, error) {
	if action < 0 || action >= len(e.gates) {
		return Observation{}, 0, e.done, fmt.Errorf("%w: index %d outside [0,%d)", ErrInvalidAction, action, len(e.gates))
	}

	next, err := linalg.MulVec(e.unitaries[action], e.state)
	if err != nil {
		return Observation{}, 0, e.done, fmt.Errorf("gate application failed: %w", err)
	}

	// Unitarity keeps the norm at 1 up to floating noise; renormalize
	// defensively and surface larger drift as a diagnostic.
	norm := linalg.Normalize(next)
	if math.Abs(norm-1) > NormDriftTolerance {
		e.log.Warn().
			Float64("norm", norm).
			Int("action", action).
			Int("step", e.steps+1).
			Msg("State norm drifted beyond tolerance before renormalization")
	}

	e.state = next
	e.steps++

	srv, err := e.SRV()
	if err != nil {
		return Observation{}, 0, e.done, fmt.Errorf("SRV computation failed: %w", err)
	}

	var reward float64
	if srv.Matches(e.cfg.Goals) {
		reward = 1
		e.done = true
	} else if e.steps >= e.cfg.MaxSteps {
		e.done = true
	}

	return e.observation(), reward, e.done, nil
}

// SRV computes the Schmidt rank vector of the current state: for each ion
// the numerical rank of its reduced density matrix, with eigenvalues above
// RankTolerance counted as nonzero. Invariant under global phase and under
// noise below the tolerance.
func (e *Environment) SRV() (SRV, error) {
	srv := make(SRV, e.cfg.NumIons)
	for ion := 0; ion < e.cfg.NumIons; ion++ {
		rho, err := linalg.PartialTraceSingle(e.state, e.cfg.NumIons, e.cfg.Dim, ion)
		if err != nil {
			return nil, fmt.Errorf("partial trace of ion %d failed: %w", ion, err)
		}
		eigs, err := linalg.HermitianEigenvalues(rho)
		if err != nil {
			return nil, fmt.Errorf("eigenvalues of ion %d marginal failed: %w", ion, err)
		}
		srv[ion] = linalg.RankAboveTol(eigs, RankTolerance)
	}
	return srv, nil
}

// Observation returns a snapshot of the current amplitudes without advancing
// the episode.
func (e *Environment) Observation() Observation {
	return e.observation()
}

// observation snapshots the current amplitudes.
func (e *Environment) observation() Observation {
	amps := make([]complex128, len(e.state))
	copy(amps, e.state)
	return Observation{Amplitudes: amps}
}
