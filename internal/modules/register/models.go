// Package register simulates a small trapped-ion qudit register driven by a
// fixed catalog of laser-pulse gates. It owns the complex state vector,
// applies gate unitaries, and computes the Schmidt rank vector (SRV) used as
// the entanglement witness for reward decisions.
package register

import (
	"fmt"
	"math"
	"strings"
)

// RankTolerance is the eigenvalue cutoff for the numerical rank of a reduced
// density matrix. Eigenvalues at or below this magnitude count as zero.
const RankTolerance = 1e-6

// NormDriftTolerance is the allowed drift of the state norm from 1 before a
// gate application is flagged as numerically degenerate. The state is
// re-normalized after every gate regardless.
const NormDriftTolerance = 1e-9

// Phases enumerates the laser-pulse parameter lists the gate catalog is built
// from. All values are in radians.
type Phases struct {
	PulseAngles []float64 `json:"pulse_angles"`
	PulsePhases []float64 `json:"pulse_phases"`
	MSPhases    []float64 `json:"ms_phases"`
}

// DefaultPhases returns the standard pulse parameter set.
func DefaultPhases() Phases {
	return Phases{
		PulseAngles: []float64{math.Pi / 2},
		PulsePhases: []float64{0, math.Pi / 2, math.Pi / 6},
		MSPhases:    []float64{-math.Pi / 2},
	}
}

// Config holds the immutable construction parameters of an environment.
type Config struct {
	NumIons  int     `json:"num_ions"`
	Dim      int     `json:"dim"`
	Goals    [][]int `json:"goal"`
	Phases   Phases  `json:"phases"`
	MaxSteps int     `json:"max_steps"`
}

// DefaultConfig returns the standard three-qutrit GHZ search configuration.
func DefaultConfig() Config {
	return Config{
		NumIons:  3,
		Dim:      3,
		Goals:    [][]int{{3, 3, 3}},
		Phases:   DefaultPhases(),
		MaxSteps: 10,
	}
}

// Validate checks all construction parameters. Every violation is reported
// wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.NumIons < 1 {
		return fmt.Errorf("%w: num_ions must be positive, got %d", ErrInvalidConfig, c.NumIons)
	}
	if c.Dim < 1 || c.Dim%2 == 0 {
		return fmt.Errorf("%w: dim must be an odd positive integer, got %d", ErrInvalidConfig, c.Dim)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("%w: max_steps must be positive, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if len(c.Goals) == 0 {
		return fmt.Errorf("%w: goal list is empty", ErrInvalidConfig)
	}
	for i, goal := range c.Goals {
		if len(goal) != c.NumIons {
			return fmt.Errorf("%w: goal %d has %d entries, want %d", ErrInvalidConfig, i, len(goal), c.NumIons)
		}
		for j, rank := range goal {
			if rank < 1 || rank > c.Dim {
				return fmt.Errorf("%w: goal %d entry %d is %d, want value in [1,%d]", ErrInvalidConfig, i, j, rank, c.Dim)
			}
		}
	}
	if len(c.Phases.PulseAngles) == 0 {
		return fmt.Errorf("%w: pulse_angles is empty", ErrInvalidConfig)
	}
	if len(c.Phases.PulsePhases) == 0 {
		return fmt.Errorf("%w: pulse_phases is empty", ErrInvalidConfig)
	}
	if len(c.Phases.MSPhases) == 0 {
		return fmt.Errorf("%w: ms_phases is empty", ErrInvalidConfig)
	}
	return nil
}

// StateSize returns the Hilbert space dimension dim^numIons.
func (c Config) StateSize() int {
	size := 1
	for i := 0; i < c.NumIons; i++ {
		size *= c.Dim
	}
	return size
}

// SRV is a Schmidt rank vector: one reduced-density-matrix rank per ion.
type SRV []int

// Equals reports whether the SRV matches the given goal tuple exactly,
// entry by entry.
func (s SRV) Equals(goal []int) bool {
	if len(s) != len(goal) {
		return false
	}
	for i := range s {
		if s[i] != goal[i] {
			return false
		}
	}
	return true
}

// Matches reports whether the SRV equals any of the goal tuples.
func (s SRV) Matches(goals [][]int) bool {
	for _, goal := range goals {
		if s.Equals(goal) {
			return true
		}
	}
	return false
}

// String renders the SRV as "(r1,r2,...)".
func (s SRV) String() string {
	parts := make([]string, len(s))
	for i, r := range s {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Observation is the environment's view of the current state handed to the
// agent after reset and after every step. The amplitudes are a copy; mutating
// them does not affect the environment.
type Observation struct {
	Amplitudes []complex128
}

// PerceptKey returns a canonical fixed-precision encoding of the amplitudes,
// suitable as a hash key for tabular agents. Components are quantized to six
// decimals so that numerical noise below the quantum does not split percepts.
func (o Observation) PerceptKey() string {
	var b strings.Builder
	b.Grow(len(o.Amplitudes) * 22)
	for _, c := range o.Amplitudes {
		fmt.Fprintf(&b, "%.6f%+.6fi;", quantize(real(c)), quantize(imag(c)))
	}
	return b.String()
}

// quantize rounds to six decimals and collapses negative zero, keeping
// percept keys stable against sub-tolerance sign flips.
func quantize(v float64) float64 {
	q := math.Round(v*1e6) / 1e6
	if q == 0 {
		return 0
	}
	return q
}
