package register

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/entangler/pkg/linalg"
)

func newTestEnv(t *testing.T, cfg Config) *Environment {
	t.Helper()
	env, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	return env
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	base := DefaultConfig()

	cases := map[string]func(c *Config){
		"zero ions":        func(c *Config) { c.NumIons = 0 },
		"even dim":         func(c *Config) { c.Dim = 4 },
		"zero max steps":   func(c *Config) { c.MaxSteps = 0 },
		"empty goals":      func(c *Config) { c.Goals = nil },
		"short goal tuple": func(c *Config) { c.Goals = [][]int{{3, 3}} },
		"goal entry high":  func(c *Config) { c.Goals = [][]int{{3, 3, 4}} },
		"goal entry low":   func(c *Config) { c.Goals = [][]int{{3, 3, 0}} },
		"no pulse angles":  func(c *Config) { c.Phases.PulseAngles = nil },
		"no pulse phases":  func(c *Config) { c.Phases.PulsePhases = nil },
		"no ms phases":     func(c *Config) { c.Phases.MSPhases = nil },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			_, err := New(cfg, zerolog.Nop())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigReturnsConstructionParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumIons = 2
	cfg.Goals = [][]int{{2, 2}}
	cfg.MaxSteps = 7

	env := newTestEnv(t, cfg)
	assert.Equal(t, cfg, env.Config())
}

func TestResetReturnsDeterministicInitialObservation(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	first := env.Reset()
	require.Len(t, first.Amplitudes, 27)
	assert.Equal(t, complex128(1), first.Amplitudes[0])
	for i := 1; i < len(first.Amplitudes); i++ {
		assert.Equal(t, complex128(0), first.Amplitudes[i])
	}
	assert.Equal(t, 0, env.Steps())
	assert.False(t, env.Done())

	// Stepping then resetting restores the same observation and counters.
	_, _, _, err := env.Step(0)
	require.NoError(t, err)

	second := env.Reset()
	assert.Equal(t, first.PerceptKey(), second.PerceptKey())
	assert.Equal(t, 0, env.Steps())
	assert.False(t, env.Done())
}

func TestSRVOfInitialStateIsAllOnes(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.Reset()

	srv, err := env.SRV()
	require.NoError(t, err)
	assert.Equal(t, SRV{1, 1, 1}, srv)
}

func TestRotationKeepsProductStateAndMatchesTrivialGoal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Goals = [][]int{{1, 1, 1}}
	env := newTestEnv(t, cfg)
	env.Reset()

	// A single-ion rotation cannot create entanglement, so the SRV stays
	// (1,1,1) and the trivial goal is matched immediately.
	_, reward, done, err := env.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, reward)
	assert.True(t, done)
}

func TestMSGateEntangles(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.Reset()

	// The last catalog entry is the global MS gate.
	msAction := env.NumActions() - 1
	_, reward, _, err := env.Step(msAction)
	require.NoError(t, err)
	assert.Equal(t, 0.0, reward)

	srv, err := env.SRV()
	require.NoError(t, err)
	for ion, rank := range srv {
		assert.GreaterOrEqual(t, rank, 2, "ion %d should be entangled after MS", ion)
	}
}

func TestInvalidActionLeavesStateUnmodified(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	before := env.Reset()

	for _, action := range []int{-1, env.NumActions(), 99} {
		_, reward, done, err := env.Step(action)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidAction)
		assert.Equal(t, 0.0, reward)
		assert.False(t, done)
	}

	assert.Equal(t, 0, env.Steps())
	after := env.observation()
	assert.Equal(t, before.PerceptKey(), after.PerceptKey())
}

func TestNormStaysWithinToleranceUnderRandomSteps(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	rng := rand.New(rand.NewSource(7))

	for episode := 0; episode < 5; episode++ {
		env.Reset()
		for !env.Done() {
			_, _, _, err := env.Step(rng.Intn(env.NumActions()))
			require.NoError(t, err)
			assert.InDelta(t, 1.0, linalg.Norm(env.state), 1e-9)
		}
	}
}

func TestSRVInvariantUnderGlobalPhase(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	env.Reset()

	// Entangle first so the SRV is non-trivial.
	_, _, _, err := env.Step(env.NumActions() - 1)
	require.NoError(t, err)

	before, err := env.SRV()
	require.NoError(t, err)

	phase := cmplx.Exp(complex(0, 1.2345))
	for i := range env.state {
		env.state[i] *= phase
	}

	after, err := env.SRV()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEpisodeTerminatesAtMaxSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 4
	env := newTestEnv(t, cfg)
	env.Reset()

	// Repeating the same local rotation never reaches SRV (3,3,3), so the
	// episode must end at the step cap with zero reward.
	var done bool
	var reward float64
	for i := 0; i < cfg.MaxSteps; i++ {
		var err error
		_, reward, done, err = env.Step(0)
		require.NoError(t, err)
	}
	assert.True(t, done)
	assert.Equal(t, 0.0, reward)
	assert.Equal(t, cfg.MaxSteps, env.Steps())
}

func TestGHZClassReachableUnderRandomPolicy(t *testing.T) {
	if testing.Short() {
		t.Skip("randomized reachability search skipped in short mode")
	}

	// Reduced pulse set: one rotation per ion plus the MS gate.
	cfg := DefaultConfig()
	cfg.Phases = Phases{
		PulseAngles: []float64{math.Pi / 2},
		PulsePhases: []float64{math.Pi / 2},
		MSPhases:    []float64{-math.Pi / 2},
	}
	env := newTestEnv(t, cfg)
	require.Equal(t, 4, env.NumActions())

	rng := rand.New(rand.NewSource(42))
	for episode := 0; episode < 2000; episode++ {
		env.Reset()
		for {
			_, reward, done, err := env.Step(rng.Intn(env.NumActions()))
			require.NoError(t, err)
			if reward == 1 {
				return // SRV (3,3,3) reached
			}
			if done {
				break
			}
		}
	}
	t.Fatal("SRV (3,3,3) not reached by a random policy within 2000 episodes")
}

func TestPerceptKeyQuantizesNoise(t *testing.T) {
	a := Observation{Amplitudes: []complex128{complex(0.5, -1e-9), 0}}
	b := Observation{Amplitudes: []complex128{complex(0.5, 1e-9), 0}}
	assert.Equal(t, a.PerceptKey(), b.PerceptKey())

	c := Observation{Amplitudes: []complex128{complex(0.4, 0), 0}}
	assert.NotEqual(t, a.PerceptKey(), c.PerceptKey())
}

func TestSRVMatching(t *testing.T) {
	srv := SRV{3, 3, 3}
	assert.True(t, srv.Matches([][]int{{1, 1, 1}, {3, 3, 3}}))
	assert.False(t, srv.Matches([][]int{{3, 3, 2}}))
	assert.False(t, srv.Equals([]int{3, 3}))
	assert.Equal(t, "(3,3,3)", srv.String())
}
