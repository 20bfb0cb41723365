package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRunConfigIsValid(t *testing.T) {
	cfg := DefaultRunConfig()
	assert.NoError(t, cfg.Validate())
	// 3 ions × 1 angle × 3 phases + 1 MS phase.
	assert.Equal(t, 10, cfg.NumActions())
	assert.Equal(t, 5000, cfg.Episodes)
}

func TestRunConfigValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.Episodes = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultRunConfig()
	cfg.Dim = 4
	assert.Error(t, cfg.Validate())

	cfg = DefaultRunConfig()
	cfg.Beta = -1
	assert.Error(t, cfg.Validate())
}

func TestHeadTailMeans(t *testing.T) {
	head, tail := headTailMeans([]int{10, 10, 10, 10, 10, 2, 2, 2, 2, 2})
	assert.Equal(t, 10.0, head) // first 10% = first element
	assert.Equal(t, 2.0, tail)

	head, tail = headTailMeans([]int{4})
	assert.Equal(t, 4.0, head)
	assert.Equal(t, 4.0, tail)

	head, tail = headTailMeans(nil)
	assert.Equal(t, 0.0, head)
	assert.Equal(t, 0.0, tail)

	// 20 entries: 10% window of 2.
	steps := make([]int, 20)
	for i := range steps {
		steps[i] = i
	}
	head, tail = headTailMeans(steps)
	assert.Equal(t, 0.5, head)  // mean(0,1)
	assert.Equal(t, 18.5, tail) // mean(18,19)
}

func TestMovingAverage(t *testing.T) {
	out := movingAverage([]int{2, 4, 6, 8}, 2)
	assert.Equal(t, []float64{2, 3, 5, 7}, out)

	// Window 1 is the identity.
	out = movingAverage([]int{5, 1}, 1)
	assert.Equal(t, []float64{5, 1}, out)
}
