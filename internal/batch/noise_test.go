package batch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoisyViewPerturbsWithinScale(t *testing.T) {
	rows := [][]float32{
		{0, 100},
		{2, 104},
		{4, 108},
		{6, 112},
	}
	noisy := NoisyView(rows, rand.New(rand.NewSource(1)))
	require.Len(t, noisy, 4)

	for i := range rows {
		for j := range rows[i] {
			diff := float64(noisy[i][j] - rows[i][j])
			// Std/8 both dimensions is well under 1; 6 sigma bound.
			assert.InDelta(t, 0, diff, 6*0.65, "row %d dim %d", i, j)
		}
	}
}

func TestNoisyViewConstantDimensionUnchanged(t *testing.T) {
	rows := [][]float32{{5, 1}, {5, 2}, {5, 3}}
	noisy := NoisyView(rows, rand.New(rand.NewSource(2)))
	for i := range noisy {
		assert.Equal(t, float32(5), noisy[i][0], "zero-variance dimension gets zero noise")
	}
}

func TestNoisyViewSingleRowIsCopy(t *testing.T) {
	rows := [][]float32{{1, 2, 3}}
	noisy := NoisyView(rows, rand.New(rand.NewSource(3)))
	require.Equal(t, rows, noisy)

	noisy[0][0] = 42
	assert.Equal(t, float32(1), rows[0][0])
}

func TestNoisyViewDoesNotMutateInput(t *testing.T) {
	rows := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	orig := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	NoisyView(rows, rand.New(rand.NewSource(4)))
	assert.Equal(t, orig, rows)
}

func TestNoisyViewEmpty(t *testing.T) {
	assert.Empty(t, NoisyView(nil, rand.New(rand.NewSource(5))))
}
