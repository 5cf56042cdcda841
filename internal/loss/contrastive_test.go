package loss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func unitRows(rows [][]float32) []float32 {
	var out []float32
	for _, r := range rows {
		var norm float64
		for _, v := range r {
			norm += float64(v) * float64(v)
		}
		norm = math.Sqrt(norm)
		for _, v := range r {
			out = append(out, float32(float64(v)/norm))
		}
	}
	return out
}

func runPairCon(t *testing.T, f1Rows, f2Rows [][]float32, temp float64) (lossVal, posVal, negVal float64) {
	t.Helper()
	n := len(f1Rows)
	d := len(f1Rows[0])

	g := gorgonia.NewGraph()
	f1 := gorgonia.NodeFromAny(g,
		tensor.New(tensor.WithShape(n, d), tensor.WithBacking(unitRows(f1Rows))),
		gorgonia.WithName("feat1"))
	f2 := gorgonia.NodeFromAny(g,
		tensor.New(tensor.WithShape(n, d), tensor.WithBacking(unitRows(f2Rows))),
		gorgonia.WithName("feat2"))

	terms, err := PairCon{Temperature: temp}.Build(f1, f2)
	require.NoError(t, err)

	machine := gorgonia.NewTapeMachine(g)
	defer machine.Close()
	require.NoError(t, machine.RunAll())

	lossVal = float64(terms.Loss.Value().Data().(float32))
	posVal = float64(terms.PosMean.Value().Data().(float32))
	negVal = float64(terms.NegMean.Value().Data().(float32))
	return lossVal, posVal, negVal
}

func TestPairConLossIsFiniteAndPositive(t *testing.T) {
	f1 := [][]float32{{1, 0, 0}, {0, 1, 0}}
	f2 := [][]float32{{0.9, 0.1, 0}, {0.1, 0.9, 0}}
	lossVal, posVal, negVal := runPairCon(t, f1, f2, 0.5)

	assert.False(t, math.IsNaN(lossVal))
	assert.Greater(t, lossVal, 0.0)
	assert.Greater(t, posVal, 0.0)
	assert.Greater(t, negVal, 0.0)
}

func TestPairConSymmetricInViews(t *testing.T) {
	f1 := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	f2 := [][]float32{{0.8, 0.2, 0}, {0, 0.7, 0.3}, {0.1, 0, 0.9}}

	a, _, _ := runPairCon(t, f1, f2, 0.5)
	b, _, _ := runPairCon(t, f2, f1, 0.5)
	assert.InDelta(t, a, b, 1e-5)
}

func TestPairConInvariantUnderJointPermutation(t *testing.T) {
	f1 := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.5, 0.5, 0}}
	f2 := [][]float32{{0.8, 0.2, 0}, {0, 0.7, 0.3}, {0.4, 0.6, 0}}

	// Reorder the examples the same way in both views: the pairing is
	// unchanged, so the loss must be too.
	perm := []int{2, 0, 1}
	p1 := make([][]float32, len(perm))
	p2 := make([][]float32, len(perm))
	for i, j := range perm {
		p1[i], p2[i] = f1[j], f2[j]
	}

	a, aPos, aNeg := runPairCon(t, f1, f2, 0.5)
	b, bPos, bNeg := runPairCon(t, p1, p2, 0.5)
	assert.InDelta(t, a, b, 1e-5)
	assert.InDelta(t, aPos, bPos, 1e-5)
	assert.InDelta(t, aNeg, bNeg, 1e-5)
}

func TestPairConRewardsAlignedViews(t *testing.T) {
	orthogonal := [][]float32{{1, 0, 0}, {0, 1, 0}}
	aligned, _, _ := runPairCon(t, orthogonal, orthogonal, 0.5)

	swapped := [][]float32{{0, 1, 0}, {1, 0, 0}}
	misaligned, _, _ := runPairCon(t, orthogonal, swapped, 0.5)

	assert.Less(t, aligned, misaligned, "matching views must score a lower loss")
}

func TestNegativeMask(t *testing.T) {
	mask := negativeMask(2)
	data := mask.Data().([]float32)
	require.Len(t, data, 16)

	ones := 0
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := data[i*4+j]
			if i%2 == j%2 {
				assert.Equal(t, float32(0), v, "entry (%d,%d) pairs the same example", i, j)
			} else {
				assert.Equal(t, float32(1), v, "entry (%d,%d)", i, j)
				ones++
			}
		}
	}
	assert.Equal(t, 8, ones, "each of the 4 pooled rows keeps 2 negatives")
}
