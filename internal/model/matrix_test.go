package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func centersOf(vals []float32, k, d int) tensor.Tensor {
	return tensor.New(tensor.WithShape(k, d), tensor.WithBacking(vals))
}

func TestNewMatrixRejectsWrongCenterShape(t *testing.T) {
	g := gorgonia.NewGraph()
	_, err := NewMatrix(g, MatrixConfig{
		EmbSize:     4,
		NumClusters: 2,
		Alpha:       1,
	}, centersOf([]float32{0, 0, 0}, 1, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial centers")
}

func TestContrastLogitsRequiresHead(t *testing.T) {
	g := gorgonia.NewGraph()
	m, err := NewMatrix(g, MatrixConfig{
		EmbSize:     2,
		NumClusters: 2,
		Alpha:       1,
	}, centersOf([]float32{0, 0, 8, 8}, 2, 2))
	require.NoError(t, err)

	x := gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(4, 2), gorgonia.WithName("x"))
	_, err = m.ContrastLogits(x)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contrastive head")
}

func TestMatrixPredictAllWithoutTransform(t *testing.T) {
	g := gorgonia.NewGraph()
	m, err := NewMatrix(g, MatrixConfig{
		EmbSize:     2,
		NumClusters: 2,
		Alpha:       1,
	}, centersOf([]float32{0, 0, 8, 8}, 2, 2))
	require.NoError(t, err)

	pred, err := m.PredictAll([][]float32{
		{0.1, 0}, {0, 0.3}, {7.9, 8.2}, {8.1, 7.8},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1}, pred)
}

func TestMatrixCenterRoundTrip(t *testing.T) {
	g := gorgonia.NewGraph()
	m, err := NewMatrix(g, MatrixConfig{
		EmbSize:     2,
		NumClusters: 2,
		Alpha:       1,
	}, centersOf([]float32{1, 2, 3, 4}, 2, 2))
	require.NoError(t, err)

	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, m.CenterValues())

	require.NoError(t, m.SetCenters([][]float64{{5, 6}, {7, 8}}))
	assert.Equal(t, [][]float64{{5, 6}, {7, 8}}, m.CenterValues())

	err = m.SetCenters([][]float64{{1, 2, 3}})
	assert.Error(t, err, "shape mismatch must be rejected")
}

func TestMatrixEmbedAllIdentity(t *testing.T) {
	g := gorgonia.NewGraph()
	m, err := NewMatrix(g, MatrixConfig{
		EmbSize:     2,
		NumClusters: 2,
		Alpha:       1,
	}, centersOf([]float32{0, 0, 1, 1}, 2, 2))
	require.NoError(t, err)

	got, err := m.EmbedAll([][]float32{{1.5, -2}, {0, 3}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5, -2}, {0, 3}}, got)
}

func TestMatrixLearnables(t *testing.T) {
	g := gorgonia.NewGraph()
	m, err := NewMatrix(g, MatrixConfig{
		EmbSize:         2,
		HiddenSize:      4,
		NumClusters:     2,
		Alpha:           1,
		ContrastHead:    true,
		LinearTransform: true,
	}, centersOf([]float32{0, 0, 1, 1}, 2, 2))
	require.NoError(t, err)

	// Two 4-parameter heads plus the centers.
	assert.Len(t, m.Learnables(), 9)
}
