package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func smallEntityModel(t *testing.T) *Entity {
	t.Helper()
	g := gorgonia.NewGraph()
	kge := tensor.New(tensor.WithShape(3, 2), tensor.WithBacking([]float32{
		0, 0,
		10, 10,
		5, 0,
	}))
	centers := tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float32{
		0, 0, 0,
		10, 10, 1,
	}))
	m, err := NewEntity(g, EntityConfig{
		NumEntities: 3,
		EntityDim:   2,
		TextDim:     1,
		NumClusters: 2,
		Alpha:       1,
	}, kge, centers)
	require.NoError(t, err)
	return m
}

func TestNewEntityRejectsWrongShapes(t *testing.T) {
	g := gorgonia.NewGraph()
	kge := tensor.New(tensor.WithShape(3, 2), tensor.WithBacking(make([]float32, 6)))
	badCenters := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float32, 4)))
	_, err := NewEntity(g, EntityConfig{
		NumEntities: 3,
		EntityDim:   2,
		TextDim:     1,
		NumClusters: 2,
		Alpha:       1,
	}, kge, badCenters)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "centers")
}

func TestEntityFuseAllConcatenates(t *testing.T) {
	m := smallEntityModel(t)

	oneHot := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	}
	text := [][]float32{{0.5}, {0.25}}

	fused, err := m.FuseAll(oneHot, text)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 0, 0.5},
		{10, 10, 0.25},
	}, fused)
}

func TestEntityPredictAll(t *testing.T) {
	m := smallEntityModel(t)

	oneHot := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
	}
	text := [][]float32{{0.1}, {0.9}}

	pred, err := m.PredictAll(oneHot, text)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, pred)
}
