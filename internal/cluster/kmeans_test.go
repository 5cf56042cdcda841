package cluster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKMeansSeparatesBlobs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var data [][]float64
	for i := 0; i < 20; i++ {
		data = append(data, []float64{rng.NormFloat64() * 0.1, rng.NormFloat64() * 0.1})
	}
	for i := 0; i < 20; i++ {
		data = append(data, []float64{10 + rng.NormFloat64()*0.1, 10 + rng.NormFloat64()*0.1})
	}

	centroids, assignments := KMeans(data, 2, 50, rng)
	require.Len(t, centroids, 2)
	require.Len(t, assignments, 40)

	first := assignments[0]
	for i := 1; i < 20; i++ {
		assert.Equal(t, first, assignments[i], "first blob splits")
	}
	second := assignments[20]
	assert.NotEqual(t, first, second)
	for i := 21; i < 40; i++ {
		assert.Equal(t, second, assignments[i], "second blob splits")
	}

	for _, c := range centroids {
		nearOrigin := c[0] < 5 && c[1] < 5
		nearTen := c[0] > 5 && c[1] > 5
		assert.True(t, nearOrigin || nearTen, "centroid %v landed between blobs", c)
	}
}

func TestKMeansCapsAtDatasetSize(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 1}}
	centroids, assignments := KMeans(data, 5, 10, rand.New(rand.NewSource(1)))
	assert.Len(t, centroids, 2)
	assert.Len(t, assignments, 2)
}

func TestKMeansEmptyInput(t *testing.T) {
	centroids, assignments := KMeans(nil, 3, 10, rand.New(rand.NewSource(1)))
	assert.Nil(t, centroids)
	assert.Nil(t, assignments)
}
