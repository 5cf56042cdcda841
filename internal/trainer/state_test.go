package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "converged", StatusConverged.String())
	assert.Equal(t, "max_iter_reached", StatusMaxIter.String())
}

func TestObserveFirstSnapshotOnlySeeds(t *testing.T) {
	var s State
	assert.False(t, s.Observe([]int{0, 0, 1, 1}, 1))
	assert.Zero(t, s.PatienceCount)
	assert.Equal(t, StatusRunning, s.Status)
}

func TestObserveConvergesAfterPatience(t *testing.T) {
	var s State
	stable := []int{0, 0, 1, 1}

	assert.False(t, s.Observe(stable, 3)) // seed
	assert.False(t, s.Observe(stable, 3))
	assert.Equal(t, 1, s.PatienceCount)
	assert.False(t, s.Observe(stable, 3))
	assert.Equal(t, 2, s.PatienceCount)
	assert.True(t, s.Observe(stable, 3))
	assert.Equal(t, 3, s.PatienceCount)
	assert.Equal(t, StatusConverged, s.Status)
}

func TestObserveResetsOnChange(t *testing.T) {
	var s State
	a := []int{0, 0, 1, 1}
	b := []int{0, 1, 0, 1}

	assert.False(t, s.Observe(a, 2)) // seed
	assert.False(t, s.Observe(a, 2))
	assert.Equal(t, 1, s.PatienceCount)

	assert.False(t, s.Observe(b, 2))
	assert.Zero(t, s.PatienceCount, "disagreement wipes accumulated patience")

	assert.False(t, s.Observe(b, 2))
	assert.True(t, s.Observe(b, 2), "patience rebuilds against the new snapshot")
}

func TestObserveTreatsRelabelingAsStable(t *testing.T) {
	var s State
	assert.False(t, s.Observe([]int{0, 0, 1, 1}, 1)) // seed
	// Same partition under different label names.
	assert.True(t, s.Observe([]int{4, 4, 2, 2}, 1))
	assert.Equal(t, StatusConverged, s.Status)
}
