package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandIndex(t *testing.T) {
	assert.Equal(t, 1.0, RandIndex([]int{0, 0, 1, 1}, []int{0, 0, 1, 1}))
	assert.Equal(t, 1.0, RandIndex([]int{0, 0, 1, 1}, []int{1, 1, 0, 0}))
	assert.InDelta(t, 1.0/3.0, RandIndex([]int{0, 0, 1, 1}, []int{0, 0, 0, 0}), 1e-12)
	assert.Equal(t, 1.0, RandIndex([]int{5}, []int{9}))
}

func TestAdjustedRandIndexIdentical(t *testing.T) {
	assert.Equal(t, 1.0, AdjustedRandIndex([]int{0, 0, 1, 1}, []int{0, 0, 1, 1}))
	// Label names carry no meaning, only the grouping does.
	assert.Equal(t, 1.0, AdjustedRandIndex([]int{0, 0, 1, 1}, []int{7, 7, 3, 3}))
}

func TestAdjustedRandIndexChance(t *testing.T) {
	// One trivial partition against a real split is exactly chance
	// level.
	assert.InDelta(t, 0.0, AdjustedRandIndex([]int{0, 0, 0, 0}, []int{0, 0, 1, 1}), 1e-12)
}

func TestAdjustedRandIndexPartialAgreement(t *testing.T) {
	got := AdjustedRandIndex([]int{0, 0, 1, 1}, []int{0, 0, 1, 2})
	assert.InDelta(t, 4.0/7.0, got, 1e-12)
}

func TestAdjustedRandIndexDisagreement(t *testing.T) {
	got := AdjustedRandIndex([]int{0, 0, 1, 1}, []int{0, 1, 0, 1})
	assert.Less(t, got, 1.0)
}
