// Package batch builds the views the trainers consume: a cycling
// fixed-size index loader, must-link constraint batches, and Gaussian
// noise views.
package batch

import (
	"math/rand"

	"gorgonia.org/tensor"
)

// Cycle yields shuffled fixed-size batches of dataset indices forever.
// When one pass over the data is exhausted it reshuffles and starts
// over; Next reports that wrap so callers can trigger per-epoch work.
// Every batch has exactly batchSize entries: the final partial batch of
// a pass is padded from the front of the shuffled order.
type Cycle struct {
	n         int
	batchSize int
	rng       *rand.Rand
	queue     [][]int
}

func NewCycle(n, batchSize int, rng *rand.Rand) *Cycle {
	return &Cycle{n: n, batchSize: batchSize, rng: rng}
}

// Len is the number of batches in one pass over the data.
func (c *Cycle) Len() int {
	return (c.n + c.batchSize - 1) / c.batchSize
}

// Next returns the next index batch. wrapped is true when the loader
// had to start a fresh shuffled pass to produce it, including the very
// first call.
func (c *Cycle) Next() (idx []int, wrapped bool) {
	if len(c.queue) == 0 {
		order := c.rng.Perm(c.n)
		c.queue = ConstructBatches(order, c.batchSize, c.rng)
		wrapped = true
	}
	idx = c.queue[0]
	c.queue = c.queue[1:]
	return idx, wrapped
}

// Gather copies the selected rows out of data.
func Gather(data [][]float32, idx []int) [][]float32 {
	rows := make([][]float32, len(idx))
	for i, j := range idx {
		row := make([]float32, len(data[j]))
		copy(row, data[j])
		rows[i] = row
	}
	return rows
}

// Tensor flattens rows into a (len(rows), dim) float32 tensor.
func Tensor(rows [][]float32) tensor.Tensor {
	n := len(rows)
	d := len(rows[0])
	backing := make([]float32, 0, n*d)
	for _, r := range rows {
		backing = append(backing, r...)
	}
	return tensor.New(tensor.WithShape(n, d), tensor.WithBacking(backing))
}
