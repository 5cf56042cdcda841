package batch

import (
	"math"
	"math/rand"
)

// NoisyView builds the virtual second view of a batch: zero-mean
// Gaussian noise scaled per dimension to 1/8 of the batch's sample
// standard deviation. The noise is plain numeric data, generated
// outside any gradient graph. Batches with fewer than two rows have no
// defined sample variance and get a zero-noise copy.
func NoisyView(rows [][]float32, rng *rand.Rand) [][]float32 {
	n := len(rows)
	out := make([][]float32, n)
	if n == 0 {
		return out
	}
	d := len(rows[0])

	if n < 2 {
		for i, r := range rows {
			c := make([]float32, d)
			copy(c, r)
			out[i] = c
		}
		return out
	}

	mean := make([]float64, d)
	for _, r := range rows {
		for j, v := range r {
			mean[j] += float64(v)
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	// Unbiased per-dimension variance.
	std := make([]float64, d)
	for _, r := range rows {
		for j, v := range r {
			diff := float64(v) - mean[j]
			std[j] += diff * diff
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j]/float64(n-1)) / 8
	}

	for i, r := range rows {
		c := make([]float32, d)
		for j, v := range r {
			c[j] = v + float32(rng.NormFloat64()*std[j])
		}
		out[i] = c
	}
	return out
}
