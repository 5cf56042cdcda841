package cluster

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// KMeans clusters data into k groups and returns the centroids and
// per-point assignments. Centroids are seeded with k-means++ so they
// spread across the data, then refined by Lloyd iterations until the
// centers stop moving or maxIter passes elapse. Used to produce the
// initial cluster centers the trainers start from.
func KMeans(data [][]float64, k, maxIter int, rng *rand.Rand) ([][]float64, []int) {
	if len(data) == 0 || k == 0 {
		return nil, nil
	}
	if k > len(data) {
		k = len(data)
	}

	centroids := seedPlusPlus(data, k, rng)
	assignments := make([]int, len(data))

	for iter := 0; iter < maxIter; iter++ {
		for i, p := range data {
			assignments[i], _ = nearest(p, centroids)
		}

		converged := true
		for c := range centroids {
			mean := meanOf(data, assignments, c)
			if mean == nil {
				continue
			}
			if floats.Distance(centroids[c], mean, 2) > 1e-6 {
				converged = false
			}
			centroids[c] = mean
		}
		if converged {
			break
		}
	}
	for i, p := range data {
		assignments[i], _ = nearest(p, centroids)
	}
	return centroids, assignments
}

// seedPlusPlus picks k initial centroids, each subsequent one sampled
// proportionally to its squared distance from the nearest existing
// centroid.
func seedPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := data[rng.Intn(len(data))]
	centroids = append(centroids, cloneVec(first))

	for len(centroids) < k {
		weights := make([]float64, len(data))
		var total float64
		for i, p := range data {
			_, d := nearest(p, centroids)
			weights[i] = d * d
			total += weights[i]
		}
		if total == 0 {
			// All remaining points coincide with a centroid; fall back
			// to uniform sampling.
			centroids = append(centroids, cloneVec(data[rng.Intn(len(data))]))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		pick := len(data) - 1
		for i, w := range weights {
			cum += w
			if cum >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, cloneVec(data[pick]))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) (int, float64) {
	best := 0
	bestDist := floats.Distance(p, centroids[0], 2)
	for c := 1; c < len(centroids); c++ {
		if d := floats.Distance(p, centroids[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func meanOf(data [][]float64, assignments []int, c int) []float64 {
	var count int
	mean := make([]float64, len(data[0]))
	for i, a := range assignments {
		if a != c {
			continue
		}
		floats.Add(mean, data[i])
		count++
	}
	if count == 0 {
		return nil
	}
	floats.Scale(1/float64(count), mean)
	return mean
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
