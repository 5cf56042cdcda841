// Package repair detects clusters that lost every assigned point and
// reseeds their centers from the data. A dead center cannot recover
// through gradient descent (no point contributes gradient toward it),
// so the trainers run this periodically as a direct state overwrite
// outside the optimizer.
package repair

import (
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Result reports what a repair pass did.
type Result struct {
	// EmptyBefore are the cluster indices that had zero assigned
	// points under hard nearest-center assignment.
	EmptyBefore []int
	// EmptyAfter are the clusters still empty after reseeding.
	EmptyAfter []int
	// Reseeded is the number of centers overwritten.
	Reseeded int
	// Exhausted is true when the candidate list ran out before every
	// empty cluster could be reseeded (every remaining candidate was
	// its cluster's last member).
	Exhausted bool
}

// Run assigns every dataset point to its nearest center, finds empty
// clusters, and reseeds each from the point farthest from its own
// nearest center, skipping candidates whose departure would empty
// another cluster. centers is mutated in place; the caller writes it
// back into the trainable parameter. dataset must be the current full
// feature matrix, never a stale copy.
func Run(dataset, centers [][]float64, rng *rand.Rand, log zerolog.Logger) Result {
	n := len(dataset)
	k := len(centers)

	labels := make([]int, n)
	minDist := make([]float64, n)
	for _, i := range rng.Perm(n) {
		best := 0
		bestDist := floats.Distance(dataset[i], centers[0], 2)
		for c := 1; c < k; c++ {
			if d := floats.Distance(dataset[i], centers[c], 2); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
		minDist[i] = bestDist
	}

	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}

	var res Result
	res.EmptyBefore = emptyClusters(counts)
	if len(res.EmptyBefore) == 0 {
		return res
	}
	log.Warn().Ints("clusters", res.EmptyBefore).Msg("empty clusters detected")

	// Farthest-first candidate order: points poorly served by their
	// nearest center make the best new seeds.
	byDist := make([]int, n)
	for i := range byDist {
		byDist[i] = i
	}
	sort.SliceStable(byDist, func(a, b int) bool {
		return minDist[byDist[a]] > minDist[byDist[b]]
	})

	empties := make([]int, len(res.EmptyBefore))
	copy(empties, res.EmptyBefore)
	rng.Shuffle(len(empties), func(i, j int) {
		empties[i], empties[j] = empties[j], empties[i]
	})

	cursor := 0
	for _, clusterIdx := range empties {
		// Never take a cluster's last member: that would just move the
		// hole elsewhere.
		for cursor < n && counts[labels[byDist[cursor]]] == 1 {
			cursor++
		}
		if cursor >= n {
			res.Exhausted = true
			log.Warn().Int("cluster", clusterIdx).Msg("ran out of reseed candidates")
			break
		}
		p := byDist[cursor]
		copy(centers[clusterIdx], dataset[p])
		counts[labels[p]]--
		labels[p] = clusterIdx
		counts[clusterIdx]++
		res.Reseeded++
		cursor++
	}

	res.EmptyAfter = emptyClusters(counts)
	if len(res.EmptyAfter) > 0 {
		log.Warn().Ints("clusters", res.EmptyAfter).Msg("clusters still empty after repair")
	}
	return res
}

func emptyClusters(counts []int) []int {
	var out []int
	for c, v := range counts {
		if v == 0 {
			out = append(out, c)
		}
	}
	return out
}
