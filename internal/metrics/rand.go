package metrics

// RandIndex is the fraction of point pairs on which two labelings
// agree (same-cluster vs different-cluster). Both slices must have the
// same length.
func RandIndex(a, b []int) float64 {
	n := len(a)
	if n < 2 {
		return 1.0
	}
	agree := 0
	total := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sameA := a[i] == a[j]
			sameB := b[i] == b[j]
			if sameA == sameB {
				agree++
			}
			total++
		}
	}
	return float64(agree) / float64(total)
}

// AdjustedRandIndex is the Rand index corrected for chance. Identical
// partitions score exactly 1.0, which is what the early-stopping
// machinery compares against. When the expected index equals the
// maximum index (both partitions trivial) the score is defined as 1.0.
func AdjustedRandIndex(a, b []int) float64 {
	n := len(a)
	if n < 2 {
		return 1.0
	}

	// Contingency table over the labels that actually occur.
	table := make(map[[2]int]int)
	rows := make(map[int]int)
	cols := make(map[int]int)
	for i := 0; i < n; i++ {
		table[[2]int{a[i], b[i]}]++
		rows[a[i]]++
		cols[b[i]]++
	}

	var sumNij, sumAi, sumBj float64
	for _, v := range table {
		sumNij += comb2(v)
	}
	for _, v := range rows {
		sumAi += comb2(v)
	}
	for _, v := range cols {
		sumBj += comb2(v)
	}

	expected := sumAi * sumBj / comb2(n)
	maxIndex := (sumAi + sumBj) / 2
	if maxIndex == expected {
		return 1.0
	}
	return (sumNij - expected) / (maxIndex - expected)
}

func comb2(n int) float64 {
	return float64(n) * float64(n-1) / 2
}
