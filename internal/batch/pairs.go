package batch

import "math/rand"

// ConstructBatches shuffles rows and splits them into batches of
// exactly batchSize. When the row count is not a multiple of the batch
// size, the tail batch is filled by re-sampling shuffled copies of the
// rows until the total is a multiple, so the result has
// ceil(len/batchSize) batches covering every row at least once. Row
// lists smaller than the batch size are re-sampled as many times as
// needed.
func ConstructBatches[T any](rows []T, batchSize int, rng *rand.Rand) [][]T {
	shuffled := shuffle(rows, rng)
	for len(shuffled) > 0 && len(shuffled)%batchSize != 0 {
		need := batchSize - len(shuffled)%batchSize
		pad := shuffle(rows, rng)
		if need < len(pad) {
			pad = pad[:need]
		}
		shuffled = append(shuffled, pad...)
	}
	batches := make([][]T, 0, len(shuffled)/batchSize)
	for i := 0; i < len(shuffled)/batchSize; i++ {
		batches = append(batches, shuffled[i*batchSize:(i+1)*batchSize])
	}
	return batches
}

// PairStream cycles a finite list of must-link rows as an infinite
// stream of fixed-size batches, reshuffling the list whenever the
// current pass is exhausted.
type PairStream[T any] struct {
	rows      []T
	batchSize int
	rng       *rand.Rand
	queue     [][]T
}

func NewPairStream[T any](rows []T, batchSize int, rng *rand.Rand) *PairStream[T] {
	return &PairStream[T]{rows: rows, batchSize: batchSize, rng: rng}
}

// Next returns the next batch, rebuilding the shuffled queue when the
// previous pass ran out. Exhaustion is recovery, not an error.
func (s *PairStream[T]) Next() []T {
	if len(s.queue) == 0 {
		s.queue = ConstructBatches(s.rows, s.batchSize, s.rng)
	}
	b := s.queue[0]
	s.queue = s.queue[1:]
	return b
}

func shuffle[T any](rows []T, rng *rand.Rand) []T {
	out := make([]T, len(rows))
	copy(out, rows)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
