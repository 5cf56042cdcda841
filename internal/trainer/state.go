package trainer

import "sccl/internal/metrics"

// Status is where the training loop ended up.
type Status int

const (
	// StatusRunning means training is still in progress.
	StatusRunning Status = iota
	// StatusConverged means the patience budget was exhausted by
	// consecutive identical prediction snapshots.
	StatusConverged
	// StatusMaxIter means the iteration budget ran out first.
	StatusMaxIter
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusConverged:
		return "converged"
	case StatusMaxIter:
		return "max_iter_reached"
	default:
		return "invalid"
	}
}

// State is the controller's mutable per-run record: the current step,
// the early-stopping bookkeeping, and the terminal status. It is
// updated in exactly one place per concern.
type State struct {
	Step          int
	Status        Status
	PatienceCount int

	prev []int
}

// Observe feeds one full-dataset prediction snapshot into the
// early-stopping machine. Consecutive snapshots that agree exactly
// (adjusted Rand index of 1.0) increment the patience counter; any
// disagreement resets it. Returns true when the counter reaches
// patience, which also moves Status to StatusConverged.
func (s *State) Observe(pred []int, patience int) bool {
	if s.prev == nil {
		s.prev = append([]int(nil), pred...)
		return false
	}
	if metrics.AdjustedRandIndex(pred, s.prev) == 1.0 {
		s.PatienceCount++
		if s.PatienceCount >= patience {
			s.Status = StatusConverged
			s.prev = append(s.prev[:0], pred...)
			return true
		}
	} else {
		s.PatienceCount = 0
	}
	s.prev = append(s.prev[:0], pred...)
	return false
}
