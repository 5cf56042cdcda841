// Package model holds the trainable clustering models: the
// matrix/vector model, and the knowledge-graph entity fusion model.
// Both expose cluster soft assignments, optional contrastive
// projections, and direct center access for the repair heuristic.
package model

import "github.com/pkg/errors"

// TaskType selects how a model turns a batch into embedding views.
type TaskType int

const (
	// TaskVirtual pairs each example with a synthetically perturbed
	// copy of itself.
	TaskVirtual TaskType = iota
	// TaskExplicit uses pre-computed augmentations as the extra views.
	TaskExplicit
	// TaskEvaluate produces a single embedding per example, no views.
	TaskEvaluate
)

func (t TaskType) String() string {
	switch t {
	case TaskVirtual:
		return "virtual"
	case TaskExplicit:
		return "explicit"
	case TaskEvaluate:
		return "evaluate"
	default:
		return "invalid"
	}
}

// ParseTaskType maps a mode string to its TaskType. Unrecognized modes
// are a configuration error, never a silent no-op.
func ParseTaskType(s string) (TaskType, error) {
	switch s {
	case "virtual":
		return TaskVirtual, nil
	case "explicit":
		return TaskExplicit, nil
	case "evaluate":
		return TaskEvaluate, nil
	default:
		return 0, errors.Errorf("unknown task type %q (options: virtual, explicit, evaluate)", s)
	}
}
