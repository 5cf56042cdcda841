// Package trainer runs the SCCL optimization loop: one controller over
// pluggable per-variant batch-to-loss strategies.
package trainer

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"sccl/internal/cluster"
)

// Losses carries named scalar diagnostics out of one training step.
type Losses map[string]float64

// step owns the compiled training program for one variant: the tape
// machine, the solver, and the value readers for diagnostics. Callers
// bind their batch placeholders, then call run.
type step struct {
	machine    gorgonia.VM
	solver     gorgonia.Solver
	learnables gorgonia.Nodes

	// probs/target are non-nil when the clustering objective is
	// active. target is a placeholder: the detached self-training
	// target is computed numerically from a forward pass and fed back
	// in through it, so no gradient can flow through the target.
	probs  *gorgonia.Node
	target *gorgonia.Node

	reads map[string]*gorgonia.Value
}

func newStep(g *gorgonia.ExprGraph, total *gorgonia.Node, learnables gorgonia.Nodes,
	probs, target *gorgonia.Node, learnRate float64, reads map[string]*gorgonia.Value) (*step, error) {

	if _, err := gorgonia.Grad(total, learnables...); err != nil {
		return nil, errors.Wrap(err, "build gradient")
	}
	s := &step{
		machine:    gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(learnables...)),
		solver:     gorgonia.NewAdamSolver(gorgonia.WithLearnRate(learnRate)),
		learnables: learnables,
		probs:      probs,
		target:     target,
		reads:      reads,
	}
	if target != nil {
		// Seed the placeholder so the first forward pass is finite.
		if err := letUniform(target); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// run executes one optimization step. With the clustering objective
// active this is two-phase: a forward pass to read the current soft
// assignments, the target distribution computed from them, then the
// full pass with gradients and the solver step. The target is always
// derived from the probabilities of this very step, never a stale
// snapshot.
func (s *step) run() (Losses, error) {
	if s.target != nil {
		if err := s.machine.RunAll(); err != nil {
			return nil, errors.Wrap(err, "forward pass")
		}
		t, err := cluster.TargetDistribution(s.probs.Value().(tensor.Tensor))
		if err != nil {
			return nil, err
		}
		s.machine.Reset()
		if err := gorgonia.Let(s.target, t); err != nil {
			return nil, errors.Wrap(err, "bind target")
		}
	}

	if err := s.machine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "training pass")
	}
	if err := s.solver.Step(gorgonia.NodesToValueGrads(s.learnables)); err != nil {
		return nil, errors.Wrap(err, "solver step")
	}
	s.machine.Reset()

	losses := make(Losses, len(s.reads))
	for name, v := range s.reads {
		losses[name] = float64((*v).Data().(float32))
	}
	return losses, nil
}

func (s *step) close() {
	s.machine.Close()
}

func letUniform(target *gorgonia.Node) error {
	shape := target.Shape()
	n, k := shape[0], shape[1]
	backing := make([]float32, n*k)
	for i := range backing {
		backing[i] = 1.0 / float32(k)
	}
	return gorgonia.Let(target, tensor.New(tensor.WithShape(n, k), tensor.WithBacking(backing)))
}
