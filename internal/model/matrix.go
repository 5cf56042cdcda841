package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"sccl/internal/batch"
	"sccl/internal/cluster"
)

// MatrixConfig configures the matrix/vector clustering model.
type MatrixConfig struct {
	EmbSize     int
	HiddenSize  int
	NumClusters int
	Alpha       float64
	// ContrastHead enables the projection head required for the
	// contrastive loss terms.
	ContrastHead bool
	// LinearTransform enables the learned transform between raw input
	// vectors and the clustering space. Without it, points are
	// clustered where they arrive.
	LinearTransform bool
}

// Matrix learns a clustering over pre-computed vectors: an optional
// two-layer transform, an optional contrastive head, and the trainable
// cluster centers. It also serves the text trainer, which feeds
// encoder embeddings through it with the transform disabled.
type Matrix struct {
	g         *gorgonia.ExprGraph
	cfg       MatrixConfig
	transform *mlp
	contrast  *mlp
	centers   *gorgonia.Node
}

// NewMatrix builds the model on g with the given initial cluster
// centers (K, EmbSize).
func NewMatrix(g *gorgonia.ExprGraph, cfg MatrixConfig, initialCenters tensor.Tensor) (*Matrix, error) {
	shape := initialCenters.Shape()
	if len(shape) != 2 || shape[0] != cfg.NumClusters || shape[1] != cfg.EmbSize {
		return nil, errors.Errorf("initial centers must be (%d,%d), got %v", cfg.NumClusters, cfg.EmbSize, shape)
	}
	m := &Matrix{
		g:       g,
		cfg:     cfg,
		centers: newCentersNode(g, initialCenters),
	}
	if cfg.LinearTransform {
		m.transform = newMLP(g, "transform", cfg.EmbSize, cfg.HiddenSize, cfg.EmbSize)
	}
	if cfg.ContrastHead {
		m.contrast = newMLP(g, "contrast", cfg.EmbSize, cfg.EmbSize, contrastDim)
	}
	return m, nil
}

// Transform maps raw points into the clustering space, or passes them
// through unchanged when no transform is configured.
func (m *Matrix) Transform(x *gorgonia.Node) (*gorgonia.Node, error) {
	if m.transform == nil {
		return x, nil
	}
	return m.transform.apply(x)
}

// ClusterProb is the soft assignment of embeddings to the current
// centers.
func (m *Matrix) ClusterProb(embd *gorgonia.Node) (*gorgonia.Node, error) {
	return cluster.Assign(embd, m.centers, m.cfg.Alpha)
}

// ContrastLogits projects embeddings through the contrastive head and
// L2-normalizes the rows. Calling it without a configured head is a
// misconfiguration, reported immediately.
func (m *Matrix) ContrastLogits(embd *gorgonia.Node) (*gorgonia.Node, error) {
	if m.contrast == nil {
		return nil, errors.New("contrastive head is not enabled for this model")
	}
	f, err := m.contrast.apply(embd)
	if err != nil {
		return nil, err
	}
	return normalizeRows(f)
}

// Learnables lists every trainable parameter, cluster centers
// included.
func (m *Matrix) Learnables() gorgonia.Nodes {
	out := gorgonia.Nodes{}
	if m.transform != nil {
		out = append(out, m.transform.nodes()...)
	}
	if m.contrast != nil {
		out = append(out, m.contrast.nodes()...)
	}
	return append(out, m.centers)
}

// CenterValues returns a detached numeric snapshot of the centers.
func (m *Matrix) CenterValues() [][]float64 {
	return snapshotCenters(m.centers)
}

// SetCenters overwrites the center parameter in place, bypassing the
// optimizer. Used by the repair heuristic.
func (m *Matrix) SetCenters(vals [][]float64) error {
	return overwriteCenters(m.centers, vals)
}

// EmbedAll maps the whole dataset into the clustering space as a
// detached numeric matrix, for the repair heuristic. Without a
// transform it is a plain copy.
func (m *Matrix) EmbedAll(data [][]float32) ([][]float64, error) {
	if m.transform == nil {
		out := make([][]float64, len(data))
		for i, r := range data {
			row := make([]float64, len(r))
			for j, v := range r {
				row[j] = float64(v)
			}
			out[i] = row
		}
		return out, nil
	}

	g := gorgonia.NewGraph()
	x := gorgonia.NodeFromAny(g, batch.Tensor(data), gorgonia.WithName("embed_points"))
	eval := newMLP(g, "embed_transform", m.cfg.EmbSize, m.cfg.HiddenSize, m.cfg.EmbSize)
	if err := eval.let(m.transform.values()); err != nil {
		return nil, err
	}
	embd, err := eval.apply(x)
	if err != nil {
		return nil, err
	}
	machine := gorgonia.NewTapeMachine(g)
	defer machine.Close()
	if err := machine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "embedding pass")
	}
	return tensorRows(embd.Value().(tensor.Tensor)), nil
}

// PredictAll computes hard cluster assignments for the whole dataset
// on a fresh evaluation graph populated with the current weights. The
// training graph is shape-locked to the batch size, so evaluation gets
// its own graph, the same way training and evaluation machines are
// separated elsewhere in this codebase.
func (m *Matrix) PredictAll(data [][]float32) ([]int, error) {
	g := gorgonia.NewGraph()
	x := gorgonia.NodeFromAny(g, batch.Tensor(data), gorgonia.WithName("eval_points"))

	var embd *gorgonia.Node = x
	if m.transform != nil {
		eval := newMLP(g, "eval_transform", m.cfg.EmbSize, m.cfg.HiddenSize, m.cfg.EmbSize)
		if err := eval.let(m.transform.values()); err != nil {
			return nil, err
		}
		var err error
		embd, err = eval.apply(x)
		if err != nil {
			return nil, err
		}
	}

	centersVal := m.centers.Value().(tensor.Tensor).Clone().(tensor.Tensor)
	evalCenters := newCentersNode(g, centersVal)
	probs, err := cluster.Assign(embd, evalCenters, m.cfg.Alpha)
	if err != nil {
		return nil, err
	}

	machine := gorgonia.NewTapeMachine(g)
	defer machine.Close()
	if err := machine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "evaluation pass")
	}
	return argmaxRows(probs.Value().(tensor.Tensor)), nil
}
