package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// contrastDim is the output width of the contrastive projection head.
const contrastDim = 128

// mlp is a two-layer perceptron with a ReLU in between: the shape both
// the transform head and the contrast head share.
type mlp struct {
	w1, b1, w2, b2 *gorgonia.Node
}

func newMLP(g *gorgonia.ExprGraph, name string, in, hidden, out int) *mlp {
	return &mlp{
		w1: gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(in, hidden),
			gorgonia.WithName(name+"_W1"), gorgonia.WithInit(gorgonia.GlorotU(1.0))),
		b1: gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(1, hidden),
			gorgonia.WithName(name+"_b1"), gorgonia.WithInit(gorgonia.Zeroes())),
		w2: gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(hidden, out),
			gorgonia.WithName(name+"_W2"), gorgonia.WithInit(gorgonia.GlorotU(1.0))),
		b2: gorgonia.NewMatrix(g, tensor.Float32, gorgonia.WithShape(1, out),
			gorgonia.WithName(name+"_b2"), gorgonia.WithInit(gorgonia.Zeroes())),
	}
}

func (m *mlp) apply(x *gorgonia.Node) (*gorgonia.Node, error) {
	h, err := gorgonia.Mul(x, m.w1)
	if err != nil {
		return nil, err
	}
	h, err = gorgonia.BroadcastAdd(h, m.b1, nil, []byte{0})
	if err != nil {
		return nil, err
	}
	h, err = gorgonia.Rectify(h)
	if err != nil {
		return nil, err
	}
	out, err := gorgonia.Mul(h, m.w2)
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastAdd(out, m.b2, nil, []byte{0})
}

func (m *mlp) nodes() gorgonia.Nodes {
	return gorgonia.Nodes{m.w1, m.b1, m.w2, m.b2}
}

// values clones the current weight tensors, for rebuilding the head on
// a fresh evaluation graph.
func (m *mlp) values() []tensor.Tensor {
	nodes := m.nodes()
	vals := make([]tensor.Tensor, len(nodes))
	for i, n := range nodes {
		vals[i] = n.Value().(tensor.Tensor).Clone().(tensor.Tensor)
	}
	return vals
}

func (m *mlp) let(vals []tensor.Tensor) error {
	nodes := m.nodes()
	if len(vals) != len(nodes) {
		return errors.Errorf("expected %d weight tensors, got %d", len(nodes), len(vals))
	}
	for i, n := range nodes {
		if err := gorgonia.Let(n, vals[i]); err != nil {
			return errors.Wrapf(err, "bind %s", n.Name())
		}
	}
	return nil
}

// normalizeRows rescales each row of x to unit L2 norm.
func normalizeRows(x *gorgonia.Node) (*gorgonia.Node, error) {
	sq, err := gorgonia.Square(x)
	if err != nil {
		return nil, err
	}
	sums, err := gorgonia.Sum(sq, 1)
	if err != nil {
		return nil, err
	}
	eps := gorgonia.NodeFromAny(x.Graph(), float32(1e-12))
	sums, err = gorgonia.Add(sums, eps)
	if err != nil {
		return nil, err
	}
	norms, err := gorgonia.Sqrt(sums)
	if err != nil {
		return nil, err
	}
	normsCol, err := gorgonia.Reshape(norms, tensor.Shape{x.Shape()[0], 1})
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastHadamardDiv(x, normsCol, nil, []byte{1})
}
