package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"sccl/internal/batch"
	"sccl/internal/cluster"
)

// EntityConfig configures the knowledge-graph entity fusion model.
type EntityConfig struct {
	NumEntities  int
	EntityDim    int
	TextDim      int
	NumClusters  int
	Alpha        float64
	ContrastHead bool
}

func (c EntityConfig) fusedDim() int { return c.EntityDim + c.TextDim }

// Entity fuses a trainable knowledge-graph entity embedding with
// black-box text encoder embeddings. Entity rows are selected in-graph
// by one-hot multiplication so gradients reach the embedding matrix;
// text embeddings arrive as plain inputs.
type Entity struct {
	g         *gorgonia.ExprGraph
	cfg       EntityConfig
	entityEmb *gorgonia.Node
	contrast  *mlp
	centers   *gorgonia.Node
}

// NewEntity builds the model. kgeInit (NumEntities, EntityDim) seeds
// the entity embedding matrix, typically from a pre-trained KGE model;
// initialCenters is (NumClusters, EntityDim+TextDim).
func NewEntity(g *gorgonia.ExprGraph, cfg EntityConfig, kgeInit, initialCenters tensor.Tensor) (*Entity, error) {
	if s := kgeInit.Shape(); len(s) != 2 || s[0] != cfg.NumEntities || s[1] != cfg.EntityDim {
		return nil, errors.Errorf("entity embedding init must be (%d,%d), got %v", cfg.NumEntities, cfg.EntityDim, s)
	}
	if s := initialCenters.Shape(); len(s) != 2 || s[0] != cfg.NumClusters || s[1] != cfg.fusedDim() {
		return nil, errors.Errorf("initial centers must be (%d,%d), got %v", cfg.NumClusters, cfg.fusedDim(), s)
	}
	m := &Entity{
		g:   g,
		cfg: cfg,
		entityEmb: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.NumEntities, cfg.EntityDim),
			gorgonia.WithName("entity_embedding"),
			gorgonia.WithValue(kgeInit)),
		centers: newCentersNode(g, initialCenters),
	}
	if cfg.ContrastHead {
		m.contrast = newMLP(g, "contrast", cfg.fusedDim(), cfg.fusedDim(), contrastDim)
	}
	return m, nil
}

// Fuse builds the joint representation [oneHot x entityEmb || textEmb]
// for a batch of entity one-hot rows (B, NumEntities) and text
// embeddings (B, TextDim).
func (m *Entity) Fuse(entOneHot, textEmb *gorgonia.Node) (*gorgonia.Node, error) {
	kge, err := gorgonia.Mul(entOneHot, m.entityEmb)
	if err != nil {
		return nil, errors.Wrap(err, "select entity embeddings")
	}
	return gorgonia.Concat(1, kge, textEmb)
}

func (m *Entity) ClusterProb(embd *gorgonia.Node) (*gorgonia.Node, error) {
	return cluster.Assign(embd, m.centers, m.cfg.Alpha)
}

func (m *Entity) ContrastLogits(embd *gorgonia.Node) (*gorgonia.Node, error) {
	if m.contrast == nil {
		return nil, errors.New("contrastive head is not enabled for this model")
	}
	f, err := m.contrast.apply(embd)
	if err != nil {
		return nil, err
	}
	return normalizeRows(f)
}

func (m *Entity) Learnables() gorgonia.Nodes {
	out := gorgonia.Nodes{m.entityEmb}
	if m.contrast != nil {
		out = append(out, m.contrast.nodes()...)
	}
	return append(out, m.centers)
}

func (m *Entity) CenterValues() [][]float64 {
	return snapshotCenters(m.centers)
}

func (m *Entity) SetCenters(vals [][]float64) error {
	return overwriteCenters(m.centers, vals)
}

// FuseAll builds the fused representation of every example as a
// detached numeric matrix, for the repair heuristic.
func (m *Entity) FuseAll(entOneHot, textEmb [][]float32) ([][]float64, error) {
	g := gorgonia.NewGraph()
	oh := gorgonia.NodeFromAny(g, batch.Tensor(entOneHot), gorgonia.WithName("fuse_entities"))
	tx := gorgonia.NodeFromAny(g, batch.Tensor(textEmb), gorgonia.WithName("fuse_text"))

	embVal := m.entityEmb.Value().(tensor.Tensor).Clone().(tensor.Tensor)
	evalEmb := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(m.cfg.NumEntities, m.cfg.EntityDim),
		gorgonia.WithName("fuse_entity_embedding"),
		gorgonia.WithValue(embVal))
	kge, err := gorgonia.Mul(oh, evalEmb)
	if err != nil {
		return nil, err
	}
	fused, err := gorgonia.Concat(1, kge, tx)
	if err != nil {
		return nil, err
	}
	machine := gorgonia.NewTapeMachine(g)
	defer machine.Close()
	if err := machine.RunAll(); err != nil {
		return nil, errors.Wrap(err, "fusion pass")
	}
	return tensorRows(fused.Value().(tensor.Tensor)), nil
}

// PredictAll computes hard assignments for every example from its
// original entity one-hot and text embedding, on a fresh evaluation
// graph with the current weights.
func (m *Entity) PredictAll(entOneHot, textEmb [][]float32) ([]int, error) {
	g := gorgonia.NewGraph()
	oh := gorgonia.NodeFromAny(g, batch.Tensor(entOneHot), gorgonia.WithName("eval_entities"))
	tx := gorgonia.NodeFromAny(g, batch.Tensor(textEmb), gorgonia.WithName("eval_text"))

	embVal := m.entityEmb.Value().(tensor.Tensor).Clone().(tensor.Tensor)
	evalEmb := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(m.cfg.NumEntities, m.cfg.EntityDim),
		gorgonia.WithName("eval_entity_embedding"),
		gorgonia.WithValue(embVal))
	kge, err := gorgonia.Mul(oh, evalEmb)
	if err != nil {
		return nil, err
	}
	fused, err := gorgonia.Concat(1, kge, tx)
	if err != nil {
		return nil, err
	}

	centersVal := m.centers.Value().(tensor.Tensor).Clone().(tensor.Tensor)
	evalCenters := newCentersNode(g, centersVal)
	probs, err := cluster.Assign(fused, evalCenters, m.cfg.Alpha)
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
