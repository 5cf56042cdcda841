package trainer

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"sccl/internal/batch"
	"sccl/internal/config"
	"sccl/internal/loss"
	"sccl/internal/model"
	"sccl/internal/repair"
)

// EntityVariant clusters knowledge-graph entities by their fused
// representation: a trainable entity embedding concatenated with a
// text embedding of the entity's mentions. The unsupervised second
// view perturbs the text half; supervised must-link entity pairs feed
// a second contrastive term.
type EntityVariant struct {
	entOneHot [][]float32
	textEmb   [][]float32
	model     *model.Entity
	log       zerolog.Logger

	step      *step
	o, t1, t2 *gorgonia.Node
	so1, st1  *gorgonia.Node
	so2, st2  *gorgonia.Node
	pairs     *batch.PairStream[[2]int]
	rng       *rand.Rand
}

// NewEntityVariant compiles the training graph. entityIDs maps each
// dataset row to its entity index in kgeInit; textEmb holds the
// per-row text embeddings; constraints lists must-link dataset index
// pairs (may be empty); initialCenters is (NumClusters,
// EntityDim+TextDim).
func NewEntityVariant(entityIDs []int, textEmb, kgeInit [][]float32, constraints [][2]int,
	initialCenters [][]float64, cfg config.Config, log zerolog.Logger) (*EntityVariant, error) {

	if len(entityIDs) == 0 || len(entityIDs) != len(textEmb) {
		return nil, errors.Errorf("entity ids and text embeddings must align, got %d and %d",
			len(entityIDs), len(textEmb))
	}
	numEntities := len(kgeInit)
	entityDim := len(kgeInit[0])
	textDim := len(textEmb[0])

	g := gorgonia.NewGraph()
	m, err := model.NewEntity(g, model.EntityConfig{
		NumEntities:  numEntities,
		EntityDim:    entityDim,
		TextDim:      textDim,
		NumClusters:  cfg.NumClusters,
		Alpha:        cfg.Alpha,
		ContrastHead: true,
	}, batch.Tensor(kgeInit), centersTensor(initialCenters))
	if err != nil {
		return nil, err
	}

	v := &EntityVariant{
		entOneHot: oneHotRows(entityIDs, numEntities),
		textEmb:   textEmb,
		model:     m,
		log:       log,
		rng:       rand.New(rand.NewSource(cfg.Seed + 2)),
		o: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, numEntities), gorgonia.WithName("entities")),
		t1: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, textDim), gorgonia.WithName("text_view1")),
		t2: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, textDim), gorgonia.WithName("text_view2")),
	}

	reads := map[string]*gorgonia.Value{}
	fused1, err := m.Fuse(v.o, v.t1)
	if err != nil {
		return nil, err
	}
	fused2, err := m.Fuse(v.o, v.t2)
	if err != nil {
		return nil, err
	}
	f1, err := m.ContrastLogits(fused1)
	if err != nil {
		return nil, err
	}
	f2, err := m.ContrastLogits(fused2)
	if err != nil {
		return nil, err
	}
	pc := loss.PairCon{Temperature: cfg.Temperature}
	terms, err := pc.Build(f1, f2)
	if err != nil {
		return nil, errors.Wrap(err, "contrastive loss")
	}
	readInto(reads, "unsupervised_loss", terms.Loss)
	readInto(reads, "unsupervised_pos_mean", terms.PosMean)
	readInto(reads, "unsupervised_neg_mean", terms.NegMean)

	total, err := scaleTerm(terms.Loss, cfg.Eta)
	if err != nil {
		return nil, err
	}

	if len(constraints) > 0 {
		v.so1 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, numEntities), gorgonia.WithName("pair_head_entity"))
		v.st1 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, textDim), gorgonia.WithName("pair_head_text"))
		v.so2 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, numEntities), gorgonia.WithName("pair_tail_entity"))
		v.st2 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, textDim), gorgonia.WithName("pair_tail_text"))

		head, err := m.Fuse(v.so1, v.st1)
		if err != nil {
			return nil, err
		}
		tail, err := m.Fuse(v.so2, v.st2)
		if err != nil {
			return nil, err
		}
		pf1, err := m.ContrastLogits(head)
		if err != nil {
			return nil, err
		}
		pf2, err := m.ContrastLogits(tail)
		if err != nil {
			return nil, err
		}
		supTerms, err := pc.Build(pf1, pf2)
		if err != nil {
			return nil, errors.Wrap(err, "supervised contrastive loss")
		}
		readInto(reads, "supervised_loss", supTerms.Loss)
		readInto(reads, "supervised_pos_mean", supTerms.PosMean)
		readInto(reads, "supervised_neg_mean", supTerms.NegMean)

		sup, err := scaleTerm(supTerms.Loss, cfg.Eta)
		if err != nil {
			return nil, err
		}
		total, err = gorgonia.Add(total, sup)
		if err != nil {
			return nil, err
		}
		v.pairs = batch.NewPairStream(constraints, cfg.BatchSize, v.rng)
	}

	var probs, target *gorgonia.Node
	if cfg.Objective == config.ObjectiveSCCL {
		probs, err = m.ClusterProb(fused1)
		if err != nil {
			return nil, err
		}
		target = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, cfg.NumClusters), gorgonia.WithName("target"))
		cl, err := loss.KL(probs, target, cfg.BatchSize)
		if err != nil {
			return nil, errors.Wrap(err, "clustering loss")
		}
		readInto(reads, "cluster_loss", cl)
		total, err = gorgonia.Add(total, cl)
		if err != nil {
			return nil, err
		}
	}

	v.step, err = newStep(g, total, m.Learnables(), probs, target, cfg.LearnRate, reads)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (v *EntityVariant) Name() string { return "entity" }

func (v *EntityVariant) TrainStep(idx []int) (Losses, error) {
	textRows := batch.Gather(v.textEmb, idx)
	noisy := batch.NoisyView(textRows, v.rng)
	if err := gorgonia.Let(v.o, batch.Tensor(batch.Gather(v.entOneHot, idx))); err != nil {
		return nil, errors.Wrap(err, "bind entities")
	}
	if err := gorgonia.Let(v.t1, batch.Tensor(textRows)); err != nil {
		return nil, errors.Wrap(err, "bind text view1")
	}
	if err := gorgonia.Let(v.t2, batch.Tensor(noisy)); err != nil {
		return nil, errors.Wrap(err, "bind text view2")
	}

	if v.pairs != nil {
		pb := v.pairs.Next()
		heads := make([]int, len(pb))
		tails := make([]int, len(pb))
		for i, p := range pb {
			heads[i], tails[i] = p[0], p[1]
		}
		if err := gorgonia.Let(v.so1, batch.Tensor(batch.Gather(v.entOneHot, heads))); err != nil {
			return nil, errors.Wrap(err, "bind pair head entities")
		}
		if err := gorgonia.Let(v.st1, batch.Tensor(batch.Gather(v.textEmb, heads))); err != nil {
			return nil, errors.Wrap(err, "bind pair head text")
		}
		if err := gorgonia.Let(v.so2, batch.Tensor(batch.Gather(v.entOneHot, tails))); err != nil {
			return nil, errors.Wrap(err, "bind pair tail entities")
		}
		if err := gorgonia.Let(v.st2, batch.Tensor(batch.Gather(v.textEmb, tails))); err != nil {
			return nil, errors.Wrap(err, "bind pair tail text")
		}
	}
	return v.step.run()
}

func (v *EntityVariant) Predict() ([]int, error) {
	return v.model.PredictAll(v.entOneHot, v.textEmb)
}

func (v *EntityVariant) RepairCenters(rng *rand.Rand) error {
	fused, err := v.model.FuseAll(v.entOneHot, v.textEmb)
	if err != nil {
		return err
	}
	centers := v.model.CenterValues()
	res := repair.Run(fused, centers, rng, v.log)
	if res.Reseeded == 0 {
		return nil
	}
	return v.model.SetCenters(centers)
}

func (v *EntityVariant) Close() {
	v.step.close()
}

func oneHotRows(ids []int, numEntities int) [][]float32 {
	out := make([][]float32, len(ids))
	for i, id := range ids {
		row := make([]float32, numEntities)
		row[id] = 1
		out[i] = row
	}
	return out
}
