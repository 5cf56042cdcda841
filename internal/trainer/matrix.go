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

// MatrixVariant trains the clustering over pre-computed vectors. The
// second view of each batch is a Gaussian-noise perturbation of the
// first. With must-link constraints it additionally optimizes a
// supervised contrastive term over a cycling stream of constraint
// pairs.
type MatrixVariant struct {
	name    string
	data    [][]float32
	embSize int
	model   *model.Matrix
	cfg     config.Config
	log     zerolog.Logger

	step     *step
	x1, x2   *gorgonia.Node
	sp1, sp2 *gorgonia.Node
	pairs    *batch.PairStream[[]float32]
	rng      *rand.Rand
}

// NewMatrixVariant compiles the training graph. constraints is a list
// of must-link dataset index pairs; nil disables the supervised term.
// initialCenters is (NumClusters, dim), typically a k-means result
// over the raw data.
func NewMatrixVariant(data [][]float32, constraints [][2]int, initialCenters [][]float64,
	cfg config.Config, log zerolog.Logger) (*MatrixVariant, error) {

	if len(data) == 0 {
		return nil, errors.New("empty dataset")
	}
	embSize := len(data[0])
	name := "matrix"
	if len(constraints) > 0 {
		name = "pairs"
	}

	g := gorgonia.NewGraph()
	m, err := model.NewMatrix(g, model.MatrixConfig{
		EmbSize:         embSize,
		HiddenSize:      cfg.HiddenSize,
		NumClusters:     cfg.NumClusters,
		Alpha:           cfg.Alpha,
		ContrastHead:    true,
		LinearTransform: true,
	}, centersTensor(initialCenters))
	if err != nil {
		return nil, err
	}

	v := &MatrixVariant{
		name:    name,
		data:    data,
		embSize: embSize,
		model:   m,
		cfg:     cfg,
		log:     log,
		rng:     rand.New(rand.NewSource(cfg.Seed + 1)),
		x1: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, embSize), gorgonia.WithName("view1")),
		x2: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, embSize), gorgonia.WithName("view2")),
	}

	reads := map[string]*gorgonia.Value{}
	lossKey, posKey, negKey := "loss", "pos_mean", "neg_mean"
	if name == "pairs" {
		lossKey, posKey, negKey = "unsupervised_loss", "unsupervised_pos_mean", "unsupervised_neg_mean"
	}

	e1, err := m.Transform(v.x1)
	if err != nil {
		return nil, err
	}
	e2, err := m.Transform(v.x2)
	if err != nil {
		return nil, err
	}
	f1, err := m.ContrastLogits(e1)
	if err != nil {
		return nil, err
	}
	f2, err := m.ContrastLogits(e2)
	if err != nil {
		return nil, err
	}
	pc := loss.PairCon{Temperature: cfg.Temperature}
	terms, err := pc.Build(f1, f2)
	if err != nil {
		return nil, errors.Wrap(err, "contrastive loss")
	}
	readInto(reads, lossKey, terms.Loss)
	readInto(reads, posKey, terms.PosMean)
	readInto(reads, negKey, terms.NegMean)

	total, err := scaleTerm(terms.Loss, cfg.Eta)
	if err != nil {
		return nil, err
	}

	if len(constraints) > 0 {
		v.sp1 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, embSize), gorgonia.WithName("pair_head"))
		v.sp2 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, embSize), gorgonia.WithName("pair_tail"))
		// Constraint pairs contrast raw points, not their transformed
		// images: the supervision anchors the head directly.
		pf1, err := m.ContrastLogits(v.sp1)
		if err != nil {
			return nil, err
		}
		pf2, err := m.ContrastLogits(v.sp2)
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

		rows := make([][]float32, len(constraints))
		for i, c := range constraints {
			row := make([]float32, 0, 2*embSize)
			row = append(row, data[c[0]]...)
			row = append(row, data[c[1]]...)
			rows[i] = row
		}
		v.pairs = batch.NewPairStream(rows, cfg.BatchSize, v.rng)
	}

	var probs, target *gorgonia.Node
	if cfg.Objective == config.ObjectiveSCCL {
		probs, err = m.ClusterProb(e1)
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

func (v *MatrixVariant) Name() string { return v.name }

func (v *MatrixVariant) TrainStep(idx []int) (Losses, error) {
	rows := batch.Gather(v.data, idx)
	noisy := batch.NoisyView(rows, v.rng)
	if err := gorgonia.Let(v.x1, batch.Tensor(rows)); err != nil {
		return nil, errors.Wrap(err, "bind view1")
	}
	if err := gorgonia.Let(v.x2, batch.Tensor(noisy)); err != nil {
		return nil, errors.Wrap(err, "bind view2")
	}

	if v.pairs != nil {
		pb := v.pairs.Next()
		heads := make([][]float32, len(pb))
		tails := make([][]float32, len(pb))
		for i, row := range pb {
			heads[i] = row[:v.embSize]
			tails[i] = row[v.embSize:]
		}
		if err := gorgonia.Let(v.sp1, batch.Tensor(heads)); err != nil {
			return nil, errors.Wrap(err, "bind pair heads")
		}
		if err := gorgonia.Let(v.sp2, batch.Tensor(tails)); err != nil {
			return nil, errors.Wrap(err, "bind pair tails")
		}
	}
	return v.step.run()
}

func (v *MatrixVariant) Predict() ([]int, error) {
	return v.model.PredictAll(v.data)
}

// RepairCenters reseeds empty clusters from the raw dataset matrix,
// the same space the centers were seeded from.
func (v *MatrixVariant) RepairCenters(rng *rand.Rand) error {
	centers := v.model.CenterValues()
	res := repair.Run(float64Rows(v.data), centers, rng, v.log)
	if res.Reseeded == 0 {
		return nil
	}
	return v.model.SetCenters(centers)
}

func (v *MatrixVariant) Close() {
	v.step.close()
}
