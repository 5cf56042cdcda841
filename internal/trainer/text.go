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

// TextVariant trains the clustering over encoder embeddings of short
// texts. The encoder runs once up front; the variant only sees its
// cached output. With TaskVirtual both contrastive views are the text
// itself; with TaskExplicit the views come from the two pre-computed
// augmentation columns while the clustering loss stays on the
// original.
type TextVariant struct {
	task  model.TaskType
	text  [][]float32
	aug1  [][]float32
	aug2  [][]float32
	model *model.Matrix
	log   zerolog.Logger

	step       *step
	x0, x1, x2 *gorgonia.Node
}

// NewTextVariant compiles the training graph over cached embeddings.
// aug1/aug2 are required for TaskExplicit and ignored for TaskVirtual.
func NewTextVariant(task model.TaskType, text, aug1, aug2 [][]float32,
	initialCenters [][]float64, cfg config.Config, log zerolog.Logger) (*TextVariant, error) {

	switch task {
	case model.TaskVirtual:
	case model.TaskExplicit:
		if len(aug1) != len(text) || len(aug2) != len(text) {
			return nil, errors.Errorf("augmentations must match dataset size %d, got %d and %d",
				len(text), len(aug1), len(aug2))
		}
	default:
		return nil, errors.Errorf("task %s cannot train", task)
	}
	if len(text) == 0 {
		return nil, errors.New("empty dataset")
	}
	embSize := len(text[0])

	g := gorgonia.NewGraph()
	// Encoder embeddings are clustered where they arrive; only the
	// contrastive head and the centers train.
	m, err := model.NewMatrix(g, model.MatrixConfig{
		EmbSize:         embSize,
		HiddenSize:      cfg.HiddenSize,
		NumClusters:     cfg.NumClusters,
		Alpha:           cfg.Alpha,
		ContrastHead:    true,
		LinearTransform: false,
	}, centersTensor(initialCenters))
	if err != nil {
		return nil, err
	}

	v := &TextVariant{
		task:  task,
		text:  text,
		aug1:  aug1,
		aug2:  aug2,
		model: m,
		log:   log,
		x0: gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, embSize), gorgonia.WithName("text")),
	}

	var view1, view2 *gorgonia.Node
	switch task {
	case model.TaskVirtual:
		view1, view2 = v.x0, v.x0
	case model.TaskExplicit:
		v.x1 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, embSize), gorgonia.WithName("augmentation_1"))
		v.x2 = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.BatchSize, embSize), gorgonia.WithName("augmentation_2"))
		view1, view2 = v.x1, v.x2
	}

	reads := map[string]*gorgonia.Value{}
	f1, err := m.ContrastLogits(view1)
	if err != nil {
		return nil, err
	}
	f2, err := m.ContrastLogits(view2)
	if err != nil {
		return nil, err
	}
	terms, err := loss.PairCon{Temperature: cfg.Temperature}.Build(f1, f2)
	if err != nil {
		return nil, errors.Wrap(err, "contrastive loss")
	}
	readInto(reads, "loss", terms.Loss)
	readInto(reads, "pos_mean", terms.PosMean)
	readInto(reads, "neg_mean", terms.NegMean)

	total, err := scaleTerm(terms.Loss, cfg.Eta)
	if err != nil {
		return nil, err
	}

	var probs, target *gorgonia.Node
	if cfg.Objective == config.ObjectiveSCCL {
		probs, err = m.ClusterProb(v.x0)
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

		// The self-duplicated views make the clustering term easier to
		// dominate, so it enters at half weight there.
		clusterWeight := 1.0
		if task == model.TaskVirtual {
			clusterWeight = 0.5
		}
		weighted, err := scaleTerm(cl, clusterWeight)
		if err != nil {
			return nil, err
		}
		total, err = gorgonia.Add(total, weighted)
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

func (v *TextVariant) Name() string { return "text_" + v.task.String() }

func (v *TextVariant) TrainStep(idx []int) (Losses, error) {
	if err := gorgonia.Let(v.x0, batch.Tensor(batch.Gather(v.text, idx))); err != nil {
		return nil, errors.Wrap(err, "bind text")
	}
	if v.task == model.TaskExplicit {
		if err := gorgonia.Let(v.x1, batch.Tensor(batch.Gather(v.aug1, idx))); err != nil {
			return nil, errors.Wrap(err, "bind augmentation 1")
		}
		if err := gorgonia.Let(v.x2, batch.Tensor(batch.Gather(v.aug2, idx))); err != nil {
			return nil, errors.Wrap(err, "bind augmentation 2")
		}
	}
	return v.step.run()
}

func (v *TextVariant) Predict() ([]int, error) {
	return v.model.PredictAll(v.text)
}

func (v *TextVariant) RepairCenters(rng *rand.Rand) error {
	embedded, err := v.model.EmbedAll(v.text)
	if err != nil {
		return err
	}
	centers := v.model.CenterValues()
	res := repair.Run(embedded, centers, rng, v.log)
	if res.Reseeded == 0 {
		return nil
	}
	return v.model.SetCenters(centers)
}

func (v *TextVariant) Close() {
	v.step.close()
}
