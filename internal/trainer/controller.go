package trainer

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sccl/internal/batch"
	"sccl/internal/config"
	"sccl/internal/metrics"
)

// Variant is one training objective over a fixed dataset: it turns a
// batch of dataset indices into a gradient step and can predict hard
// cluster assignments for the full dataset.
type Variant interface {
	Name() string
	TrainStep(idx []int) (Losses, error)
	Predict() ([]int, error)
	RepairCenters(rng *rand.Rand) error
}

// Controller drives a Variant through the iteration budget: it feeds
// index batches, periodically repairs empty clusters, evaluates on a
// cadence and stops early once assignments stay stable for the
// configured patience.
type Controller struct {
	variant Variant
	loader  *batch.Cycle
	rng     *rand.Rand
	cfg     config.Config
	sink    metrics.Sink
	scorer  CanonicalizationScorer
	gold    []int
	log     zerolog.Logger
}

// New wires a controller. goldLabels and scorer may be nil; metrics
// that need them are simply skipped.
func New(v Variant, datasetSize int, goldLabels []int, cfg config.Config,
	sink metrics.Sink, scorer CanonicalizationScorer, log zerolog.Logger) *Controller {

	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Controller{
		variant: v,
		loader:  batch.NewCycle(datasetSize, cfg.BatchSize, rng),
		rng:     rng,
		cfg:     cfg,
		sink:    sink,
		scorer:  scorer,
		gold:    goldLabels,
		log:     log.With().Str("variant", v.Name()).Logger(),
	}
}

// Train runs the loop and returns the final hard assignments together
// with the terminal state.
func (c *Controller) Train() ([]int, State, error) {
	var state State

	pred, err := c.evaluate(0)
	if err != nil {
		return nil, state, err
	}

	for i := 0; i <= c.cfg.MaxIter; i++ {
		state.Step = i
		idx, wrapped := c.loader.Next()

		losses, err := c.variant.TrainStep(idx)
		if err != nil {
			return nil, state, errors.Wrapf(err, "step %d", i)
		}
		for name, v := range losses {
			c.sink.Scalar(name, v, i)
		}

		if i > 0 && (wrapped || i%c.cfg.RepairEvery == 0 || i == c.cfg.MaxIter-2) {
			if err := c.variant.RepairCenters(c.rng); err != nil {
				return nil, state, errors.Wrapf(err, "repair at step %d", i)
			}
		}

		if c.cfg.PrintFreq > 0 && (i%c.cfg.PrintFreq == 0 || i == c.cfg.MaxIter) {
			pred, err = c.evaluate(i)
			if err != nil {
				return nil, state, err
			}
			if state.Observe(pred, c.cfg.Patience) {
				c.log.Info().Int("step", i).Msg("assignments stable, stopping")
				return pred, state, nil
			}
		}
	}

	state.Status = StatusMaxIter
	if pred == nil {
		pred, err = c.variant.Predict()
		if err != nil {
			return nil, state, err
		}
	}
	return pred, state, nil
}

func (c *Controller) evaluate(step int) ([]int, error) {
	pred, err := c.variant.Predict()
	if err != nil {
		return nil, errors.Wrapf(err, "predict at step %d", step)
	}
	if c.gold != nil {
		c.sink.Scalar("rand_score", metrics.AdjustedRandIndex(pred, c.gold), step)
	}
	if c.scorer != nil {
		scores, err := c.scorer(pred)
		if err != nil {
			c.log.Warn().Err(err).Int("step", step).Msg("canonicalization scoring failed")
		} else {
			c.sink.Scalar("ave_f1", scores.AveF1, step)
			c.sink.Scalar("macro_f1", scores.MacroF1, step)
			c.sink.Scalar("micro_f1", scores.MicroF1, step)
			c.sink.Scalar("pair_f1", scores.PairF1, step)
		}
	}
	return pred, nil
}
