// Package loss builds the training losses as gorgonia graph fragments:
// the pairwise contrastive (NT-Xent) loss and the KL self-training
// clustering loss.
package loss

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// PairCon is the symmetric InfoNCE loss over two L2-normalized
// projected views of the same batch.
type PairCon struct {
	Temperature float64
}

// PairConTerms exposes the loss node plus the diagnostic mean
// similarity nodes. The diagnostics are read out of the graph for
// monitoring representation collapse; they carry no gradient of their
// own.
type PairConTerms struct {
	Loss    *gorgonia.Node
	PosMean *gorgonia.Node
	NegMean *gorgonia.Node
}

// Build wires the loss over feat1 and feat2, both (N,D'). For each
// example i the positive pair is (feat1[i], feat2[i]); the negatives
// are the other 2N-2 vectors of the pooled batch [feat1; feat2],
// scored by exp(dot/temperature):
//
//	loss = mean_i over 2N rows of -log(pos_i / (Ng_i + pos_i))
func (p PairCon) Build(feat1, feat2 *gorgonia.Node) (*PairConTerms, error) {
	g := feat1.Graph()
	n := feat1.Shape()[0]
	invTemp := gorgonia.NodeFromAny(g, float32(1.0/p.Temperature))

	// Positive similarities, duplicated for both pooled rows of each
	// example.
	prod, err := gorgonia.HadamardProd(feat1, feat2)
	if err != nil {
		return nil, err
	}
	posSim, err := gorgonia.Sum(prod, 1)
	if err != nil {
		return nil, err
	}
	posScaled, err := gorgonia.HadamardProd(posSim, invTemp)
	if err != nil {
		return nil, err
	}
	posExp, err := gorgonia.Exp(posScaled)
	if err != nil {
		return nil, err
	}
	pos, err := gorgonia.Concat(0, posExp, posExp)
	if err != nil {
		return nil, errors.Wrap(err, "pool positives")
	}

	// Pooled similarity matrix with self and positive-partner entries
	// masked out, leaving 2N-2 negatives per row.
	pooled, err := gorgonia.Concat(0, feat1, feat2)
	if err != nil {
		return nil, errors.Wrap(err, "pool views")
	}
	pooledT, err := gorgonia.Transpose(pooled, 1, 0)
	if err != nil {
		return nil, err
	}
	sims, err := gorgonia.Mul(pooled, pooledT)
	if err != nil {
		return nil, err
	}
	simsScaled, err := gorgonia.HadamardProd(sims, invTemp)
	if err != nil {
		return nil, err
	}
	simsExp, err := gorgonia.Exp(simsScaled)
	if err != nil {
		return nil, err
	}
	mask := gorgonia.NodeFromAny(g, negativeMask(n))
	masked, err := gorgonia.HadamardProd(simsExp, mask)
	if err != nil {
		return nil, errors.Wrap(err, "mask negatives")
	}
	ng, err := gorgonia.Sum(masked, 1)
	if err != nil {
		return nil, err
	}

	denom, err := gorgonia.Add(ng, pos)
	if err != nil {
		return nil, err
	}
	ratio, err := gorgonia.HadamardDiv(pos, denom)
	if err != nil {
		return nil, err
	}
	logRatio, err := gorgonia.Log(ratio)
	if err != nil {
		return nil, err
	}
	meanLog, err := gorgonia.Mean(logRatio)
	if err != nil {
		return nil, err
	}
	lossNode, err := gorgonia.Neg(meanLog)
	if err != nil {
		return nil, err
	}

	posMean, err := gorgonia.Mean(pos)
	if err != nil {
		return nil, err
	}
	// The mask zeroes 2N entries per 2N rows, so the mean over actual
	// negatives rescales the full sum by 1/(2N*(2N-2)).
	negTotal, err := gorgonia.Sum(masked)
	if err != nil {
		return nil, err
	}
	negCount := gorgonia.NodeFromAny(g, float32(1.0/float64(2*n*(2*n-2))))
	negMean, err := gorgonia.HadamardProd(negTotal, negCount)
	if err != nil {
		return nil, err
	}

	return &PairConTerms{Loss: lossNode, PosMean: posMean, NegMean: negMean}, nil
}

// negativeMask is (2N,2N) with zeros wherever row and column refer to
// the same underlying example (self-similarity and the positive
// partner) and ones elsewhere.
func negativeMask(n int) tensor.Tensor {
	size := 2 * n
	backing := make([]float32, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if i%n != j%n {
				backing[i*size+j] = 1
			}
		}
	}
	return tensor.New(tensor.WithShape(size, size), tensor.WithBacking(backing))
}
