// Package cluster implements the soft-assignment engine, the
// self-training target distribution, and k-means center
// initialization.
package cluster

import (
	"github.com/pkg/errors"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Assign maps embeddings (N,D) and cluster centers (K,D) to soft
// assignment probabilities (N,K) using the Student's-t kernel
//
//	q_ik = (1 + d_ik^2/alpha)^(-(alpha+1)/2) / sum_k' ...
//
// where d_ik is the Euclidean distance between embedding i and center
// k. The result is differentiable with respect to both inputs; every
// entry is strictly positive so row normalization never divides by
// zero.
func Assign(embeddings, centers *gorgonia.Node, alpha float64) (*gorgonia.Node, error) {
	g := embeddings.Graph()

	// Squared distances via ||e||^2 + ||c||^2 - 2*E*C^T so the bulk of
	// the work stays a single matmul.
	embSq, err := gorgonia.Square(embeddings)
	if err != nil {
		return nil, errors.Wrap(err, "square embeddings")
	}
	embNorm, err := gorgonia.Sum(embSq, 1)
	if err != nil {
		return nil, err
	}
	cenSq, err := gorgonia.Square(centers)
	if err != nil {
		return nil, errors.Wrap(err, "square centers")
	}
	cenNorm, err := gorgonia.Sum(cenSq, 1)
	if err != nil {
		return nil, err
	}

	cenT, err := gorgonia.Transpose(centers, 1, 0)
	if err != nil {
		return nil, err
	}
	cross, err := gorgonia.Mul(embeddings, cenT)
	if err != nil {
		return nil, errors.Wrap(err, "embeddings x centers")
	}
	negTwo := gorgonia.NodeFromAny(g, float32(-2.0))
	crossScaled, err := gorgonia.HadamardProd(cross, negTwo)
	if err != nil {
		return nil, err
	}

	n := embeddings.Shape()[0]
	k := centers.Shape()[0]
	embNormCol, err := gorgonia.Reshape(embNorm, tensor.Shape{n, 1})
	if err != nil {
		return nil, err
	}
	cenNormRow, err := gorgonia.Reshape(cenNorm, tensor.Shape{1, k})
	if err != nil {
		return nil, err
	}
	dist, err := gorgonia.BroadcastAdd(crossScaled, embNormCol, nil, []byte{1})
	if err != nil {
		return nil, err
	}
	dist, err = gorgonia.BroadcastAdd(dist, cenNormRow, nil, []byte{0})
	if err != nil {
		return nil, err
	}

	// Kernel: (1 + d^2/alpha)^(-(alpha+1)/2).
	invAlpha := gorgonia.NodeFromAny(g, float32(1.0/alpha))
	scaled, err := gorgonia.HadamardProd(dist, invAlpha)
	if err != nil {
		return nil, err
	}
	one := gorgonia.NodeFromAny(g, float32(1.0))
	base, err := gorgonia.Add(scaled, one)
	if err != nil {
		return nil, err
	}
	exponent := gorgonia.NodeFromAny(g, float32(-(alpha+1)/2))
	kernel, err := gorgonia.Pow(base, exponent)
	if err != nil {
		return nil, errors.Wrap(err, "kernel power")
	}

	rowSum, err := gorgonia.Sum(kernel, 1)
	if err != nil {
		return nil, err
	}
	rowSumCol, err := gorgonia.Reshape(rowSum, tensor.Shape{n, 1})
	if err != nil {
		return nil, err
	}
	probs, err := gorgonia.BroadcastHadamardDiv(kernel, rowSumCol, nil, []byte{1})
	if err != nil {
		return nil, errors.Wrap(err, "row normalize")
	}
	return probs, nil
}
