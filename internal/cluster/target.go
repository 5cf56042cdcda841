package cluster

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TargetDistribution sharpens soft assignments into the self-training
// target:
//
//	t_ik = (p_ik^2 / f_k) / sum_k'(p_ik'^2 / f_k'),  f_k = sum_i p_ik
//
// The division by the soft cluster frequency f_k counteracts
// large-cluster dominance. The result is plain numeric data computed
// outside the expression graph; feeding it back in through a
// placeholder is what detaches it from the gradient.
func TargetDistribution(probs tensor.Tensor) (tensor.Tensor, error) {
	shape := probs.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("target distribution wants a (N,K) matrix, got %v", shape)
	}
	n, k := shape[0], shape[1]
	data, ok := probs.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("target distribution wants float32 probs, got %T", probs.Data())
	}

	freq := make([]float64, k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			freq[j] += float64(data[i*k+j])
		}
	}

	out := make([]float32, n*k)
	for i := 0; i < n; i++ {
		var rowSum float64
		row := make([]float64, k)
		for j := 0; j < k; j++ {
			p := float64(data[i*k+j])
			row[j] = p * p / freq[j]
			rowSum += row[j]
		}
		for j := 0; j < k; j++ {
			out[i*k+j] = float32(row[j] / rowSum)
		}
	}
	return tensor.New(tensor.WithShape(n, k), tensor.WithBacking(out)), nil
}
