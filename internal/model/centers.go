package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func newCentersNode(g *gorgonia.ExprGraph, initial tensor.Tensor) *gorgonia.Node {
	shape := initial.Shape()
	return gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(shape[0], shape[1]),
		gorgonia.WithName("cluster_centers"),
		gorgonia.WithValue(initial))
}

// snapshotCenters reads the center matrix as detached numeric rows.
func snapshotCenters(centers *gorgonia.Node) [][]float64 {
	shape := centers.Shape()
	k, d := shape[0], shape[1]
	data := centers.Value().Data().([]float32)
	out := make([][]float64, k)
	for i := 0; i < k; i++ {
		row := make([]float64, d)
		for j := 0; j < d; j++ {
			row[j] = float64(data[i*d+j])
		}
		out[i] = row
	}
	return out
}

// overwriteCenters copies vals into the center tensor's backing array.
// This is a direct state overwrite that bypasses the optimizer; the
// next forward pass sees the new centers and gradients flow into them
// as usual.
func overwriteCenters(centers *gorgonia.Node, vals [][]float64) error {
	shape := centers.Shape()
	k, d := shape[0], shape[1]
	if len(vals) != k || (k > 0 && len(vals[0]) != d) {
		return errors.Errorf("center overwrite wants (%d,%d), got (%d,%d)", k, d, len(vals), len(vals[0]))
	}
	data := centers.Value().Data().([]float32)
	for i := 0; i < k; i++ {
		for j := 0; j < d; j++ {
			data[i*d+j] = float32(vals[i][j])
		}
	}
	return nil
}

// tensorRows splits a (N,D) float32 tensor into detached float64 rows.
func tensorRows(t tensor.Tensor) [][]float64 {
	shape := t.Shape()
	n, d := shape[0], shape[1]
	data := t.Data().([]float32)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, d)
		for j := 0; j < d; j++ {
			row[j] = float64(data[i*d+j])
		}
		out[i] = row
	}
	return out
}

// argmaxRows returns the index of the largest entry per row of a (N,K)
// float32 tensor.
func argmaxRows(t tensor.Tensor) []int {
	shape := t.Shape()
	n, k := shape[0], shape[1]
	data := t.Data().([]float32)
	out := make([]int, n)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if data[i*k+j] > data[i*k+best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
