package trainer

import (
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// readInto registers a scalar node to be copied out of the graph on
// every run, under the name its loss will be reported as.
func readInto(reads map[string]*gorgonia.Value, name string, n *gorgonia.Node) {
	v := new(gorgonia.Value)
	gorgonia.Read(n, v)
	reads[name] = v
}

// scaleTerm multiplies a scalar loss node by a constant weight.
func scaleTerm(n *gorgonia.Node, w float64) (*gorgonia.Node, error) {
	if w == 1.0 {
		return n, nil
	}
	return gorgonia.HadamardProd(n, gorgonia.NodeFromAny(n.Graph(), float32(w)))
}

// float64Rows widens a float32 dataset for the numeric repair pass.
func float64Rows(data [][]float32) [][]float64 {
	out := make([][]float64, len(data))
	for i, r := range data {
		row := make([]float64, len(r))
		for j, v := range r {
			row[j] = float64(v)
		}
		out[i] = row
	}
	return out
}

// centersTensor converts numeric center rows into the (K, D) float32
// tensor the models initialize from.
func centersTensor(centers [][]float64) tensor.Tensor {
	k := len(centers)
	d := len(centers[0])
	backing := make([]float32, 0, k*d)
	for _, row := range centers {
		for _, v := range row {
			backing = append(backing, float32(v))
		}
	}
	return tensor.New(tensor.WithShape(k, d), tensor.WithBacking(backing))
}
