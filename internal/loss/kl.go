package loss

import (
	"gorgonia.org/gorgonia"
)

// KL builds the self-training clustering loss
//
//	sum_ik t_ik * (log t_ik - log(p_ik + 1e-8)) / batchSize
//
// probs is the (N,K) soft assignment produced by the model; target is
// a placeholder node fed with the detached target distribution each
// step. Target entries are strictly positive by construction, so its
// log needs no floor; probs gets a 1e-8 floor.
func KL(probs, target *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	g := probs.Graph()

	eps := gorgonia.NodeFromAny(g, float32(1e-8))
	safe, err := gorgonia.Add(probs, eps)
	if err != nil {
		return nil, err
	}
	logP, err := gorgonia.Log(safe)
	if err != nil {
		return nil, err
	}
	logT, err := gorgonia.Log(target)
	if err != nil {
		return nil, err
	}
	diff, err := gorgonia.Sub(logT, logP)
	if err != nil {
		return nil, err
	}
	terms, err := gorgonia.HadamardProd(target, diff)
	if err != nil {
		return nil, err
	}
	total, err := gorgonia.Sum(terms)
	if err != nil {
		return nil, err
	}
	scale := gorgonia.NodeFromAny(g, float32(1.0/float64(batchSize)))
	return gorgonia.HadamardProd(total, scale)
}
