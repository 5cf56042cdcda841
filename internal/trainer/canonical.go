package trainer

// CanonicalizationScores is the result of the external entity
// canonicalization metric. Diagnostic only; nothing here feeds back
// into training.
type CanonicalizationScores struct {
	AvePrec   float64
	AveRecall float64
	AveF1     float64

	MacroPrec   float64
	MicroPrec   float64
	PairPrec    float64
	MacroRecall float64
	MicroRecall float64
	PairRecall  float64
	MacroF1     float64
	MicroF1     float64
	PairF1      float64

	ModelClusters   int
	ModelSingletons int
	GoldClusters    int
	GoldSingletons  int
}

// CanonicalizationScorer scores predicted cluster labels against gold
// entity clusterings. The gold side information is closed over by
// whoever constructs the scorer; the trainer only supplies
// predictions.
type CanonicalizationScorer func(pred []int) (CanonicalizationScores, error)
