package learner

import (
	"math"

	"github.com/saad749/rheem/internal/learner/execlog"
)

// Individual is one candidate point in the gene space: a fitted value for
// every load-profile coefficient and platform overhead the variable space
// defines.
type Individual struct {
	Genes map[string]float64
}

func (ind Individual) clone() Individual {
	genes := make(map[string]float64, len(ind.Genes))
	for k, v := range ind.Genes {
		genes[k] = v
	}
	return Individual{Genes: genes}
}

// penalty is the asymmetric log-ratio error between a measured duration
// and a predicted one: zero when they match exactly, growing slowly for a
// predicted value within the same order of magnitude and sharply once it
// diverges by more. The +500 offset keeps small millisecond measurements
// from dominating the ratio the way a bare log(m)/log(p) would.
func penalty(measured, predicted float64) float64 {
	m := math.Max(measured, 0)
	p := math.Max(predicted, 0)
	hi, lo := math.Max(m, p), math.Min(m, p)
	return math.Log(hi+500)/math.Log(lo+500) - 1
}

// Fitness is the negative sum of penalties over training: a genetic search
// maximizing fitness therefore minimizes total prediction error.
func Fitness(ind Individual, training []execlog.PartialExecution, vs *VariableSpace) float64 {
	var sum float64
	for _, rec := range training {
		predicted := vs.Predict(ind, rec)
		sum += penalty(rec.DurationMs, predicted)
	}
	return -sum
}
