package learner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/learner/execlog"
)

func TestPenaltyIsZeroForExactMatch(t *testing.T) {
	require.InDelta(t, 0.0, penalty(100, 100), 1e-9)
}

func TestPenaltyIsSymmetricUnderSwap(t *testing.T) {
	require.InDelta(t, penalty(100, 150), penalty(150, 100), 1e-9)
}

func TestPenaltyGrowsWithDivergence(t *testing.T) {
	near := penalty(100, 110)
	far := penalty(100, 1000)
	require.Greater(t, far, near)
}

func TestPenaltyClampsNegativeInputs(t *testing.T) {
	require.False(t, math.IsNaN(penalty(-5, 10)))
}

func TestFitnessIsNegativeSumOfPenalties(t *testing.T) {
	vs, err := NewVariableSpace(map[string]string{"map": "${a} * in0"}, []string{"local"})
	require.NoError(t, err)

	ind := Individual{Genes: map[string]float64{"a": 2, OverheadGene("local"): 0}}
	training := []execlog.PartialExecution{
		{
			DurationMs:        20,
			InvolvedPlatforms: []string{"local"},
			Operators: []execlog.OperatorExecution{
				{OperatorClass: "map", InputCards: []uint64{10}, OutputCards: []uint64{10}},
			},
		},
	}
	// predicted = 2*10 + 0 = 20, exact match -> fitness 0.
	require.InDelta(t, 0.0, Fitness(ind, training, vs), 1e-9)
}
