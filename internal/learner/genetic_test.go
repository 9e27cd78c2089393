package learner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/learner/execlog"
)

func TestSelectEliteAlwaysKeepsAtLeastOne(t *testing.T) {
	pop := []Individual{{Genes: map[string]float64{"a": 1}}, {Genes: map[string]float64{"a": 2}}}
	fit := []float64{-1, -1} // identical fitness: percentile cutoff may exclude everyone
	elite := selectElite(pop, fit, 0.01)
	require.NotEmpty(t, elite)
}

func TestSelectEliteOrdersByDescendingFitness(t *testing.T) {
	pop := []Individual{
		{Genes: map[string]float64{"a": 1}},
		{Genes: map[string]float64{"a": 2}},
		{Genes: map[string]float64{"a": 3}},
	}
	fit := []float64{-5, -1, -3}
	elite := selectElite(pop, fit, 1.0)
	require.Len(t, elite, 3)
	require.Equal(t, 2.0, elite[0].Genes["a"])
	require.Equal(t, 3.0, elite[1].Genes["a"])
	require.Equal(t, 1.0, elite[2].Genes["a"])
}

func TestMutateOnlyTouchesActiveGenes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MutationRate = 1.0 // force every active gene to mutate
	tr := newTribe(1, cfg)
	ind := Individual{Genes: map[string]float64{"a": 5, "untouched": 7}}
	active := map[string]bool{"a": true}

	out := tr.mutate(ind, active)
	require.NotEqual(t, ind.Genes["a"], out.Genes["a"])
	require.Equal(t, 7.0, out.Genes["untouched"])
}

func TestCrossoverOnlyEmitsActiveGenes(t *testing.T) {
	tr := newTribe(1, DefaultConfig())
	a := Individual{Genes: map[string]float64{"x": 1, "y": 100}}
	b := Individual{Genes: map[string]float64{"x": 2, "y": 200}}
	child := tr.crossover(a, b, map[string]bool{"x": true})
	require.Contains(t, child.Genes, "x")
	require.NotContains(t, child.Genes, "y")
}

// TestEvolveConvergesOnLinearLoadProfile mirrors the canonical fitting
// scenario: duration = 100*in0 + 5000, fitting gene "a" (the multiplier) and
// "b" (the constant term) from a noise-free training set. A deterministic
// seed and generous generation budget make this a reasonable convergence
// check without depending on wall-clock time.
func TestEvolveConvergesOnLinearLoadProfile(t *testing.T) {
	vs, err := NewVariableSpace(map[string]string{"map": "${a} * in0 + ${b}"}, []string{"local"})
	require.NoError(t, err)

	var training []execlog.PartialExecution
	for _, n := range []uint64{1, 5, 10, 20, 50, 100, 200, 500} {
		training = append(training, execlog.PartialExecution{
			DurationMs:        100*float64(n) + 5000,
			InvolvedPlatforms: []string{"local"},
			Operators: []execlog.OperatorExecution{
				{OperatorClass: "map", InputCards: []uint64{n}, OutputCards: []uint64{n}},
			},
		})
	}

	active := ActiveGenes(vs, training)
	cfg := DefaultConfig()
	cfg.MaxGenerations = 400
	cfg.MaxStableGenerations = 60

	tr := newTribe(7, cfg)
	best, _ := tr.evolve(training, vs, active)

	require.InDelta(t, 100.0, best.Genes["a"], 25.0, "fitted multiplier should approach 100")
	require.InDelta(t, 5000.0, best.Genes["b"]+best.Genes[OverheadGene("local")], 1500.0,
		"fitted constant term (template + overhead) should approach 5000")
}
