package learner

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/learner/execlog"
)

func smallTrainingSet() []execlog.PartialExecution {
	var out []execlog.PartialExecution
	for _, n := range []uint64{2, 4, 8, 16, 32} {
		out = append(out, execlog.PartialExecution{
			DurationMs:        10*float64(n) + 50,
			InvolvedPlatforms: []string{"local"},
			Operators: []execlog.OperatorExecution{
				{OperatorClass: "map", InputCards: []uint64{n}, OutputCards: []uint64{n}},
			},
		})
	}
	return out
}

func TestLearnRejectsEmptyTrainingSet(t *testing.T) {
	vs, err := NewVariableSpace(map[string]string{"map": "${a} * in0 + ${b}"}, []string{"local"})
	require.NoError(t, err)
	_, err = Learn(context.Background(), nil, vs, DefaultConfig())
	require.Error(t, err)
}

func TestLearnProducesFittedGenesForEveryActiveVariable(t *testing.T) {
	vs, err := NewVariableSpace(map[string]string{"map": "${a} * in0 + ${b}"}, []string{"local"})
	require.NoError(t, err)

	training := smallTrainingSet()
	cfg := DefaultConfig()
	cfg.PopulationSize = 12
	cfg.MaxGenerations = 30
	cfg.MaxStableGenerations = 10
	cfg.SuperOptimizations = 2
	cfg.Blocking = false

	best, err := Learn(context.Background(), training, vs, cfg)
	require.NoError(t, err)
	require.Contains(t, best.Genes, "a")
	require.Contains(t, best.Genes, "b")
	require.Contains(t, best.Genes, OverheadGene("local"))
}

func TestEmitWritesGenesAsJSON(t *testing.T) {
	ind := Individual{Genes: map[string]float64{"a": 1.5, "b": 2}}
	var buf bytes.Buffer
	require.NoError(t, Emit(&buf, ind))

	var decoded map[string]float64
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, ind.Genes, decoded)
}

func TestNumBucketsScalesWithSize(t *testing.T) {
	require.Equal(t, 1, numBuckets(5))
	require.GreaterOrEqual(t, numBuckets(100), 2)
	require.LessOrEqual(t, numBuckets(10000), 10)
}

func TestFilterTrainingSetDropsLowConfidenceRecords(t *testing.T) {
	training := []execlog.PartialExecution{
		{DurationMs: 100, Operators: []execlog.OperatorExecution{
			{OperatorClass: "map", InputConfidence: []float64{1.0}, OutputConfidence: []float64{1.0}},
		}},
		{DurationMs: 200, Operators: []execlog.OperatorExecution{
			{OperatorClass: "map", InputConfidence: []float64{0.2}, OutputConfidence: []float64{1.0}},
		}},
	}
	out := FilterTrainingSet(training, 0.5, 1.0, nil)
	require.Len(t, out, 1)
	require.Equal(t, 100.0, out[0].DurationMs)
}

func TestFilterTrainingSetSamplingIsDeterministicForAGivenRNG(t *testing.T) {
	training := smallTrainingSet()
	out := FilterTrainingSet(training, 0, 0.5, rand.New(rand.NewSource(42)))
	require.LessOrEqual(t, len(out), len(training))
}

func TestFilterTrainingSetKeepsEverythingWithDefaultThresholds(t *testing.T) {
	training := smallTrainingSet()
	out := FilterTrainingSet(training, 0, 1.0, nil)
	require.Len(t, out, len(training))
}
