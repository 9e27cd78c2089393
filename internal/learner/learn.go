package learner

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/saad749/rheem/internal/config"
	"github.com/saad749/rheem/internal/learner/execlog"
	"github.com/saad749/rheem/internal/rheemerrors"
)

// LoadGAConfig reads the rheem.profiler.ga.* keys off cfg, falling back to
// DefaultConfig for anything unset.
func LoadGAConfig(cfg *config.Configuration) Config {
	d := DefaultConfig()
	if v, err := cfg.GetInt(config.KeyGAPopulationSize, int64(d.PopulationSize)); err == nil {
		d.PopulationSize = int(v)
	}
	if v, err := cfg.GetFloat(config.KeyGAMutationRate, d.MutationRate); err == nil {
		d.MutationRate = v
	}
	if v, err := cfg.GetFloat(config.KeyGAEliteFraction, d.EliteFraction); err == nil {
		d.EliteFraction = v
	}
	if v, err := cfg.GetInt(config.KeyGAMaxGenerations, int64(d.MaxGenerations)); err == nil {
		d.MaxGenerations = int(v)
	}
	if v, err := cfg.GetInt(config.KeyGAMaxStableGenerations, int64(d.MaxStableGenerations)); err == nil {
		d.MaxStableGenerations = int(v)
	}
	if v, err := cfg.GetInt(config.KeyGASuperOptimizations, int64(d.SuperOptimizations)); err == nil {
		d.SuperOptimizations = int(v)
	}
	if v, err := cfg.GetBool(config.KeyGABlocking, d.Blocking); err == nil {
		d.Blocking = v
	}
	if v, err := cfg.GetInt(config.KeyGANoiseFilterMax, int64(d.NoiseFilterMax)); err == nil {
		d.NoiseFilterMax = int(v)
	}
	if v, err := cfg.GetFloat(config.KeyGANoiseFilterThreshold, d.NoiseFilterThreshold); err == nil {
		d.NoiseFilterThreshold = v
	}
	if v, err := cfg.GetInt(config.KeyGASeed, d.Seed); err == nil {
		d.Seed = v
	}
	return d
}

// FilterTrainingSet drops records carrying any cardinality below
// minConfidence and randomly subsamples the remainder by samplingFactor
// (1.0 keeps everything), the execution-log preprocessing step that runs
// before grouping and fitting: rheem.profiler.ga.min-cardinality-confidence
// and rheem.profiler.ga.sampling.
func FilterTrainingSet(training []execlog.PartialExecution, minConfidence, samplingFactor float64, rng *rand.Rand) []execlog.PartialExecution {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	out := make([]execlog.PartialExecution, 0, len(training))
	for _, rec := range training {
		if !meetsConfidence(rec, minConfidence) {
			continue
		}
		if samplingFactor < 1.0 && rng.Float64() >= samplingFactor {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func meetsConfidence(rec execlog.PartialExecution, minConfidence float64) bool {
	for _, op := range rec.Operators {
		for _, c := range op.InputConfidence {
			if c < minConfidence {
				return false
			}
		}
		for _, c := range op.OutputConfidence {
			if c < minConfidence {
				return false
			}
		}
	}
	return true
}

// Learn fits one set of load-profile coefficients from training, the
// Learner's (C8's) top-level entry point: group by operator-class
// signature and log-duration bucket, optimize per-group then globally when
// Blocking is set, run SuperOptimizations tribes concurrently and merge on
// fitness, then apply the noise filter.
func Learn(ctx context.Context, training []execlog.PartialExecution, vs *VariableSpace, cfg Config) (Individual, error) {
	if len(training) == 0 {
		return Individual{}, rheemerrors.Newf(rheemerrors.ConfigurationError, "learner: no training data")
	}
	active := ActiveGenes(vs, training)

	var seeds []Individual
	if cfg.Blocking {
		for _, group := range groupByBucket(training, numBuckets(len(training))) {
			groupCfg := cfg
			groupCfg.SuperOptimizations = 1
			groupCfg.MaxGenerations = max(20, cfg.MaxGenerations/5)
			best, _, err := evolveConcurrent(ctx, group, vs, active, groupCfg)
			if err != nil {
				return Individual{}, err
			}
			seeds = append(seeds, best)
		}
	}

	cur := training
	best, _, err := evolveConcurrent(ctx, cur, vs, active, cfg, seeds...)
	if err != nil {
		return Individual{}, err
	}

	removed := 0
	for removed < cfg.NoiseFilterMax {
		worst, ratio := worstOffender(best, cur, vs)
		if worst < 0 || ratio <= cfg.NoiseFilterThreshold {
			break
		}
		cur = append(append([]execlog.PartialExecution(nil), cur[:worst]...), cur[worst+1:]...)
		removed++
		best, _, err = evolveConcurrent(ctx, cur, vs, active, cfg, best)
		if err != nil {
			return Individual{}, err
		}
	}
	return best, nil
}

// evolveConcurrent runs cfg.SuperOptimizations independent tribes
// concurrently, each with its own RNG seeded cfg.Seed+index, and merges
// them by keeping the single fittest result; ties keep the lower tribe
// index (stable insertion order).
func evolveConcurrent(ctx context.Context, training []execlog.PartialExecution, vs *VariableSpace, active map[string]bool, cfg Config, seeds ...Individual) (Individual, float64, error) {
	n := cfg.SuperOptimizations
	if n < 1 {
		n = 1
	}
	results := make([]Individual, n)
	fitnesses := make([]float64, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := newTribe(cfg.Seed+int64(i), cfg)
			ind, fit := t.evolve(training, vs, active, seeds...)
			results[i] = ind
			fitnesses[i] = fit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Individual{}, 0, err
	}

	bestIdx := 0
	for i := 1; i < n; i++ {
		if fitnesses[i] > fitnesses[bestIdx] {
			bestIdx = i
		}
	}
	return results[bestIdx], fitnesses[bestIdx], nil
}

// worstOffender returns the index of the training record whose penalty
// against best is largest relative to the mean, and that ratio — the
// candidate the noise filter considers dropping.
func worstOffender(best Individual, training []execlog.PartialExecution, vs *VariableSpace) (int, float64) {
	if len(training) < 2 {
		return -1, 0
	}
	pens := make([]float64, len(training))
	var sum float64
	for i, rec := range training {
		p := math.Abs(penalty(rec.DurationMs, vs.Predict(best, rec)))
		pens[i] = p
		sum += p
	}
	mean := sum / float64(len(training))
	if mean == 0 {
		return -1, 0
	}
	worst := 0
	for i := range pens {
		if pens[i] > pens[worst] {
			worst = i
		}
	}
	return worst, pens[worst] / mean
}

// numBuckets picks a log-duration bucket count from the training set size
// alone; groupByBucket then places the boundaries at percentiles of the
// data's own duration distribution.
func numBuckets(n int) int {
	if n < 20 {
		return 1
	}
	b := int(math.Round(math.Sqrt(float64(n))))
	if b < 2 {
		b = 2
	}
	if b > 10 {
		b = 10
	}
	return b
}

func groupByBucket(training []execlog.PartialExecution, buckets int) [][]execlog.PartialExecution {
	if buckets <= 1 {
		return [][]execlog.PartialExecution{training}
	}
	durations := make([]float64, len(training))
	for i, r := range training {
		durations[i] = math.Log(r.DurationMs + 1)
	}
	var boundaries []float64
	for i := 1; i < buckets; i++ {
		p, err := stats.Percentile(append([]float64(nil), durations...), float64(i)/float64(buckets)*100)
		if err == nil {
			boundaries = append(boundaries, p)
		}
	}

	bySig := make(map[string][]execlog.PartialExecution)
	var order []string
	for i, rec := range training {
		bucket := sort.SearchFloat64s(boundaries, durations[i])
		sig := groupSignature(rec, bucket)
		if _, ok := bySig[sig]; !ok {
			order = append(order, sig)
		}
		bySig[sig] = append(bySig[sig], rec)
	}
	groups := make([][]execlog.PartialExecution, 0, len(order))
	for _, sig := range order {
		groups = append(groups, bySig[sig])
	}
	return groups
}

// Emit writes the fitted coefficients to w as JSON, keyed by gene name
// (operator-class template variables and "overhead.<platform>" entries),
// the final "print fitted coefficients as JSON" step.
func Emit(w io.Writer, ind Individual) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ind.Genes)
}
