package enumerate

import (
	"math/rand"
	"sort"

	"github.com/saad749/rheem/internal/interval"
)

// PruningStrategy narrows a PlanEnumeration's implementation set.
// Strategies are applied in configured order (via ApplyAll) after each
// enumeration step that grows the implementation set.
type PruningStrategy interface {
	Prune(impls []*PlanImplementation, cmp func(a, b interval.ProbabilisticDoubleInterval) int) []*PlanImplementation
}

// TopKByCost keeps, per operator-group signature, only the K cheapest
// implementations.
type TopKByCost struct {
	K int
}

func (s TopKByCost) Prune(impls []*PlanImplementation, cmp func(a, b interval.ProbabilisticDoubleInterval) int) []*PlanImplementation {
	if s.K <= 0 {
		return impls
	}
	groups := make(map[string][]*PlanImplementation)
	var order []string
	for _, impl := range impls {
		sig := impl.OperatorGroupSignature()
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], impl)
	}
	var kept []*PlanImplementation
	for _, sig := range order {
		group := groups[sig]
		sort.SliceStable(group, func(i, j int) bool {
			c := cmp(group[i].Cost, group[j].Cost)
			if c != 0 {
				return c < 0
			}
			return group[i].insertionIndex < group[j].insertionIndex
		})
		if len(group) > s.K {
			group = group[:s.K]
		}
		kept = append(kept, group...)
	}
	return kept
}

// RandomSample caps the population size by uniform random sampling. The
// provided *rand.Rand must not be shared across concurrent callers. When R
// is nil, each Prune call uses a fresh source seeded with 1, so the same
// input always yields the same sample.
type RandomSample struct {
	Max int
	R   *rand.Rand
}

func (s RandomSample) Prune(impls []*PlanImplementation, _ func(a, b interval.ProbabilisticDoubleInterval) int) []*PlanImplementation {
	if s.Max <= 0 || len(impls) <= s.Max {
		return impls
	}
	r := s.R
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	shuffled := append([]*PlanImplementation{}, impls...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	kept := shuffled[:s.Max]
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].insertionIndex < kept[j].insertionIndex })
	return kept
}

// LatentPruning drops implementations whose lower-bound cost exceeds the
// minimum upper-bound cost in the peer set.
type LatentPruning struct{}

func (LatentPruning) Prune(impls []*PlanImplementation, _ func(a, b interval.ProbabilisticDoubleInterval) int) []*PlanImplementation {
	if len(impls) == 0 {
		return impls
	}
	minUpper := impls[0].Cost.Upper
	for _, impl := range impls[1:] {
		if impl.Cost.Upper < minUpper {
			minUpper = impl.Cost.Upper
		}
	}
	var kept []*PlanImplementation
	for _, impl := range impls {
		if impl.Cost.Lower <= minUpper {
			kept = append(kept, impl)
		}
	}
	return kept
}

// ApplyAll runs every strategy in order over impls. Survivors keep their
// insertion indices, but their order may change (TopKByCost returns each
// signature group sorted by cost), so callers renumber afterwards.
func ApplyAll(strategies []PruningStrategy, impls []*PlanImplementation, cmp func(a, b interval.ProbabilisticDoubleInterval) int) []*PlanImplementation {
	for _, s := range strategies {
		impls = s.Prune(impls, cmp)
	}
	return impls
}
