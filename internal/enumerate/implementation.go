// Package enumerate implements the plan enumerator: bottom-up enumeration
// of execution-operator bindings, channel-junction resolution, pruning, and
// loop/composite handling.
package enumerate

import (
	"sort"
	"strings"

	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/plan"
)

// ConnectionKey identifies one directed connection between two chosen
// execution operators, so a PlanImplementation can remember which Junction
// resolved it.
type ConnectionKey struct {
	Producer plan.OperatorID
	Output   int
	Consumer plan.OperatorID
	Input    int
}

// PlanImplementation is a coherent choice of execution operators plus
// channel junctions for every connection, with a combined time/cost.
type PlanImplementation struct {
	Choices   map[plan.OperatorID]*plan.ExecutionOperator
	Junctions map[ConnectionKey]*channel.Junction

	// CompositeBest records, for each composite or loop-head operator
	// already processed, the chosen implementation of its inner plan (a
	// single best-cost inner plan stands in for a composite rather than
	// branching the outer enumeration across the inner alternative set).
	CompositeBest map[plan.OperatorID]*PlanImplementation

	Time interval.ProbabilisticDoubleInterval
	Cost interval.ProbabilisticDoubleInterval

	// insertionIndex is this implementation's position in the order it was
	// produced, the deterministic tie-break rule the rest of the optimizer
	// follows for stable comparisons.
	insertionIndex int
}

func (impl *PlanImplementation) clone() *PlanImplementation {
	choices := make(map[plan.OperatorID]*plan.ExecutionOperator, len(impl.Choices))
	for k, v := range impl.Choices {
		choices[k] = v
	}
	junctions := make(map[ConnectionKey]*channel.Junction, len(impl.Junctions))
	for k, v := range impl.Junctions {
		junctions[k] = v
	}
	composite := make(map[plan.OperatorID]*PlanImplementation, len(impl.CompositeBest))
	for k, v := range impl.CompositeBest {
		composite[k] = v
	}
	return &PlanImplementation{Choices: choices, Junctions: junctions, CompositeBest: composite, Time: impl.Time, Cost: impl.Cost}
}

// OperatorGroupSignature identifies implementations that bind the same set
// of logical operators to the same platforms, the grouping key Top-K-by-cost
// pruning uses.
func (impl *PlanImplementation) OperatorGroupSignature() string {
	parts := make([]string, 0, len(impl.Choices))
	for _, op := range impl.Choices {
		parts = append(parts, op.Class()+"@"+op.Platform+";")
	}
	sort.Strings(parts)
	return strings.Join(parts, "")
}

// PlanEnumeration is a set of PlanImplementations produced for one
// enumeration unit or for a full plan.
type PlanEnumeration struct {
	Implementations []*PlanImplementation
}

// Best returns the cheapest implementation under cmp, with deterministic
// tie-break by insertion index. Returns nil if the
// enumeration is empty.
func (pe *PlanEnumeration) Best(cmp func(a, b interval.ProbabilisticDoubleInterval) int) *PlanImplementation {
	if len(pe.Implementations) == 0 {
		return nil
	}
	best := pe.Implementations[0]
	for _, impl := range pe.Implementations[1:] {
		c := cmp(impl.Cost, best.Cost)
		if c < 0 || (c == 0 && impl.insertionIndex < best.insertionIndex) {
			best = impl
		}
	}
	return best
}
