// Package mapping implements the mapping registry: pattern-based rewrites
// from logical operators to execution-operator alternatives, producing a
// hyperplan.
package mapping

import (
	"github.com/saad749/rheem/internal/plan"
)

// OperatorPattern matches a single operator by predicate, optionally
// constraining its arity, and optionally recursing into the operators
// feeding its input slots.
type OperatorPattern struct {
	// Capture names this node; ReplacementFactory receives matched
	// operators keyed by capture name. Empty means "don't care, don't
	// capture."
	Capture string
	// Match reports whether op is acceptable at this position.
	Match func(op plan.Operator) bool
	// Inputs, if non-nil, constrains what must be connected to each input
	// slot in order: Inputs[i] == nil means "any or nothing"; a non-nil
	// entry must match the operator feeding that slot.
	Inputs []*OperatorPattern
}

// SubplanPattern is the root of a connected-subgraph pattern.
type SubplanPattern struct {
	Root *OperatorPattern
}

// Match is one local match of a SubplanPattern: the set of operators
// captured by name, plus the set of every operator participating in the
// match (used to detect overlap between matches).
type Match struct {
	Captures     map[string]plan.Operator
	Participants map[plan.OperatorID]bool
}

// FindMatches scans every operator in p as a candidate root and returns
// every local match, in plan build order (so downstream tie-breaks stay
// deterministic). Matches are local: the predicate walk never free-floats
// past explicitly-patterned slots, so two returned matches only overlap if
// the pattern's own input constraints made them share an operator.
func (sp *SubplanPattern) FindMatches(p *plan.Plan) []Match {
	var matches []Match
	for _, op := range p.Operators() {
		captures := make(map[string]plan.Operator)
		participants := make(map[plan.OperatorID]bool)
		if matchNode(sp.Root, op, captures, participants) {
			matches = append(matches, Match{Captures: captures, Participants: participants})
		}
	}
	return matches
}

func matchNode(pat *OperatorPattern, op plan.Operator, captures map[string]plan.Operator, participants map[plan.OperatorID]bool) bool {
	if pat == nil {
		return true
	}
	if pat.Match != nil && !pat.Match(op) {
		return false
	}
	if pat.Inputs != nil {
		ins := op.Inputs()
		if len(pat.Inputs) > len(ins) {
			return false
		}
		for i, childPat := range pat.Inputs {
			if childPat == nil {
				continue
			}
			incoming := ins[i].Incoming()
			if incoming == nil {
				return false
			}
			if !matchNode(childPat, incoming.Owner, captures, participants) {
				return false
			}
		}
	}
	if pat.Capture != "" {
		captures[pat.Capture] = op
	}
	participants[op.ID()] = true
	return true
}

// NonOverlapping filters matches down to a set with pairwise-disjoint
// participant sets, preferring earlier matches (plan build order) on
// conflict — the same stable-ordering rule the rest of the optimizer uses.
func NonOverlapping(matches []Match) []Match {
	var kept []Match
	used := make(map[plan.OperatorID]bool)
	for _, m := range matches {
		conflict := false
		for id := range m.Participants {
			if used[id] {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		kept = append(kept, m)
		for id := range m.Participants {
			used[id] = true
		}
	}
	return kept
}
