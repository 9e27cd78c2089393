package mapping

import (
	"reflect"

	"github.com/saad749/rheem/internal/plan"
)

// ReplacementFactory builds a replacement execution operator for a match.
// b is shared across an entire Apply call so allocated OperatorIDs never
// collide with the base plan or with other transformations applied in the
// same epoch.
type ReplacementFactory func(captures map[string]plan.Operator, b *plan.PlanBuilder) (*plan.ExecutionOperator, error)

// PlanTransformation pairs a SubplanPattern and ReplacementFactory with a
// target platform set. TargetPlatforms lists the platforms the replacements
// run on; Apply does not read it, so every match gets whatever alternative
// the Replace factory returns, on the platform the factory decides on.
type PlanTransformation struct {
	Pattern         *SubplanPattern
	Replace         ReplacementFactory
	TargetPlatforms []string
}

// Mapping exposes one or more PlanTransformations.
type Mapping interface {
	Transformations() []*PlanTransformation
}

// OperatorAlternative is one branch of the hyperplan for a logical
// operator: a concrete execution-operator candidate.
type OperatorAlternative struct {
	Operator *plan.ExecutionOperator
}

// Hyperplan is the plan graph enriched with operator alternatives. Base is
// the original logical plan; Alternatives maps each logical operator's ID
// to its insertion-ordered, deduplicated list of execution-operator
// alternatives.
type Hyperplan struct {
	Base         *plan.Plan
	Alternatives map[plan.OperatorID][]OperatorAlternative
	Epoch        int
}

// AlternativesFor returns the alternatives registered for a logical
// operator, or nil if none were produced (the operator has no viable
// execution binding yet).
func (h *Hyperplan) AlternativesFor(id plan.OperatorID) []OperatorAlternative {
	return h.Alternatives[id]
}

// Registry applies a set of Mappings' transformations to a base plan,
// epoch by epoch.
type Registry struct {
	mappings []Mapping
}

// NewRegistry builds a registry from the given mappings, applied in the
// order given whenever Apply runs.
func NewRegistry(mappings ...Mapping) *Registry {
	return &Registry{mappings: mappings}
}

// nextIDFrom seeds a PlanBuilder's ID counter past every ID already used in
// p, so replacement operators never collide with the base plan.
func nextIDFrom(p *plan.Plan) *plan.PlanBuilder {
	b := plan.NewPlanBuilder()
	var max plan.OperatorID
	for _, op := range p.Operators() {
		if op.ID() >= max {
			max = op.ID() + 1
		}
	}
	for i := plan.OperatorID(0); i < max; i++ {
		b.AllocID()
	}
	return b
}

// Apply runs every transformation of every registered mapping against p
// and returns the resulting hyperplan. A transformation never removes a
// logical operator that still has consumers outside the replacement: Apply
// only ever adds alternatives alongside the untouched logical operator, it
// never mutates or deletes plan structure — mappings produce new nodes
// rather than mutate existing ones.
func (r *Registry) Apply(p *plan.Plan, epoch int) (*Hyperplan, error) {
	h := &Hyperplan{Base: p, Alternatives: make(map[plan.OperatorID][]OperatorAlternative), Epoch: epoch}
	b := nextIDFrom(p)

	for _, m := range r.mappings {
		for _, t := range m.Transformations() {
			matches := NonOverlapping(t.Pattern.FindMatches(p))
			for _, match := range matches {
				op, err := t.Replace(match.Captures, b)
				if err != nil {
					return nil, err
				}
				if op == nil {
					continue
				}
				logicalID := logicalIDOf(match, t.Pattern)
				addAlternative(h, logicalID, op)
			}
		}
	}
	return h, nil
}

// logicalIDOf identifies which matched operator the replacement targets:
// the pattern root's capture if named, else the root operator itself.
func logicalIDOf(m Match, sp *SubplanPattern) plan.OperatorID {
	if sp.Root.Capture != "" {
		if op, ok := m.Captures[sp.Root.Capture]; ok {
			return op.ID()
		}
	}
	for _, op := range m.Captures {
		return op.ID()
	}
	return 0
}

// addAlternative inserts op into the logical operator's alternative list,
// deduplicated by (platform, execution-operator-class).
func addAlternative(h *Hyperplan, logicalID plan.OperatorID, op *plan.ExecutionOperator) {
	key := op.Platform + "/" + reflect.TypeOf(op).String() + "/" + op.Class()
	for _, existing := range h.Alternatives[logicalID] {
		existingKey := existing.Operator.Platform + "/" + reflect.TypeOf(existing.Operator).String() + "/" + existing.Operator.Class()
		if existingKey == key {
			return
		}
	}
	h.Alternatives[logicalID] = append(h.Alternatives[logicalID], OperatorAlternative{Operator: op})
}
