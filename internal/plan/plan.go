package plan

// Plan is the set of operators reachable from a declared set of sinks.
// Structure is immutable once Build returns; optimizer state
// (cardinalities, load profiles, tasks,...) lives elsewhere, keyed by
// OperatorID.
type Plan struct {
	Sinks   []Operator
	byID    map[OperatorID]Operator
	ordered []Operator // build order == insertion order == tie-break order
}

// Operators returns every operator registered with the plan, in build
// order. This is the stable ordering the rest of the optimizer relies on
// for deterministic tie-breaks.
func (p *Plan) Operators() []Operator { return p.ordered }

// Lookup returns the operator with the given ID, if the plan contains one.
func (p *Plan) Lookup(id OperatorID) (Operator, bool) {
	op, ok := p.byID[id]
	return op, ok
}

// PlanBuilder constructs a Plan, assigning OperatorIDs in construction
// order.
type PlanBuilder struct {
	nextID OperatorID
	byID   map[OperatorID]Operator
	order  []Operator
	sinks  []Operator
}

// NewPlanBuilder returns an empty builder.
func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{byID: make(map[OperatorID]Operator)}
}

// AllocID reserves the next OperatorID without registering an operator,
// used when a constructor needs its own ID before the operator value
// exists (e.g. NewElementaryOperator takes an ID as a parameter).
func (b *PlanBuilder) AllocID() OperatorID {
	id := b.nextID
	b.nextID++
	return id
}

// Register adds op to the plan being built, in the order Register is
// called. It must be called exactly once per operator, after the operator
// has been constructed with an ID obtained from AllocID.
func (b *PlanBuilder) Register(op Operator) {
	b.byID[op.ID()] = op
	b.order = append(b.order, op)
}

// MarkSink declares op as one of the plan's sinks.
func (b *PlanBuilder) MarkSink(op Operator) {
	b.sinks = append(b.sinks, op)
}

// Build finalizes the plan. It does not itself run Sane; callers that want
// the invariants checked call Sane(plan) explicitly — sanity-checking is a
// caller-driven step, not implicit in construction.
func (b *PlanBuilder) Build() *Plan {
	byID := make(map[OperatorID]Operator, len(b.byID))
	for k, v := range b.byID {
		byID[k] = v
	}
	ordered := make([]Operator, len(b.order))
	copy(ordered, b.order)
	sinks := make([]Operator, len(b.sinks))
	copy(sinks, b.sinks)
	return &Plan{Sinks: sinks, byID: byID, ordered: ordered}
}
