package plan

// VisitFunc is called once per operator during a traversal. Returning false
// stops descent past this operator (but sibling branches continue).
type VisitFunc func(op Operator) bool

// PlanTraversal implements the upstream/downstream walks over a plan graph.
// A read-only traversal terminates at loop boundaries unless DescendLoops
// is set.
type PlanTraversal struct {
	DescendLoops bool
}

// Downstream visits op and every operator reachable by following output
// connections forward, depth-first, each operator visited once.
func (t PlanTraversal) Downstream(start Operator, visit VisitFunc) {
	seen := make(map[OperatorID]bool)
	t.downstream(start, visit, seen)
}

func (t PlanTraversal) downstream(op Operator, visit VisitFunc, seen map[OperatorID]bool) {
	if seen[op.ID()] {
		return
	}
	seen[op.ID()] = true
	if !visit(op) {
		return
	}
	if lh, ok := op.(*LoopHeadOperator); ok && !t.DescendLoops {
		_ = lh
		return
	}
	for _, out := range op.Outputs() {
		for _, in := range out.Consumers() {
			t.downstream(in.Owner, visit, seen)
		}
	}
	if comp, ok := asComposite(op); ok && t.DescendLoops {
		for _, inner := range comp.Inner.Operators() {
			t.downstream(inner, visit, seen)
		}
	}
}

// Upstream visits op and every operator reachable by following incoming
// connections backward, depth-first, each operator visited once.
func (t PlanTraversal) Upstream(start Operator, visit VisitFunc) {
	seen := make(map[OperatorID]bool)
	t.upstream(start, visit, seen)
}

func (t PlanTraversal) upstream(op Operator, visit VisitFunc, seen map[OperatorID]bool) {
	if seen[op.ID()] {
		return
	}
	seen[op.ID()] = true
	if !visit(op) {
		return
	}
	for _, in := range op.Inputs() {
		if out := in.Incoming(); out != nil {
			t.upstream(out.Owner, visit, seen)
		}
	}
}

func asComposite(op Operator) (*CompositeOperator, bool) {
	switch v := op.(type) {
	case *CompositeOperator:
		return v, true
	case *LoopHeadOperator:
		return v.CompositeOperator, true
	default:
		return nil, false
	}
}

// ReachableFromSinks returns every operator reachable upstream from the
// plan's declared sinks, each exactly once, ordered so that every consumer
// precedes its producers (the reverse of an upstream DFS postorder).
func ReachableFromSinks(p *Plan) []Operator {
	seen := make(map[OperatorID]bool)
	var order []Operator
	var visit func(op Operator)
	visit = func(op Operator) {
		if seen[op.ID()] {
			return
		}
		seen[op.ID()] = true
		for _, in := range op.Inputs() {
			if out := in.Incoming(); out != nil {
				visit(out.Owner)
			}
		}
		order = append(order, op)
	}
	for _, sink := range p.Sinks {
		visit(sink)
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Prune drops operators not reachable from a sink.
func Prune(p *Plan) *Plan {
	reachable := ReachableFromSinks(p)
	b := NewPlanBuilder()
	reachableSet := make(map[OperatorID]bool, len(reachable))
	for _, op := range reachable {
		reachableSet[op.ID()] = true
	}
	// Preserve original build order among the surviving operators.
	for _, op := range p.Operators() {
		if reachableSet[op.ID()] {
			b.Register(op)
		}
	}
	for _, sink := range p.Sinks {
		if reachableSet[sink.ID()] {
			b.MarkSink(sink)
		}
	}
	return b.Build()
}

// ActivePlatforms is the set of backend platforms currently usable.
type ActivePlatforms map[string]bool

// Sane checks the plan invariants:
// - no dangling required input
// - every execution operator's platform is present in active
// - no cycles outside loops
// - at least one sink (an empty plan is an error)
func Sane(p *Plan, active ActivePlatforms) error {
	if len(p.Sinks) == 0 {
		return errEmptyPlan()
	}

	for _, op := range p.Operators() {
		for i, in := range op.Inputs() {
			if in.Required && in.Incoming() == nil {
				return errDanglingInput(op, i)
			}
		}
		if exec, ok := op.(*ExecutionOperator); ok && active != nil {
			if !active[exec.Platform] {
				return errUnknownPlatform(op, exec.Platform)
			}
		}
		if comp, ok := asComposite(op); ok {
			innerActive := active
			if err := Sane(comp.Inner, innerActive); err != nil {
				return wrapf(err, "composite operator %d (%s)", op.ID(), op.Class())
			}
		}
	}

	if err := checkAcyclic(p); err != nil {
		return err
	}
	return nil
}

// checkAcyclic verifies there is no cycle among non-loop-head operators.
// Loop bodies are self-contained inner plans reached only through the loop
// head's composite, so a loop's inherent head->body->head feedback does not
// register as a plan-graph cycle at this level.
func checkAcyclic(p *Plan) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[OperatorID]int, len(p.Operators()))
	var visit func(op Operator) error
	visit = func(op Operator) error {
		color[op.ID()] = gray
		for _, out := range op.Outputs() {
			for _, in := range out.Consumers() {
				next := in.Owner
				switch color[next.ID()] {
				case white:
					if err := visit(next); err != nil {
						return err
					}
				case gray:
					return errCycle(next)
				}
			}
		}
		color[op.ID()] = black
		return nil
	}
	for _, op := range p.Operators() {
		if color[op.ID()] == white {
			if err := visit(op); err != nil {
				return err
			}
		}
	}
	return nil
}
