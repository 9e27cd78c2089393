package enumerate

import (
	"context"
	"sort"
	"strings"

	rheemchannel "github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/costmodel"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/mapping"
	"github.com/saad749/rheem/internal/optctx"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/internal/rheemerrors"
)

// Enumerator performs bottom-up enumeration of a plan's execution-operator
// bindings: it walks the plan in topological order, binds each logical
// operator to one of its hyperplan alternatives, resolves the channel
// junction to every already-bound producer, and prunes the resulting
// population after each step. Loop bodies and composites are enumerated
// recursively and inlined as a single best-cost choice.
type Enumerator struct {
	Registry      *mapping.Registry
	Model         *costmodel.Model
	ChannelGraph  *rheemchannel.Graph
	JunctionCache *rheemchannel.Cache
	Arena         *optctx.Arena
	Active        rheemchannel.ActivePlatforms
	Pruners       []PruningStrategy
	Comparator    func(a, b interval.ProbabilisticDoubleInterval) int
	Epoch         int
}

func (e *Enumerator) cmp() func(a, b interval.ProbabilisticDoubleInterval) int {
	if e.Comparator != nil {
		return e.Comparator
	}
	return interval.Compare
}

func errNoAlternatives(op plan.Operator) error {
	return rheemerrors.Newf(rheemerrors.NoViablePlan,
		"operator %d (%s) has no execution-operator alternatives", op.ID(), op.Class())
}

func errNoViablePlan(op plan.Operator) error {
	return rheemerrors.Newf(rheemerrors.NoViablePlan,
		"no feasible implementation survives for operator %d (%s); every alternative pairing failed junction resolution",
		op.ID(), op.Class())
}

// Enumerate builds the hyperplan for p (via Registry.Apply) and returns the
// full PlanEnumeration of feasible implementations.
func (e *Enumerator) Enumerate(ctx context.Context, p *plan.Plan) (*PlanEnumeration, error) {
	h, err := e.Registry.Apply(p, e.Epoch)
	if err != nil {
		return nil, err
	}
	return e.enumerateWithHyperplan(ctx, p, h)
}

func (e *Enumerator) enumerateWithHyperplan(ctx context.Context, p *plan.Plan, h *mapping.Hyperplan) (*PlanEnumeration, error) {
	order := topologicalOrder(p)

	enumeration := &PlanEnumeration{Implementations: []*PlanImplementation{{
		Choices:       make(map[plan.OperatorID]*plan.ExecutionOperator),
		Junctions:     make(map[ConnectionKey]*rheemchannel.Junction),
		CompositeBest: make(map[plan.OperatorID]*PlanImplementation),
	}}}

	for _, op := range order {
		var err error
		switch v := op.(type) {
		case *plan.LoopHeadOperator:
			enumeration, err = e.contributeLoop(ctx, v, enumeration)
		case *plan.CompositeOperator:
			enumeration, err = e.contributeComposite(ctx, v, enumeration)
		case *plan.ElementaryOperator:
			enumeration, err = e.contributeElementary(ctx, v, h, enumeration)
		default:
			// Already-bound execution operators never appear in a logical
			// plan fed to the enumerator; ignore anything else defensively.
		}
		if err != nil {
			return nil, err
		}
	}

	return enumeration, nil
}

// enumerateInner runs a full, independent enumeration of an inner plan
// (a composite's or loop body's), building its own hyperplan.
func (e *Enumerator) enumerateInner(ctx context.Context, inner *plan.Plan) (*PlanEnumeration, error) {
	return e.Enumerate(ctx, inner)
}

func (e *Enumerator) contributeElementary(
	ctx context.Context, logical *plan.ElementaryOperator, h *mapping.Hyperplan, enumeration *PlanEnumeration,
) (*PlanEnumeration, error) {
	alts := h.AlternativesFor(logical.ID())
	if len(alts) == 0 {
		return nil, errNoAlternatives(logical)
	}

	logicalCtx, ok := e.Arena.Lookup(logical.ID())
	if !ok {
		return nil, rheemerrors.Newf(rheemerrors.NoViablePlan,
			"operator %d (%s) has no cardinality context; run the cardinality push before enumerating", logical.ID(), logical.Class())
	}

	altCost := make(map[plan.OperatorID]interval.ProbabilisticDoubleInterval, len(alts))
	altTime := make(map[plan.OperatorID]interval.ProbabilisticDoubleInterval, len(alts))
	for _, alt := range alts {
		execCtx := e.Arena.Get(alt.Operator)
		execCtx.InputCardinalities = logicalCtx.InputCardinalities
		execCtx.OutputCardinalities = logicalCtx.OutputCardinalities
		e.Model.Compute(ctx, alt.Operator, execCtx)
		altCost[alt.Operator.ID()] = execCtx.CostEstimate
		altTime[alt.Operator.ID()] = execCtx.TimeEstimate
	}

	var next []*PlanImplementation
	for _, impl := range enumeration.Implementations {
		for _, alt := range alts {
			newImpl, ok, err := e.bind(impl, logical, alt.Operator, altCost[alt.Operator.ID()], altTime[alt.Operator.ID()])
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			newImpl.insertionIndex = len(next)
			next = append(next, newImpl)
		}
	}
	if len(next) == 0 {
		return nil, errNoViablePlan(logical)
	}

	next = ApplyAll(e.Pruners, next, e.cmp())
	renumber(next)
	return &PlanEnumeration{Implementations: next}, nil
}

// bind extends impl with logical's binding to execOp, resolving a channel
// junction to every already-chosen upstream producer. It returns ok=false
// (no error) when a junction has no feasible conversion path, the signal to
// drop this pairing rather than fail the whole enumeration.
func (e *Enumerator) bind(
	impl *PlanImplementation, logical *plan.ElementaryOperator, execOp *plan.ExecutionOperator,
	cost, time interval.ProbabilisticDoubleInterval,
) (*PlanImplementation, bool, error) {
	newImpl := impl.clone()
	newImpl.Cost = costmodel.CombineSequential(newImpl.Cost, cost)
	newImpl.Time = costmodel.CombineSequential(newImpl.Time, time)

	for i, in := range logical.Inputs() {
		incoming := in.Incoming()
		if incoming == nil {
			continue
		}
		producerOp, producerOutIdx, ok := resolveExecSlot(impl, incoming)
		if !ok {
			// Producer not yet bound: inconsistent topological order, or a
			// producer whose own binding failed earlier and should have
			// already dropped this impl. Treat as infeasible.
			return nil, false, nil
		}

		card := connectionCardinality(e.Arena, incoming)
		junction, err := e.resolveJunction(producerOp, producerOutIdx, execOp, i, in.Broadcast, card)
		if err != nil {
			if rheemchannel.IsNoPath(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		newImpl.Junctions[ConnectionKey{Producer: producerOp.ID(), Output: producerOutIdx, Consumer: execOp.ID(), Input: i}] = junction
		newImpl.Cost = costmodel.CombineSequential(newImpl.Cost, junction.Cost)
	}

	newImpl.Choices[logical.ID()] = execOp
	return newImpl, true, nil
}

func (e *Enumerator) resolveJunction(
	producer *plan.ExecutionOperator, producerOutIdx int, consumer *plan.ExecutionOperator, consumerInIdx int,
	broadcast bool, card interval.CardinalityEstimate,
) (*rheemchannel.Junction, error) {
	produced := producer.SupportedOutputChannels(producerOutIdx)
	accepted := consumer.SupportedInputChannels(consumerInIdx)
	from := joinDescriptorIDs(produced)
	to := joinDescriptorIDs(accepted)
	return e.JunctionCache.GetOrResolve(from, to, broadcast, func() (*rheemchannel.Junction, error) {
		return e.ChannelGraph.FindJunction(produced, accepted, broadcast, rheemchannel.ActivePlatforms(e.Active), card)
	})
}

func joinDescriptorIDs(descs []rheemchannel.Descriptor) string {
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// connectionCardinality reads the cardinality estimate flowing across the
// logical connection feeding in, from the already-pushed arena context of
// its producer.
func connectionCardinality(arena *optctx.Arena, incoming *plan.OutputSlot) interval.CardinalityEstimate {
	producerCtx, ok := arena.Lookup(incoming.Owner.ID())
	if !ok {
		return interval.Unknown
	}
	if incoming.Index >= len(producerCtx.OutputCardinalities) {
		return interval.Unknown
	}
	return producerCtx.OutputCardinalities[incoming.Index]
}

// resolveExecSlot finds the execution operator and output-slot index that
// actually produces out's data under impl, tracing through composite/loop
// boundaries via their best inner implementation.
func resolveExecSlot(impl *PlanImplementation, out *plan.OutputSlot) (*plan.ExecutionOperator, int, bool) {
	switch owner := out.Owner.(type) {
	case *plan.ElementaryOperator:
		execOp, ok := impl.Choices[owner.ID()]
		return execOp, out.Index, ok
	case *plan.CompositeOperator:
		inner, ok := impl.CompositeBest[owner.ID()]
		if !ok {
			return nil, 0, false
		}
		innerOut, ok := owner.TraceOutput(out.Index)
		if !ok {
			return nil, 0, false
		}
		return resolveExecSlot(inner, innerOut)
	default:
		return nil, 0, false
	}
}

func (e *Enumerator) contributeComposite(ctx context.Context, comp *plan.CompositeOperator, enumeration *PlanEnumeration) (*PlanEnumeration, error) {
	innerEnum, err := e.enumerateInner(ctx, comp.Inner)
	if err != nil {
		return nil, err
	}
	best := innerEnum.Best(e.cmp())
	if best == nil {
		return nil, errNoViablePlan(comp)
	}
	return attachComposite(comp.ID(), best, enumeration, 1), nil
}

func (e *Enumerator) contributeLoop(ctx context.Context, lh *plan.LoopHeadOperator, enumeration *PlanEnumeration) (*PlanEnumeration, error) {
	n := lh.ExpectedIterations
	if n <= 0 {
		// The loop's expected iteration count is zero: the head runs once
		// and the body never does, so it contributes no cost here.
		return enumeration, nil
	}
	innerEnum, err := e.enumerateInner(ctx, lh.CompositeOperator.Inner)
	if err != nil {
		return nil, err
	}
	best := innerEnum.Best(e.cmp())
	if best == nil {
		return nil, errNoViablePlan(lh)
	}
	return attachComposite(lh.ID(), best, enumeration, float64(n)), nil
}

// attachComposite records best as the chosen inner implementation for the
// composite/loop-head with the given ID across every implementation in
// enumeration, adding its cost scaled by factor (iteration count for loops,
// 1 for plain composites).
func attachComposite(id plan.OperatorID, best *PlanImplementation, enumeration *PlanEnumeration, factor float64) *PlanEnumeration {
	next := make([]*PlanImplementation, 0, len(enumeration.Implementations))
	for i, impl := range enumeration.Implementations {
		clone := impl.clone()
		clone.CompositeBest[id] = best
		clone.Cost = costmodel.CombineSequential(clone.Cost, best.Cost.Scale(factor))
		clone.Time = costmodel.CombineSequential(clone.Time, best.Time.Scale(factor))
		clone.insertionIndex = i
		next = append(next, clone)
	}
	return &PlanEnumeration{Implementations: next}
}

func renumber(impls []*PlanImplementation) {
	for i, impl := range impls {
		impl.insertionIndex = i
	}
}

// topologicalOrder returns p's operators with every producer preceding its
// consumers. It reuses the same upstream-from-sinks-then-reverse technique
// the cardinality engine's push traversal relies on: the plan is acyclic
// outside loop bodies (plan.Sane checks this before enumeration ever runs),
// and ReachableFromSinks lists every consumer before its producers, so its
// reverse is a valid topological order.
func topologicalOrder(p *plan.Plan) []plan.Operator {
	order := plan.ReachableFromSinks(p)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
