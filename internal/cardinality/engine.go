// Package cardinality implements the push traversal that propagates
// CardinalityEstimates along plan connections, the fallback-estimator
// mechanism, and measured-cardinality injection.
package cardinality

import (
	"context"

	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/optctx"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/internal/rlog"
)

// Fallback computes an estimate when an operator declares no estimator for
// an output slot.
type Fallback func(inputs []interval.CardinalityEstimate) interval.CardinalityEstimate

// IdentityFallback copies input 0 (or Unknown if there is no input), the
// default fallback.
func IdentityFallback(inputs []interval.CardinalityEstimate) interval.CardinalityEstimate {
	if len(inputs) == 0 {
		return interval.Unknown
	}
	return inputs[0]
}

// ConstantFallback always returns a fixed exact estimate.
func ConstantFallback(n uint64) Fallback {
	return func([]interval.CardinalityEstimate) interval.CardinalityEstimate {
		return interval.Exact(n)
	}
}

// Engine runs push traversals over a plan, using arena as the
// OptimizationContext store.
type Engine struct {
	Arena    *optctx.Arena
	Fallback Fallback
	warner   *rlog.OnceWarner
}

// NewEngine builds an engine with the given fallback (IdentityFallback if
// nil).
func NewEngine(arena *optctx.Arena, fallback Fallback) *Engine {
	if fallback == nil {
		fallback = IdentityFallback
	}
	return &Engine{Arena: arena, Fallback: fallback, warner: rlog.NewOnceWarner()}
}

// estimatorFor resolves an output slot's estimator, which may be nil on the
// ElementaryOperator (apply fallback) or present on an ExecutionOperator
// that overrides its logical operator's estimator.
func estimatorFor(out *plan.OutputSlot) plan.Estimator {
	return out.Estimator
}

// Push runs a full push traversal starting from every source operator in p
// (an operator whose input slots are all empty), propagating estimates
// forward along connections and into composites via their slot trace.
// LoopHeadOperators get their estimator invoked once per configured
// iteration context.
func (e *Engine) Push(ctx context.Context, p *plan.Plan) error {
	order := plan.ReachableFromSinks(p)
	// ReachableFromSinks walks upstream from sinks; reverse it so sources
	// are processed before their consumers, a topological order since the
	// plan is acyclic outside loop bodies (checked by plan.Sane before any
	// push runs).
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	for _, op := range order {
		if err := e.pushOperator(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) pushOperator(ctx context.Context, op plan.Operator) error {
	opCtx := e.Arena.Get(op)

	inputs := make([]interval.CardinalityEstimate, len(op.Inputs()))
	for i, in := range op.Inputs() {
		if incoming := in.Incoming(); incoming != nil {
			producerCtx := e.Arena.Get(incoming.Owner)
			inputs[i] = producerCtx.OutputCardinalities[incoming.Index]
		} else {
			inputs[i] = interval.Unknown
		}
		opCtx.InputCardinalities[i] = inputs[i]
	}

	if lh, ok := op.(*plan.LoopHeadOperator); ok {
		return e.pushLoop(ctx, lh, inputs)
	}

	for i, out := range op.Outputs() {
		est := e.estimate(ctx, op, i, out, inputs)
		opCtx.SetOutputCardinality(i, est)
	}

	if comp, ok := op.(*plan.CompositeOperator); ok {
		e.propagateIntoComposite(ctx, comp, inputs)
	}
	return nil
}

func (e *Engine) estimate(ctx context.Context, op plan.Operator, i int, out *plan.OutputSlot, inputs []interval.CardinalityEstimate) interval.CardinalityEstimate {
	if estimator := estimatorFor(out); estimator != nil {
		return estimator(inputs)
	}
	e.warner.Warn(ctx, op.Class(),
		"operator class %s has no cardinality estimator for output %d; using fallback", op.Class(), i)
	return e.Fallback(inputs)
}

// propagateIntoComposite pushes the composite's outer input cardinalities
// into its inner plan's corresponding source operators, via the slot
// trace, then runs a push over the inner plan.
func (e *Engine) propagateIntoComposite(ctx context.Context, comp *plan.CompositeOperator, outerInputs []interval.CardinalityEstimate) error {
	for outerIdx := range outerInputs {
		innerIn, ok := comp.TraceInput(outerIdx)
		if !ok {
			continue
		}
		// Seed the inner operator's corresponding context input directly;
		// a subsequent push over the inner plan will consume it like any
		// other connection.
		innerCtx := e.Arena.Get(innerIn.Owner)
		innerCtx.InputCardinalities[innerIn.Index] = outerInputs[outerIdx]
	}
	if err := e.Push(ctx, comp.Inner); err != nil {
		return err
	}
	for outerIdx, out := range comp.Outputs() {
		innerOut, ok := comp.TraceOutput(outerIdx)
		if !ok {
			continue
		}
		innerCtx := e.Arena.Get(innerOut.Owner)
		outerCtx := e.Arena.Get(out.Owner)
		outerCtx.SetOutputCardinality(out.Index, innerCtx.OutputCardinalities[innerOut.Index])
	}
	return nil
}

// pushLoop executes the loop-head estimator once per configured iteration
// context, then the post-loop context.
// Each iteration's inputs are the prior iteration's outputs, feeding back
// the loop's internal fixpoint the way a real execution would.
func (e *Engine) pushLoop(ctx context.Context, lh *plan.LoopHeadOperator, outerInputs []interval.CardinalityEstimate) error {
	n := lh.ExpectedIterations
	iterCtxs, postCtx := e.Arena.EnsureLoopContexts(lh, n)

	cur := outerInputs
	for i := 0; i < n; i++ {
		iterCtxs[i].InputCardinalities = append([]interval.CardinalityEstimate{}, cur...)
		if err := e.propagateIntoComposite(ctx, lh.CompositeOperator, cur); err != nil {
			return err
		}
		rootCtx := e.Arena.Get(lh)
		next := make([]interval.CardinalityEstimate, len(rootCtx.OutputCardinalities))
		copy(next, rootCtx.OutputCardinalities)
		for j, v := range next {
			iterCtxs[i].SetOutputCardinality(j, v)
		}
		cur = next
	}

	postCtx.InputCardinalities = append([]interval.CardinalityEstimate{}, cur...)
	for j, v := range cur {
		postCtx.SetOutputCardinality(j, v)
	}
	rootCtx := e.Arena.Get(lh)
	for j, v := range cur {
		rootCtx.SetOutputCardinality(j, v)
	}
	return nil
}

// InjectMeasured converts a measured count into an exact CardinalityEstimate
// and sets it on the producing operator's output slot, re-running a push
// only if the value differs from the prior estimate.
func (e *Engine) InjectMeasured(ctx context.Context, producer plan.Operator, outputIndex int, p *plan.Plan, measured uint64) error {
	opCtx := e.Arena.Get(producer)
	est := interval.Exact(measured)
	before := opCtx.OutputCardinalities[outputIndex]
	opCtx.SetOutputCardinality(outputIndex, est)
	if before.Equal(est) {
		return nil // idempotent no-op
	}
	return e.Push(ctx, p)
}

// ClearMarks resets every context's change markers.
func (e *Engine) ClearMarks() {
	e.Arena.ClearMarks()
}

// IsTimeEstimatesComplete asserts that every ExecutionOperator reachable in
// p has a time estimate set.
func IsTimeEstimatesComplete(arena *optctx.Arena, p *plan.Plan) bool {
	for _, op := range p.Operators() {
		if _, ok := op.(*plan.ExecutionOperator); !ok {
			continue
		}
		if c, ok := arena.Lookup(op.ID()); !ok || !c.TimeEstimateSet {
			return false
		}
	}
	return true
}
