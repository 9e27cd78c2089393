// Package optctx implements the OptimizationContext arena: a
// per-operator sidecar holding cardinalities, load profile, time/cost
// estimates, execution count and change-marker bits, stored by OperatorID
// rather than back-referenced from the (structurally immutable) plan graph.
package optctx

import (
	"github.com/saad749/rheem/internal/cost"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/internal/util/syncutil"
)

// Context is the mutable optimizer state for one operator.
type Context struct {
	OperatorID plan.OperatorID

	InputCardinalities  []interval.CardinalityEstimate
	OutputCardinalities []interval.CardinalityEstimate

	LoadProfile     cost.LoadProfile
	TimeEstimate    interval.ProbabilisticDoubleInterval
	TimeEstimateSet bool
	CostEstimate    interval.ProbabilisticDoubleInterval

	ExecutionCount int

	changed []bool // one marker bit per output slot
}

func newContext(id plan.OperatorID, numIn, numOut int) *Context {
	return &Context{
		OperatorID:          id,
		InputCardinalities:  make([]interval.CardinalityEstimate, numIn),
		OutputCardinalities: make([]interval.CardinalityEstimate, numOut),
		changed:             make([]bool, numOut),
	}
}

// SetOutputCardinality records a new estimate for output slot i, marking it
// changed only if it differs from the prior value (null-safe equality).
func (c *Context) SetOutputCardinality(i int, v interval.CardinalityEstimate) {
	if i >= len(c.OutputCardinalities) {
		return
	}
	if c.OutputCardinalities[i].Equal(v) {
		return
	}
	c.OutputCardinalities[i] = v
	c.changed[i] = true
}

// SetTimeEstimate records a computed time estimate and flags it present,
// for the IsTimeEstimatesComplete assertion.
func (c *Context) SetTimeEstimate(t interval.ProbabilisticDoubleInterval) {
	c.TimeEstimate = t
	c.TimeEstimateSet = true
}

// Changed reports whether output slot i was marked since the last
// ClearMarks.
func (c *Context) Changed(i int) bool {
	if i >= len(c.changed) {
		return false
	}
	return c.changed[i]
}

// ClearMarks resets every output slot's change marker, called by the driver
// after each full push so subsequent incremental pushes are
// O(changed-subgraph).
func (c *Context) ClearMarks() {
	for i := range c.changed {
		c.changed[i] = false
	}
}

// Arena owns every operator's Context, plus the per-iteration context
// lists for loop heads. The mutex guards the arena's own maps, so entries
// can be created (Get/EnsureLoopContexts) and read (Lookup/All) from more
// than one goroutine; it does not guard a Context once returned, and
// cardinality writes through a Context take no lock.
type Arena struct {
	mu syncutil.Mutex

	contexts map[plan.OperatorID]*Context

	// loopIterations[id] holds n iteration contexts; loopPost[id] holds the
	// dedicated post-loop context, for a loop head with OperatorID id.
	loopIterations map[plan.OperatorID][]*Context
	loopPost       map[plan.OperatorID]*Context
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{
		contexts:       make(map[plan.OperatorID]*Context),
		loopIterations: make(map[plan.OperatorID][]*Context),
		loopPost:       make(map[plan.OperatorID]*Context),
	}
}

// Get returns op's context, creating it on first access.
func (a *Arena) Get(op plan.Operator) *Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.contexts[op.ID()]; ok {
		return c
	}
	c := newContext(op.ID(), len(op.Inputs()), len(op.Outputs()))
	a.contexts[op.ID()] = c
	return c
}

// Lookup returns op's context without creating one, reporting whether it
// already existed.
func (a *Arena) Lookup(id plan.OperatorID) (*Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.contexts[id]
	return c, ok
}

// EnsureLoopContexts returns n iteration contexts plus one post-loop
// context for the loop head loopHead, creating them on first access.
// Every iteration context and the post-loop context use the loop head's own
// outer slot arity.
func (a *Arena) EnsureLoopContexts(loopHead *plan.LoopHeadOperator, n int) (iterations []*Context, post *Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := loopHead.ID()
	if existing, ok := a.loopIterations[id]; ok && len(existing) == n {
		return existing, a.loopPost[id]
	}
	numIn, numOut := len(loopHead.Inputs()), len(loopHead.Outputs())
	iterations = make([]*Context, n)
	for i := range iterations {
		iterations[i] = newContext(id, numIn, numOut)
	}
	a.loopIterations[id] = iterations
	post = newContext(id, numIn, numOut)
	a.loopPost[id] = post
	return iterations, post
}

// ClearMarks resets change markers on every context the arena holds,
// including loop iteration and post-loop contexts.
func (a *Arena) ClearMarks() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.contexts {
		c.ClearMarks()
	}
	for _, iters := range a.loopIterations {
		for _, c := range iters {
			c.ClearMarks()
		}
	}
	for _, c := range a.loopPost {
		c.ClearMarks()
	}
}

// All returns every context currently allocated, for assertions like
// IsTimeEstimatesComplete that must scan the whole plan.
func (a *Arena) All() []*Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Context, 0, len(a.contexts))
	for _, c := range a.contexts {
		out = append(out, c)
	}
	return out
}
