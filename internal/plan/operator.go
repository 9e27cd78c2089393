// Package plan implements the plan graph: operators, slots, composites and
// loops, plus structural traversal and sanity checks.
//
// Deep class hierarchies of operators (the common OO approach) are
// replaced with a closed set of variants plus capability interfaces:
// ElementaryOperator is the base shape every node has,
// ExecutionOperator layers a platform binding onto it, and
// CompositeOperator/LoopHeadOperator embed a nested *Plan rather than
// inheriting from it.
package plan

import (
	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/interval"
)

// OperatorID is a stable integer identity assigned at plan-build time, used
// to key the OptimizationContext arena instead of back-pointers from the
// (structurally immutable) plan graph into mutable optimizer state.
type OperatorID uint64

// DataType is the declared type of a slot. The core treats it as an opaque
// comparable token; backends own the actual type system.
type DataType string

// Estimator computes an output cardinality from the estimates of an
// operator's inputs. A nil Estimator means "use the
// configured fallback."
type Estimator func(inputs []interval.CardinalityEstimate) interval.CardinalityEstimate

// OutputSlot is an indexed, typed output of an operator. It may feed zero
// or more InputSlots.
type OutputSlot struct {
	Index     int
	Type      DataType
	Owner     Operator
	Estimator Estimator

	consumers []*InputSlot
}

// Connect wires this output to in. An InputSlot accepts at most one
// incoming connection; broadcast inputs are a flag on the
// slot, not a distinct connection kind.
func (o *OutputSlot) Connect(in *InputSlot) error {
	if in.incoming != nil {
		return errAlreadyConnected(in)
	}
	in.incoming = o
	o.consumers = append(o.consumers, in)
	return nil
}

// Consumers returns the input slots fed by this output.
func (o *OutputSlot) Consumers() []*InputSlot { return o.consumers }

// InputSlot is an indexed, typed input of an operator.
type InputSlot struct {
	Index     int
	Type      DataType
	Owner     Operator
	Required  bool
	Broadcast bool

	incoming *OutputSlot
}

// Incoming returns the connected output slot, or nil if unconnected.
func (in *InputSlot) Incoming() *OutputSlot { return in.incoming }

// Operator is the capability every plan-graph node implements. Elementary,
// execution, composite and loop-head operators all satisfy it; type
// switches (or the Kind-specific accessors below) recover the richer shape
// when a caller needs it.
type Operator interface {
	ID() OperatorID
	Class() string
	Inputs() []*InputSlot
	Outputs() []*OutputSlot
}

// base is embedded by every concrete operator variant.
type base struct {
	id      OperatorID
	class   string
	inputs  []*InputSlot
	outputs []*OutputSlot
}

func (b *base) ID() OperatorID         { return b.id }
func (b *base) Class() string          { return b.class }
func (b *base) Inputs() []*InputSlot   { return b.inputs }
func (b *base) Outputs() []*OutputSlot { return b.outputs }

func newBase(id OperatorID, class string, numIn, numOut int) base {
	b := base{id: id, class: class}
	b.inputs = make([]*InputSlot, numIn)
	b.outputs = make([]*OutputSlot, numOut)
	return b
}

// ElementaryOperator is a logical operator: map, filter, flatMap, join,
// groupBy, reduceBy, loop, a source, or a sink. It carries no
// platform binding; the mapping registry (C2) produces ExecutionOperator
// alternatives for it.
type ElementaryOperator struct {
	base
}

// NewElementaryOperator builds a logical operator with numIn inputs and
// numOut outputs, wiring the slots' Owner back-references. Slot types and
// estimators are filled in by the caller (typically a PlanBuilder helper).
func NewElementaryOperator(id OperatorID, class string, numIn, numOut int) *ElementaryOperator {
	op := &ElementaryOperator{base: newBase(id, class, numIn, numOut)}
	for i := range op.inputs {
		op.inputs[i] = &InputSlot{Index: i, Owner: op}
	}
	for i := range op.outputs {
		op.outputs[i] = &OutputSlot{Index: i, Owner: op}
	}
	return op
}

// IsSource reports whether this operator takes no inputs (a plan source).
func (e *ElementaryOperator) IsSource() bool { return len(e.inputs) == 0 }

// ChannelPreference is one entry of an ExecutionOperator's per-slot
// preference list.
type ChannelPreference struct {
	Descriptors []channel.Descriptor
}

// ExecutionOperator binds a logical operator to a single backend platform
// and declares which channel descriptors it can produce/accept on each
// slot.
type ExecutionOperator struct {
	base
	Platform string

	// Logical is the elementary operator this execution operator
	// implements, used by the mapping registry to group alternatives by
	// logical identity.
	Logical *ElementaryOperator

	outputPrefs []ChannelPreference
	inputPrefs  []ChannelPreference

	// LoadProfileConfigKey names the rheem.<platform>.<op>.load
	// configuration key this operator's cost estimator reads.
	LoadProfileConfigKey string
}

// NewExecutionOperator builds an execution operator implementing logical on
// platform, with the same slot arity as logical.
func NewExecutionOperator(id OperatorID, platform string, logical *ElementaryOperator) *ExecutionOperator {
	numIn, numOut := len(logical.inputs), len(logical.outputs)
	op := &ExecutionOperator{
		base:        newBase(id, logical.class, numIn, numOut),
		Platform:    platform,
		Logical:     logical,
		outputPrefs: make([]ChannelPreference, numOut),
		inputPrefs:  make([]ChannelPreference, numIn),
	}
	for i := range op.inputs {
		op.inputs[i] = &InputSlot{Index: i, Owner: op, Type: logical.inputs[i].Type, Required: logical.inputs[i].Required, Broadcast: logical.inputs[i].Broadcast}
	}
	for i := range op.outputs {
		op.outputs[i] = &OutputSlot{Index: i, Owner: op, Type: logical.outputs[i].Type, Estimator: logical.outputs[i].Estimator}
	}
	return op
}

// SetOutputChannelPreference declares the channel descriptors this
// operator can produce on output slot i, in preference order.
func (e *ExecutionOperator) SetOutputChannelPreference(i int, descriptors ...channel.Descriptor) {
	e.outputPrefs[i] = ChannelPreference{Descriptors: descriptors}
}

// SetInputChannelPreference declares the channel descriptors this operator
// can accept on input slot i, in preference order.
func (e *ExecutionOperator) SetInputChannelPreference(i int, descriptors ...channel.Descriptor) {
	e.inputPrefs[i] = ChannelPreference{Descriptors: descriptors}
}

// SupportedOutputChannels returns the descriptors output slot i can
// produce.
func (e *ExecutionOperator) SupportedOutputChannels(i int) []channel.Descriptor {
	return e.outputPrefs[i].Descriptors
}

// SupportedInputChannels returns the descriptors input slot i can accept.
func (e *ExecutionOperator) SupportedInputChannels(i int) []channel.Descriptor {
	return e.inputPrefs[i].Descriptors
}

// AlternativeKey groups execution operators implementing the same logical
// operator on the same platform with the same concrete type, for the
// mapping registry's dedup rule.
func (e *ExecutionOperator) AlternativeKey() string {
	return e.Platform + "/" + e.class
}

// CompositeOperator contains an inner plan and maps outer slots to inner
// slots. Loops embed one of these rather than inheriting from
// a shared composite base class.
type CompositeOperator struct {
	base
	Inner *Plan

	// outerToInnerOut maps an outer output slot index to the inner output
	// slot it traces to; outerToInnerIn maps an outer input slot index to
	// the inner input slot it feeds.
	outerToInnerOut map[int]*OutputSlot
	outerToInnerIn  map[int]*InputSlot
}

// NewCompositeOperator builds a composite wrapping inner, with numIn/numOut
// outer slots.
func NewCompositeOperator(id OperatorID, class string, inner *Plan, numIn, numOut int) *CompositeOperator {
	op := &CompositeOperator{
		base:            newBase(id, class, numIn, numOut),
		Inner:           inner,
		outerToInnerOut: make(map[int]*OutputSlot),
		outerToInnerIn:  make(map[int]*InputSlot),
	}
	for i := range op.inputs {
		op.inputs[i] = &InputSlot{Index: i, Owner: op}
	}
	for i := range op.outputs {
		op.outputs[i] = &OutputSlot{Index: i, Owner: op}
	}
	return op
}

// TraceOutput maps an outer output slot to the inner output slot that
// produces its data.
func (c *CompositeOperator) TraceOutput(outerIndex int) (*OutputSlot, bool) {
	s, ok := c.outerToInnerOut[outerIndex]
	return s, ok
}

// TraceInput maps an outer input slot to the inner input slot that
// consumes its data.
func (c *CompositeOperator) TraceInput(outerIndex int) (*InputSlot, bool) {
	s, ok := c.outerToInnerIn[outerIndex]
	return s, ok
}

// BindOutputTrace records that outer output slot outerIndex traces to the
// given inner output slot.
func (c *CompositeOperator) BindOutputTrace(outerIndex int, inner *OutputSlot) {
	c.outerToInnerOut[outerIndex] = inner
}

// BindInputTrace records that outer input slot outerIndex feeds the given
// inner input slot.
func (c *CompositeOperator) BindInputTrace(outerIndex int, inner *InputSlot) {
	c.outerToInnerIn[outerIndex] = inner
}

// ConvergenceFunc decides, given the iteration index just completed,
// whether a loop should continue.
type ConvergenceFunc func(iteration int) bool

// LoopHeadOperator is the distinguished head of an iterative composite: it
// embeds a CompositeOperator for its body, an expected iteration count used
// for cost estimation, and a convergence predicate that decides actual
// continuation at execution time.
type LoopHeadOperator struct {
	*CompositeOperator
	ExpectedIterations int
	Convergence        ConvergenceFunc
}

// NewLoopHeadOperator builds a loop head around a body plan.
func NewLoopHeadOperator(id OperatorID, inner *Plan, numIn, numOut, expectedIterations int, conv ConvergenceFunc) *LoopHeadOperator {
	return &LoopHeadOperator{
		CompositeOperator:  NewCompositeOperator(id, "loop", inner, numIn, numOut),
		ExpectedIterations: expectedIterations,
		Convergence:        conv,
	}
}
