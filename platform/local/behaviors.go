package local

import "github.com/saad749/rheem/internal/plan"

// Behaviors supplies the Go functions a logical operator needs at execution
// time, keyed by the logical (ElementaryOperator) ID the built-in local
// mappings bound an alternative to. The plan builder that constructs a
// pipeline populates these alongside the plan itself — the in-process
// equivalent of a real backend compiling a user-supplied lambda into its own
// IR.
type Behaviors struct {
	Sources map[plan.OperatorID]func() []interface{}
	Maps    map[plan.OperatorID]func(interface{}) interface{}
	Filters map[plan.OperatorID]func(interface{}) bool

	// ReduceKeys/Reduces implement reduceBy: group by key, then fold each
	// group with Reduces.
	ReduceKeys map[plan.OperatorID]func(interface{}) interface{}
	Reduces    map[plan.OperatorID]func(a, b interface{}) interface{}

	// GroupKeys implements groupBy: partitions the input by key, emitting
	// one Group per partition.
	GroupKeys map[plan.OperatorID]func(interface{}) interface{}

	// JoinLeftKeys/JoinRightKeys/Join implement an equi-join: input 0 is
	// probed by JoinLeftKeys, input 1 by JoinRightKeys, and every matching
	// pair is combined by Join.
	JoinLeftKeys  map[plan.OperatorID]func(interface{}) interface{}
	JoinRightKeys map[plan.OperatorID]func(interface{}) interface{}
	Join          map[plan.OperatorID]func(left, right interface{}) interface{}
}

// Group is one groupBy partition.
type Group struct {
	Key    interface{}
	Values []interface{}
}

// NewBehaviors returns a Behaviors with every map initialized, so callers
// can assign entries without a nil check.
func NewBehaviors() *Behaviors {
	return &Behaviors{
		Sources:       make(map[plan.OperatorID]func() []interface{}),
		Maps:          make(map[plan.OperatorID]func(interface{}) interface{}),
		Filters:       make(map[plan.OperatorID]func(interface{}) bool),
		ReduceKeys:    make(map[plan.OperatorID]func(interface{}) interface{}),
		Reduces:       make(map[plan.OperatorID]func(a, b interface{}) interface{}),
		GroupKeys:     make(map[plan.OperatorID]func(interface{}) interface{}),
		JoinLeftKeys:  make(map[plan.OperatorID]func(interface{}) interface{}),
		JoinRightKeys: make(map[plan.OperatorID]func(interface{}) interface{}),
		Join:          make(map[plan.OperatorID]func(left, right interface{}) interface{}),
	}
}
