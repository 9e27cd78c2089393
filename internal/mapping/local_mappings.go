package mapping

import (
	"github.com/saad749/rheem/internal/config"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/platform/local"
)

// localLoadKeyName maps a logical operator class to the name its local
// execution-operator alternative's load-profile configuration key is
// published under: map binds to local-map, filter to local-filter, reduceBy
// to local-reduce, join to local-join, groupBy to local-groupby. Classes not
// listed (source, collect — the pipeline boundary operators) use
// "local-"+class directly.
var localLoadKeyName = map[string]string{
	"map":      "local-map",
	"filter":   "local-filter",
	"reduceBy": "local-reduce",
	"join":     "local-join",
	"groupBy":  "local-groupby",
}

// LocalMapping is the built-in mapping binding every elementary operator
// class the local in-process reference platform supports to a local
// execution-operator alternative, plus the source/collect boundary
// operators a pipeline needs to be runnable end to end on that platform
// alone.
//
// Loop body inlining needs no transformation of its own here: a loop body
// is itself a nested *plan.Plan, and the enumerator re-enters
// Registry.Apply on it for every composite and loop head it contributes
// (see enumerate.Enumerator.enumerateInner), so these same transformations
// already match operators nested inside loop bodies without any
// loop-specific pattern — the inlining is a structural property of C6's
// composite/loop contribution, not of the mapping.
type LocalMapping struct{}

// Transformations implements Mapping.
func (LocalMapping) Transformations() []*PlanTransformation {
	return []*PlanTransformation{
		localUnary("source"),
		localUnary("map"),
		localUnary("filter"),
		localUnary("reduceBy"),
		localUnary("groupBy"),
		localUnary("join"),
		localUnary("collect"),
	}
}

func localUnary(class string) *PlanTransformation {
	return &PlanTransformation{
		Pattern:         &SubplanPattern{Root: &OperatorPattern{Capture: "root", Match: classIs(class)}},
		TargetPlatforms: []string{local.Platform},
		Replace: func(captures map[string]plan.Operator, b *plan.PlanBuilder) (*plan.ExecutionOperator, error) {
			return newLocalExecOp(captures["root"], b, class)
		},
	}
}

func classIs(class string) func(plan.Operator) bool {
	return func(op plan.Operator) bool { return op.Class() == class }
}

// newLocalExecOp builds the local execution-operator alternative for a
// matched logical operator. root is nil-or-wrong-type only if the pattern's
// capture logic changes underneath this; returning (nil, nil) is the
// established "no alternative for this match" signal Registry.Apply already
// handles.
func newLocalExecOp(root plan.Operator, b *plan.PlanBuilder, class string) (*plan.ExecutionOperator, error) {
	logical, ok := root.(*plan.ElementaryOperator)
	if !ok {
		return nil, nil
	}

	id := b.AllocID()
	execOp := plan.NewExecutionOperator(id, local.Platform, logical)

	keyName, ok := localLoadKeyName[class]
	if !ok {
		keyName = "local-" + class
	}
	execOp.LoadProfileConfigKey = config.LoadKey(local.Platform, keyName)

	outDesc := local.StreamDescriptor
	if class == "reduceBy" || class == "groupBy" || class == "join" {
		outDesc = local.CollectionDescriptor
	}
	for i := range logical.Outputs() {
		execOp.SetOutputChannelPreference(i, outDesc)
	}
	for i := range logical.Inputs() {
		execOp.SetInputChannelPreference(i, local.StreamDescriptor, local.CollectionDescriptor)
	}
	return execOp, nil
}
