package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/plan"
)

func buildLinearPlan(t *testing.T) *plan.Plan {
	t.Helper()
	b := plan.NewPlanBuilder()
	source := plan.NewElementaryOperator(b.AllocID(), "source", 0, 1)
	b.Register(source)
	mapOp := plan.NewElementaryOperator(b.AllocID(), "map", 1, 1)
	b.Register(mapOp)
	sink := plan.NewElementaryOperator(b.AllocID(), "collect", 1, 0)
	b.Register(sink)

	require.NoError(t, source.Outputs()[0].Connect(mapOp.Inputs()[0]))
	require.NoError(t, mapOp.Outputs()[0].Connect(sink.Inputs()[0]))
	b.MarkSink(sink)
	return b.Build()
}

func TestSaneAcceptsAcyclicPlanWithSink(t *testing.T) {
	p := buildLinearPlan(t)
	require.NoError(t, plan.Sane(p, nil))
}

func TestSaneRejectsEmptyPlan(t *testing.T) {
	b := plan.NewPlanBuilder()
	require.Error(t, plan.Sane(b.Build(), nil))
}

func TestSaneRejectsDanglingRequiredInput(t *testing.T) {
	b := plan.NewPlanBuilder()
	sink := plan.NewElementaryOperator(b.AllocID(), "collect", 1, 0)
	sink.Inputs()[0].Required = true
	b.Register(sink)
	b.MarkSink(sink)

	require.Error(t, plan.Sane(b.Build(), nil))
}

func TestSaneRejectsUnknownPlatform(t *testing.T) {
	b := plan.NewPlanBuilder()
	logical := plan.NewElementaryOperator(b.AllocID(), "map", 0, 1)
	execOp := plan.NewExecutionOperator(b.AllocID(), "ghost-platform", logical)
	b.Register(execOp)
	b.MarkSink(execOp)

	err := plan.Sane(b.Build(), plan.ActivePlatforms{"local": true})
	require.Error(t, err)
}

func TestSaneRejectsCycle(t *testing.T) {
	b := plan.NewPlanBuilder()
	a := plan.NewElementaryOperator(b.AllocID(), "map", 1, 1)
	c := plan.NewElementaryOperator(b.AllocID(), "map", 1, 1)
	b.Register(a)
	b.Register(c)
	require.NoError(t, a.Outputs()[0].Connect(c.Inputs()[0]))
	require.NoError(t, c.Outputs()[0].Connect(a.Inputs()[0]))
	b.MarkSink(c)

	err := plan.Sane(b.Build(), nil)
	require.Error(t, err)
}

func TestReachableFromSinksPrunesDeadBranches(t *testing.T) {
	b := plan.NewPlanBuilder()
	live := plan.NewElementaryOperator(b.AllocID(), "source", 0, 1)
	sink := plan.NewElementaryOperator(b.AllocID(), "collect", 1, 0)
	dead := plan.NewElementaryOperator(b.AllocID(), "source", 0, 1)
	b.Register(live)
	b.Register(sink)
	b.Register(dead)
	require.NoError(t, live.Outputs()[0].Connect(sink.Inputs()[0]))
	b.MarkSink(sink)

	p := b.Build()
	pruned := plan.Prune(p)
	ids := make(map[plan.OperatorID]bool)
	for _, op := range pruned.Operators() {
		ids[op.ID()] = true
	}
	require.True(t, ids[live.ID()])
	require.True(t, ids[sink.ID()])
	require.False(t, ids[dead.ID()])
}
