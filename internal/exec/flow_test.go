package exec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/enumerate"
	"github.com/saad749/rheem/internal/exec"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/platform/local"
)

// buildChain returns a source -> map -> collect PlanImplementation bound
// entirely to the local platform, the smallest shape exercising Lower's
// junction wiring and Flow's topological ordering.
func buildChain(t *testing.T) *enumerate.PlanImplementation {
	t.Helper()
	source := plan.NewExecutionOperator(1, local.Platform, plan.NewElementaryOperator(1, "source", 0, 1))
	mapOp := plan.NewExecutionOperator(2, local.Platform, plan.NewElementaryOperator(2, "map", 1, 1))
	collect := plan.NewExecutionOperator(3, local.Platform, plan.NewElementaryOperator(3, "collect", 1, 0))

	return &enumerate.PlanImplementation{
		Choices: map[plan.OperatorID]*plan.ExecutionOperator{1: source, 2: mapOp, 3: collect},
		Junctions: map[enumerate.ConnectionKey]*channel.Junction{
			{Producer: 1, Output: 0, Consumer: 2, Input: 0}: {Descriptor: local.StreamDescriptor},
			{Producer: 2, Output: 0, Consumer: 3, Input: 0}: {Descriptor: local.StreamDescriptor},
		},
	}
}

func TestLowerBuildsOneTaskPerOperator(t *testing.T) {
	flow := exec.Lower(buildChain(t))
	require.Len(t, flow.Tasks, 3)
	require.Len(t, flow.Channels, 2)
}

func TestTopoOrderRespectsProducerBeforeConsumer(t *testing.T) {
	flow := exec.Lower(buildChain(t))
	order := flow.TopoOrder()
	require.Len(t, order, 3)

	pos := make(map[plan.OperatorID]int, len(order))
	for i, t := range order {
		pos[t.Operator.ID()] = i
	}
	require.Less(t, pos[1], pos[2], "source before map")
	require.Less(t, pos[2], pos[3], "map before collect")
}

func TestSplitGroupsContiguousSamePlatformRuns(t *testing.T) {
	flow := exec.Lower(buildChain(t))
	order := flow.TopoOrder()
	stages := exec.Split(order)
	require.Len(t, stages, 1, "a single-platform chain is one stage")
	require.Equal(t, local.Platform, stages[0].Platform)
	require.Len(t, stages[0].Tasks, 3)
}

func TestSplitSplitsOnPlatformChange(t *testing.T) {
	source := plan.NewExecutionOperator(1, local.Platform, plan.NewElementaryOperator(1, "source", 0, 1))
	remote := plan.NewExecutionOperator(2, "remote", plan.NewElementaryOperator(2, "map", 1, 1))
	impl := &enumerate.PlanImplementation{
		Choices: map[plan.OperatorID]*plan.ExecutionOperator{1: source, 2: remote},
		Junctions: map[enumerate.ConnectionKey]*channel.Junction{
			{Producer: 1, Output: 0, Consumer: 2, Input: 0}: {Descriptor: local.StreamDescriptor},
		},
	}
	flow := exec.Lower(impl)
	stages := exec.Split(flow.TopoOrder())
	require.Len(t, stages, 2)
	require.Equal(t, local.Platform, stages[0].Platform)
	require.Equal(t, "remote", stages[1].Platform)
}

func TestOpenChannelsTracksUnconsumedProducedData(t *testing.T) {
	flow := exec.Lower(buildChain(t))
	require.Empty(t, flow.OpenChannels())

	sourceTask, ok := flow.TaskFor(1)
	require.True(t, ok)
	for _, out := range sourceTask.Outputs {
		out.MarkProduced()
	}
	require.NotEmpty(t, flow.OpenChannels())
}
