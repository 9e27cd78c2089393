package exec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/enumerate"
	"github.com/saad749/rheem/internal/exec"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/optctx"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/platform"
	"github.com/saad749/rheem/platform/local"
)

func behaviorsForChain() *local.Behaviors {
	b := local.NewBehaviors()
	b.Sources[1] = func() []interface{} { return []interface{}{1, 2, 3} }
	b.Maps[2] = func(v interface{}) interface{} { return v.(int) * 10 }
	return b
}

func TestDriverRunsChainToCompletion(t *testing.T) {
	flow := exec.Lower(buildChain(t))
	executor := local.NewExecutor(behaviorsForChain())

	driver := &exec.Driver{Platforms: map[string]platform.Executor{local.Platform: executor}}
	report, err := driver.ExecuteUntilBreakpoint(context.Background(), flow)
	require.NoError(t, err)
	require.Equal(t, exec.ReasonDone, report.Reason)
	require.True(t, flow.Complete())

	collectTask, ok := flow.TaskFor(3)
	require.True(t, ok)
	require.Equal(t, []interface{}{10, 20, 30}, executor.Collected(collectTask.Inputs[0]))
}

func TestDriverFrontierBreakpointStopsBetweenStages(t *testing.T) {
	source := plan.NewExecutionOperator(1, local.Platform, plan.NewElementaryOperator(1, "source", 0, 1))
	remoteMap := plan.NewExecutionOperator(2, "remote", plan.NewElementaryOperator(2, "map", 1, 1))
	impl := &enumerate.PlanImplementation{
		Choices: map[plan.OperatorID]*plan.ExecutionOperator{1: source, 2: remoteMap},
		Junctions: map[enumerate.ConnectionKey]*channel.Junction{
			{Producer: 1, Output: 0, Consumer: 2, Input: 0}: {Descriptor: local.StreamDescriptor},
		},
	}
	flow := exec.Lower(impl)

	localBehaviors := local.NewBehaviors()
	localBehaviors.Sources[1] = func() []interface{} { return []interface{}{1, 2} }
	localExecutor := local.NewExecutor(localBehaviors)

	remoteBehaviors := local.NewBehaviors()
	remoteBehaviors.Maps[2] = func(v interface{}) interface{} { return v }
	remoteExecutor := local.NewExecutor(remoteBehaviors)

	driver := &exec.Driver{
		Platforms: map[string]platform.Executor{
			local.Platform: localExecutor,
			"remote":       remoteExecutor,
		},
		Breakpoints: exec.Breakpoints{Frontier: true},
	}

	report, err := driver.ExecuteUntilBreakpoint(context.Background(), flow)
	require.NoError(t, err)
	require.Equal(t, exec.ReasonFrontier, report.Reason)
	require.False(t, flow.Complete())
	require.Len(t, report.Stages, 1)

	// Resuming drains the remaining stage and finishes the job.
	report2, err := driver.ExecuteUntilBreakpoint(context.Background(), flow)
	require.NoError(t, err)
	require.Equal(t, exec.ReasonDone, report2.Reason)
	require.True(t, flow.Complete())
}

func TestDriverCardinalityDriftBreakpoint(t *testing.T) {
	flow := exec.Lower(buildChain(t))
	executor := local.NewExecutor(behaviorsForChain())

	arena := optctx.NewArena()
	sourceTask, ok := flow.TaskFor(1)
	require.True(t, ok)
	opCtx := arena.Get(sourceTask.Operator)
	opCtx.OutputCardinalities[0] = interval.Exact(1000)

	driver := &exec.Driver{
		Platforms:   map[string]platform.Executor{local.Platform: executor},
		Arena:       arena,
		Breakpoints: exec.Breakpoints{CardinalityDrift: 0.5},
	}

	report, err := driver.ExecuteUntilBreakpoint(context.Background(), flow)
	require.NoError(t, err)
	require.Equal(t, exec.ReasonCardinalityDrift, report.Reason)
	require.Equal(t, sourceTask.Operator.ID(), report.DriftOperator)
}
