package local_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/platform/local"
)

func newOp(id plan.OperatorID, class string, numIn, numOut int) *plan.ExecutionOperator {
	logical := plan.NewElementaryOperator(id, class, numIn, numOut)
	return plan.NewExecutionOperator(id, local.Platform, logical)
}

func TestExecutorSourceMapFilterCollect(t *testing.T) {
	ctx := context.Background()
	b := local.NewBehaviors()
	b.Sources[1] = func() []interface{} { return []interface{}{1, 2, 3, 4, 5} }
	b.Maps[2] = func(v interface{}) interface{} { return v.(int) * 2 }
	b.Filters[3] = func(v interface{}) bool { return v.(int) > 4 }

	e := local.NewExecutor(b)

	sourceOut, _, err := e.Execute(ctx, newOp(1, "source", 0, 1), nil)
	require.NoError(t, err)
	require.Len(t, sourceOut, 1)

	mapOut, partial, err := e.Execute(ctx, newOp(2, "map", 1, 1), []*channel.Instance{sourceOut[0]})
	require.NoError(t, err)
	require.NotNil(t, partial)
	require.Equal(t, []interface{}{2, 4, 6, 8, 10}, e.Collected(mapOut[0]))

	filterOut, _, err := e.Execute(ctx, newOp(3, "filter", 1, 1), []*channel.Instance{mapOut[0]})
	require.NoError(t, err)
	require.Equal(t, []interface{}{6, 8, 10}, e.Collected(filterOut[0]))

	collectOut, _, err := e.Execute(ctx, newOp(4, "collect", 1, 1), []*channel.Instance{filterOut[0]})
	require.NoError(t, err)
	require.Equal(t, []interface{}{6, 8, 10}, e.Collected(collectOut[0]))
}

func TestExecutorMissingBehaviorErrors(t *testing.T) {
	e := local.NewExecutor(nil)
	_, _, err := e.Execute(context.Background(), newOp(1, "source", 0, 1), nil)
	require.Error(t, err)
}

func TestExecutorReduceByGroupsAndFolds(t *testing.T) {
	ctx := context.Background()
	b := local.NewBehaviors()
	b.Sources[1] = func() []interface{} { return []interface{}{1, 2, 3, 4, 5, 6} }
	b.ReduceKeys[2] = func(v interface{}) interface{} { return v.(int) % 2 }
	b.Reduces[2] = func(a, b interface{}) interface{} { return a.(int) + b.(int) }

	e := local.NewExecutor(b)
	sourceOut, _, err := e.Execute(ctx, newOp(1, "source", 0, 1), nil)
	require.NoError(t, err)

	reduceOut, _, err := e.Execute(ctx, newOp(2, "reduceBy", 1, 1), []*channel.Instance{sourceOut[0]})
	require.NoError(t, err)
	// first-seen key order: odd (1) appears before even (2).
	require.Equal(t, []interface{}{9, 12}, e.Collected(reduceOut[0]))
}

func TestExecutorJoinMatchesOnKey(t *testing.T) {
	ctx := context.Background()
	b := local.NewBehaviors()
	b.Sources[1] = func() []interface{} { return []interface{}{1, 2} }
	b.Sources[2] = func() []interface{} { return []interface{}{"a1", "b2"} }
	b.JoinLeftKeys[3] = func(v interface{}) interface{} { return v }
	b.JoinRightKeys[3] = func(v interface{}) interface{} {
		s := v.(string)
		return int(s[1] - '0')
	}
	b.Join[3] = func(left, right interface{}) interface{} { return right }

	e := local.NewExecutor(b)
	left, _, err := e.Execute(ctx, newOp(1, "source", 0, 1), nil)
	require.NoError(t, err)
	right, _, err := e.Execute(ctx, newOp(2, "source", 0, 1), nil)
	require.NoError(t, err)

	joinOut, _, err := e.Execute(ctx, newOp(3, "join", 2, 1), []*channel.Instance{left[0], right[0]})
	require.NoError(t, err)
	require.ElementsMatch(t, []interface{}{"a1", "b2"}, e.Collected(joinOut[0]))
}
