package enumerate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/cardinality"
	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/cost"
	"github.com/saad749/rheem/internal/costmodel"
	"github.com/saad749/rheem/internal/enumerate"
	"github.com/saad749/rheem/internal/interval"
	"github.com/saad749/rheem/internal/mapping"
	"github.com/saad749/rheem/internal/optctx"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/platform/local"
)

func buildSourceMapCollect(t *testing.T) *plan.Plan {
	t.Helper()
	b := plan.NewPlanBuilder()
	source := plan.NewElementaryOperator(b.AllocID(), "source", 0, 1)
	source.Outputs()[0].Estimator = func([]interval.CardinalityEstimate) interval.CardinalityEstimate {
		return interval.Exact(5)
	}
	b.Register(source)

	mapOp := plan.NewElementaryOperator(b.AllocID(), "map", 1, 1)
	mapOp.Outputs()[0].Estimator = cardinality.IdentityFallback
	b.Register(mapOp)

	sink := plan.NewElementaryOperator(b.AllocID(), "collect", 1, 0)
	b.Register(sink)

	require.NoError(t, source.Outputs()[0].Connect(mapOp.Inputs()[0]))
	require.NoError(t, mapOp.Outputs()[0].Connect(sink.Inputs()[0]))
	b.MarkSink(sink)
	return b.Build()
}

func TestEnumerateBindsEveryOperatorToLocalPlatform(t *testing.T) {
	ctx := context.Background()
	p := buildSourceMapCollect(t)
	active := plan.ActivePlatforms{local.Platform: true}
	require.NoError(t, plan.Sane(p, active))

	arena := optctx.NewArena()
	engine := cardinality.NewEngine(arena, cardinality.ConstantFallback(0))
	require.NoError(t, engine.Push(ctx, p))

	model := costmodel.NewModel()
	model.Platforms[local.Platform] = costmodel.PlatformProfile{
		ToTime: cost.NewDefaultConverter(1, 0),
		ToCost: cost.TimeToCostConverter{RatePerMs: 1},
	}

	enumerator := &enumerate.Enumerator{
		Registry:      mapping.NewRegistry(mapping.LocalMapping{}),
		Model:         model,
		ChannelGraph:  channel.NewGraph(nil),
		JunctionCache: channel.NewCache(),
		Arena:         arena,
		Active:        channel.ActivePlatforms(active),
	}

	enumeration, err := enumerator.Enumerate(ctx, p)
	require.NoError(t, err)
	require.NotEmpty(t, enumeration.Implementations)

	best := enumeration.Best(interval.Compare)
	require.NotNil(t, best)
	require.Len(t, best.Choices, 3)
	for _, op := range best.Choices {
		require.Equal(t, local.Platform, op.Platform)
	}
}

func TestEnumerateFailsWithoutCardinalityPush(t *testing.T) {
	ctx := context.Background()
	p := buildSourceMapCollect(t)
	active := plan.ActivePlatforms{local.Platform: true}

	arena := optctx.NewArena()
	model := costmodel.NewModel()
	model.Platforms[local.Platform] = costmodel.PlatformProfile{
		ToTime: cost.NewDefaultConverter(1, 0),
		ToCost: cost.TimeToCostConverter{RatePerMs: 1},
	}
	enumerator := &enumerate.Enumerator{
		Registry:      mapping.NewRegistry(mapping.LocalMapping{}),
		Model:         model,
		ChannelGraph:  channel.NewGraph(nil),
		JunctionCache: channel.NewCache(),
		Arena:         arena,
		Active:        channel.ActivePlatforms(active),
	}

	_, err := enumerator.Enumerate(ctx, p)
	require.Error(t, err)
}
