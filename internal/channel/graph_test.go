package channel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/channel"
	"github.com/saad749/rheem/internal/interval"
)

var (
	streamLocal = channel.Descriptor{ID: "stream-local", Platform: "local"}
	fileLocal   = channel.Descriptor{ID: "file-local", Platform: "local", Reusable: true}
	streamOther = channel.Descriptor{ID: "stream-other", Platform: "other"}
)

func testGraph() *channel.Graph {
	return channel.NewGraph([]channel.ConversionEdge{
		{
			From: streamLocal, To: fileLocal, Platform: "local", OperatorClass: "stream-to-file",
			Cost: func(card interval.CardinalityEstimate) interval.ProbabilisticDoubleInterval {
				return interval.ProbabilisticDoubleInterval{Lower: 1, Upper: 1, P: 1}
			},
		},
		{
			From: fileLocal, To: streamOther, Platform: "other", OperatorClass: "file-to-stream",
			Cost: func(card interval.CardinalityEstimate) interval.ProbabilisticDoubleInterval {
				return interval.ProbabilisticDoubleInterval{Lower: 2, Upper: 2, P: 1}
			},
		},
	})
}

func TestFindJunctionDirectMatchNeedsNoConversion(t *testing.T) {
	g := testGraph()
	j, err := g.FindJunction([]channel.Descriptor{streamLocal}, []channel.Descriptor{streamLocal}, false, nil, interval.Exact(10))
	require.NoError(t, err)
	require.Empty(t, j.Steps)
}

func TestFindJunctionSingleHop(t *testing.T) {
	g := testGraph()
	j, err := g.FindJunction([]channel.Descriptor{streamLocal}, []channel.Descriptor{fileLocal}, false, nil, interval.Exact(10))
	require.NoError(t, err)
	require.Len(t, j.Steps, 1)
	require.Equal(t, "stream-to-file", j.Steps[0].Edge.OperatorClass)
}

func TestFindJunctionMultiHop(t *testing.T) {
	g := testGraph()
	j, err := g.FindJunction([]channel.Descriptor{streamLocal}, []channel.Descriptor{streamOther}, false, nil, interval.Exact(10))
	require.NoError(t, err)
	require.Len(t, j.Steps, 2)
	require.Equal(t, 3.0, j.Cost.Lower)
}

func TestFindJunctionRespectsActivePlatforms(t *testing.T) {
	g := testGraph()
	_, err := g.FindJunction([]channel.Descriptor{streamLocal}, []channel.Descriptor{streamOther}, false,
		channel.ActivePlatforms{"local": true}, interval.Exact(10))
	require.Error(t, err)
	require.True(t, channel.IsNoPath(err))
}

func TestFindJunctionBroadcastRequiresReusable(t *testing.T) {
	g := testGraph()
	// streamLocal itself is not Reusable, so a broadcast search must hop to
	// the Reusable fileLocal descriptor instead of matching directly.
	j, err := g.FindJunction([]channel.Descriptor{streamLocal}, []channel.Descriptor{streamLocal, fileLocal}, true, nil, interval.Exact(10))
	require.NoError(t, err)
	require.Equal(t, "file-local", j.Descriptor.ID)
}

func TestCacheReusesResolvedJunction(t *testing.T) {
	cache := channel.NewCache()
	calls := 0
	resolve := func() (*channel.Junction, error) {
		calls++
		return &channel.Junction{Descriptor: fileLocal}, nil
	}
	_, err := cache.GetOrResolve("stream-local", "file-local", false, resolve)
	require.NoError(t, err)
	_, err = cache.GetOrResolve("stream-local", "file-local", false, resolve)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second lookup must hit the cache")
}
