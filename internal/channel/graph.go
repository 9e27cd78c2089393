package channel

import (
	"container/heap"

	"github.com/saad749/rheem/internal/interval"
)

// ConversionEdge is a unary execution operator that rewrites data available
// as one channel descriptor into another. Cost is a function of the cardinality moving
// across the edge so the search can weigh cheap small bridges over
// expensive big ones.
type ConversionEdge struct {
	From, To Descriptor
	Platform string
	// OperatorClass names the conversion operator this edge materializes
	// into, e.g. "collect-to-local" or "stream-to-file".
	OperatorClass string
	Cost          func(card interval.CardinalityEstimate) interval.ProbabilisticDoubleInterval
}

// Graph is the channel-conversion search space: descriptors are vertices,
// ConversionEdges are directed edges.
type Graph struct {
	edges map[string][]ConversionEdge // keyed by From.ID
}

// NewGraph builds a conversion graph from a flat edge list, as platform
// adapters register them at startup.
func NewGraph(edges []ConversionEdge) *Graph {
	g := &Graph{edges: make(map[string][]ConversionEdge)}
	for _, e := range edges {
		g.edges[e.From.ID] = append(g.edges[e.From.ID], e)
	}
	return g
}

// Step is one hop of a resolved Junction: the conversion operator that
// produced descriptor To from the previous step's descriptor.
type Step struct {
	Edge ConversionEdge
}

// Junction is the resolved bridge from a producer's output to one or more
// consumer inputs: zero or more conversion Steps, plus the combined cost
// of the cheapest path found.
type Junction struct {
	Steps []Step
	Cost  interval.ProbabilisticDoubleInterval
	// Descriptor is the channel descriptor finally handed to the consumer.
	Descriptor Descriptor
}

// cacheKey identifies a structurally identical junction search so results
// can be reused across alternatives.
type cacheKey struct {
	from      string
	to        string
	broadcast bool
}

// ActivePlatforms restricts which platforms a conversion may run on.
type ActivePlatforms map[string]bool

// searchItem is a heap entry for the best-first (Dijkstra) search: the
// current descriptor reached, the path cost to reach it, and the path of
// steps taken.
type searchItem struct {
	descriptor Descriptor
	cost       interval.ProbabilisticDoubleInterval
	card       interval.CardinalityEstimate
	steps      []Step
	index      int
}

type searchQueue []*searchItem

func (q searchQueue) Len() int { return len(q) }
func (q searchQueue) Less(i, j int) bool {
	return interval.Compare(q[i].cost, q[j].cost) < 0
}
func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *searchQueue) Push(x interface{}) {
	item := x.(*searchItem)
	item.index = len(*q)
	*q = append(*q, item)
}
func (q *searchQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// accepts reports whether a descriptor set contains d.
func accepts(set []Descriptor, d Descriptor) (Descriptor, bool) {
	for _, c := range set {
		if c.ID == d.ID {
			return c, true
		}
	}
	return Descriptor{}, false
}

// FindJunction searches for the cheapest sequence of conversions bridging
// any of the produced descriptors to any of the accepted descriptors,
// restricted to active platforms, and — when broadcast is true — to
// descriptors flagged Reusable.
//
// card is the cardinality estimate flowing across the connection, used to
// evaluate each edge's cost function.
func (g *Graph) FindJunction(
	produced []Descriptor,
	accepted []Descriptor,
	broadcast bool,
	active ActivePlatforms,
	card interval.CardinalityEstimate,
) (*Junction, error) {
	// Fast path: direct match needs no conversion at all.
	for _, p := range produced {
		if d, ok := accepts(accepted, p); ok {
			if !broadcast || d.Reusable {
				return &Junction{Descriptor: d}, nil
			}
		}
	}

	visited := make(map[string]bool)
	pq := &searchQueue{}
	heap.Init(pq)
	for _, p := range produced {
		heap.Push(pq, &searchItem{descriptor: p, card: card})
	}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*searchItem)
		if visited[cur.descriptor.ID] {
			continue
		}
		visited[cur.descriptor.ID] = true

		if d, ok := accepts(accepted, cur.descriptor); ok && (!broadcast || d.Reusable) {
			return &Junction{Steps: cur.steps, Cost: cur.cost, Descriptor: d}, nil
		}

		for _, edge := range g.edges[cur.descriptor.ID] {
			if active != nil && !active[edge.Platform] {
				continue
			}
			if broadcast && !edge.To.Reusable {
				continue
			}
			if visited[edge.To.ID] {
				continue
			}
			edgeCost := edge.Cost(cur.card)
			next := &searchItem{
				descriptor: edge.To,
				cost:       cur.cost.Add(edgeCost),
				card:       cur.card,
				steps:      append(append([]Step{}, cur.steps...), Step{Edge: edge}),
			}
			heap.Push(pq, next)
		}
	}

	return nil, errNoPath
}
