// Package local is the in-process reference platform: a single-threaded,
// in-memory backend exercising the full C1-C8 pipeline without any external
// system. It exists so the CLI's demo command and the test suite can run a
// plan end to end without standing up a real database or cluster.
package local

import "github.com/saad749/rheem/internal/channel"

// Platform is this backend's name, as used in ExecutionOperator.Platform and
// channel.Descriptor.Platform.
const Platform = "local"

// StreamDescriptor is the channel used between single-consumer, streaming
// local operators (map, filter, source).
var StreamDescriptor = channel.Descriptor{
	ID:       "local-stream",
	Platform: Platform,
	Internal: true,
}

// CollectionDescriptor is the channel used for materialized, broadcastable
// results (reduceBy, groupBy and join outputs, and anything fed to more than
// one consumer).
var CollectionDescriptor = channel.Descriptor{
	ID:                "local-collection",
	Platform:          Platform,
	Internal:          true,
	Reusable:          true,
	SupportsBroadcast: true,
}
