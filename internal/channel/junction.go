package channel

import (
	"github.com/cockroachdb/errors"
)

var errNoPath = errors.New("channel: no conversion path between producer and consumer descriptors")

// IsNoPath reports whether err is the "no conversion path exists" sentinel
// FindJunction returns; the enumerator (C6) uses this to drop a pairing
// instead of treating it as a fatal error.
func IsNoPath(err error) bool {
	return errors.Is(err, errNoPath)
}

// Cache reuses Junctions across plan-implementation alternatives that
// resolve a structurally identical conversion.
type Cache struct {
	entries map[cacheKey]*Junction
}

func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*Junction)}
}

// GetOrResolve returns a cached Junction for (from, to, broadcast) if one
// was already resolved, else resolves it via g and caches the result.
func (c *Cache) GetOrResolve(
	from string, to string, broadcast bool, resolve func() (*Junction, error),
) (*Junction, error) {
	key := cacheKey{from: from, to: to, broadcast: broadcast}
	if j, ok := c.entries[key]; ok {
		return j, nil
	}
	j, err := resolve()
	if err != nil {
		return nil, err
	}
	c.entries[key] = j
	return j, nil
}
