package grove

import (
	"bytes"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/spaolacci/murmur3"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultCacheSize is the number of compiled chunks kept across reloads.
const DefaultCacheSize = 256

// protoKey identifies a chunk by name and content. An edited file hashes
// differently and misses.
type protoKey struct {
	name string
	sum  uint64
}

// protoCache keeps compiled function prototypes. Prototypes hold no state
// bound to an LState, so the cache outlives VM resets and a reload skips
// parsing for unchanged files.
type protoCache struct {
	lru    *lru.Cache
	hits   int
	misses int
}

// newProtoCache returns a cache holding up to size prototypes. A size of
// zero or less disables caching.
func newProtoCache(size int) *protoCache {
	if size <= 0 {
		return &protoCache{}
	}
	c, err := lru.New(size)
	if err != nil {
		return &protoCache{}
	}
	return &protoCache{lru: c}
}

// compile returns the prototype for src, parsing it on a miss.
func (c *protoCache) compile(name string, src []byte) (*lua.FunctionProto, error) {
	key := protoKey{name: name, sum: murmur3.Sum64(src)}
	if c.lru != nil {
		if v, ok := c.lru.Get(key); ok {
			c.hits++
			return v.(*lua.FunctionProto), nil
		}
	}
	c.misses++

	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if c.lru != nil {
		c.lru.Add(key, proto)
	}
	return proto, nil
}

// stats returns hit and miss counts.
func (c *protoCache) stats() (hits, misses int) { return c.hits, c.misses }

// len returns the number of cached prototypes.
func (c *protoCache) len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
