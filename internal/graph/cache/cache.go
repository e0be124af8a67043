// Package cache approximates the soft-referenced node cache of spec
// §4.3.2 / §9: Go has no GC-managed soft references, so eviction is
// size-triggered through a bounded LRU instead of memory-pressure
// triggered. A node dirtied by a transaction is pinned (kept out of the
// evictable cache) until the transaction's Flush succeeds.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kittclouds/graphcore/internal/storage"
)

// RefType selects the cache's eviction policy (spec's `ref-type` option).
type RefType string

const (
	Strong RefType = "strong" // never evict
	Soft   RefType = "soft"   // evict under size pressure
)

const defaultCapacity = 4096

// NodeCache fronts a storage.Backend. In Soft mode it keeps at most
// capacity resident blocks behind an LRU and rehydrates the rest from the
// backend on demand. In Strong mode nothing is ever evicted.
type NodeCache struct {
	refType RefType
	backend storage.Backend

	lru    *lru.Cache[int64, []byte] // used when refType == Soft
	strong map[int64][]byte          // used when refType == Strong
	pinned map[int64][]byte          // dirty nodes pinned until Flush, either mode
}

// New builds a cache in front of backend. capacity <= 0 uses a sane
// default; it is ignored entirely when refType is Strong.
func New(refType RefType, backend storage.Backend, capacity int) (*NodeCache, error) {
	nc := &NodeCache{
		refType: refType,
		backend: backend,
		pinned:  make(map[int64][]byte),
	}
	if refType == Strong {
		nc.strong = make(map[int64][]byte)
		return nc, nil
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c, err := lru.New[int64, []byte](capacity)
	if err != nil {
		return nil, err
	}
	nc.lru = c
	return nc, nil
}

// Get returns the block at address, rehydrating from the backend on a
// cache miss. The rehydrated block is admitted back into the cache.
func (c *NodeCache) Get(ctx context.Context, address int64) ([]byte, bool, error) {
	if data, ok := c.pinned[address]; ok {
		return data, true, nil
	}
	if data, ok := c.resident(address); ok {
		return data, true, nil
	}
	if c.backend == nil {
		return nil, false, nil
	}
	data, ok, err := c.backend.Restore(ctx, address)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	c.admit(address, data)
	return data, true, nil
}

// Put stages a dirty write. It stays pinned (never evicted) until Flush
// persists it successfully.
func (c *NodeCache) Put(address int64, data []byte) {
	c.pinned[address] = data
}

// Flush persists every pinned block through the backend, then unpins it
// into the regular resident set.
func (c *NodeCache) Flush(ctx context.Context) error {
	if len(c.pinned) == 0 {
		return nil
	}
	blocks := make([]storage.Block, 0, len(c.pinned))
	for addr, data := range c.pinned {
		blocks = append(blocks, storage.Block{Address: addr, Data: data})
	}
	if c.backend != nil {
		if err := c.backend.Store(ctx, blocks); err != nil {
			return err
		}
	}
	for addr, data := range c.pinned {
		c.admit(addr, data)
		delete(c.pinned, addr)
	}
	return nil
}

// Evict drops address from the resident set (not the backend); used by
// tests to simulate soft-reference reclamation under memory pressure.
func (c *NodeCache) Evict(address int64) {
	if c.lru != nil {
		c.lru.Remove(address)
	}
}

func (c *NodeCache) resident(address int64) ([]byte, bool) {
	if c.strong != nil {
		data, ok := c.strong[address]
		return data, ok
	}
	return c.lru.Get(address)
}

func (c *NodeCache) admit(address int64, data []byte) {
	if c.strong != nil {
		c.strong[address] = data
		return
	}
	c.lru.Add(address, data)
}
