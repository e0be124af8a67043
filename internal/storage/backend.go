// Package storage implements the pluggable block storage backend described
// in spec §4.2: an address→blob map used by the graph engine to spill and
// re-hydrate internal tree nodes, SQLite-backed, safe for in-memory mode.
package storage

import (
	"context"
)

// Block pairs a storage address with its opaque blob payload.
type Block struct {
	Address int64
	Data    []byte
}

// Backend is the small interface the graph engine (via the node cache)
// uses to persist and rehydrate blocks. Implementations must make a
// Store call atomic: a batch must not be partially visible on failure.
type Backend interface {
	// Store atomically persists a batch of (address, blob) pairs.
	Store(ctx context.Context, blocks []Block) error
	// Restore loads a single block. ok is false if the address is unknown.
	Restore(ctx context.Context, address int64) (data []byte, ok bool, err error)
	// ListAddresses enumerates every stored address.
	ListAddresses(ctx context.Context) ([]int64, error)
	// Delete removes the given addresses. Missing addresses are not an error.
	Delete(ctx context.Context, addresses []int64) error
	// Close releases any held resources.
	Close() error
}
