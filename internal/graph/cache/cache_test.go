package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/storage"
)

func TestSoftCacheRehydratesAfterEviction(t *testing.T) {
	backend, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer backend.Close()

	c, err := New(Soft, backend, 8)
	require.NoError(t, err)

	ctx := context.Background()
	c.Put(1, []byte("payload"))
	require.NoError(t, c.Flush(ctx))

	c.Evict(1)

	data, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", string(data))
}

func TestDirtyNodePinnedUntilFlush(t *testing.T) {
	backend, err := storage.Open(":memory:")
	require.NoError(t, err)
	defer backend.Close()

	c, err := New(Soft, backend, 8)
	require.NoError(t, err)

	c.Put(2, []byte("dirty"))

	ctx := context.Background()
	data, ok, err := c.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dirty", string(data))

	_, onDiskBefore, err := backend.Restore(ctx, 2)
	require.NoError(t, err)
	assert.False(t, onDiskBefore)

	require.NoError(t, c.Flush(ctx))
	_, onDiskAfter, err := backend.Restore(ctx, 2)
	require.NoError(t, err)
	assert.True(t, onDiskAfter)
}

func TestStrongCacheNeverEvicts(t *testing.T) {
	c, err := New(Strong, nil, 1)
	require.NoError(t, err)

	ctx := context.Background()
	c.Put(1, []byte("a"))
	c.Put(2, []byte("b"))
	require.NoError(t, c.Flush(ctx))

	_, ok1, _ := c.Get(ctx, 1)
	_, ok2, _ := c.Get(ctx, 2)
	assert.True(t, ok1)
	assert.True(t, ok2)
}
