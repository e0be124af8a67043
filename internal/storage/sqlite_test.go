package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRestoreRoundTrip(t *testing.T) {
	b, err := Open(":memory:")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	err = b.Store(ctx, []Block{{Address: 1, Data: []byte("hello")}, {Address: 2, Data: []byte("world")}})
	require.NoError(t, err)

	data, ok, err := b.Restore(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(data))

	_, ok, err = b.Restore(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListAddresses(t *testing.T) {
	b, err := Open(":memory:")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Store(ctx, []Block{{Address: 5, Data: []byte("a")}, {Address: 3, Data: []byte("b")}}))

	addrs, err := b.ListAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, addrs)
}

func TestDeleteRemovesAddress(t *testing.T) {
	b, err := Open(":memory:")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Store(ctx, []Block{{Address: 1, Data: []byte("x")}}))
	require.NoError(t, b.Delete(ctx, []int64{1}))

	_, ok, err := b.Restore(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreBatchReplacesExistingAddress(t *testing.T) {
	b, err := Open(":memory:")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.Store(ctx, []Block{{Address: 1, Data: []byte("v1")}}))
	require.NoError(t, b.Store(ctx, []Block{{Address: 1, Data: []byte("v2")}, {Address: 2, Data: []byte("v2b")}}))

	data, ok, err := b.Restore(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", string(data))
}
