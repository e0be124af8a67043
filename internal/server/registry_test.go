package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/graph"
)

func TestCreateOrOpenIsIdempotent(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	g1, err := r.CreateOrOpen(ctx, "g1", graph.Options{})
	require.NoError(t, err)
	g2, err := r.CreateOrOpen(ctx, "g1", graph.Options{})
	require.NoError(t, err)
	assert.Same(t, g1, g2)
}

func TestGetUnknownGraphReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestListAndCloseAll(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	_, err := r.CreateOrOpen(ctx, "a", graph.Options{})
	require.NoError(t, err)
	_, err = r.CreateOrOpen(ctx, "b", graph.Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, r.List())
	assert.True(t, r.Exists("a"))

	require.NoError(t, r.CloseAll())
	assert.Empty(t, r.List())
}
