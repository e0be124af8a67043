package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/graph"
)

func newTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Open(context.Background(), graph.Options{Schema: graph.DefaultSchema()})
	require.NoError(t, err)
	return g
}

func TestGetPageTreesBuildsNestedBlocks(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []graph.TxItem{
		{Entity: map[string]any{
			"page/name":  "welcome",
			"page/title": "Welcome",
		}},
	})
	require.NoError(t, err)
	pageID := report.TxData[0].E

	report, err = g.Transact(context.Background(), []graph.TxItem{
		{Entity: map[string]any{
			"block/parent":  pageID,
			"block/content": "first",
			"block/order":   "a0",
		}},
	})
	require.NoError(t, err)
	blockID := report.TxData[0].E

	_, err = g.Transact(context.Background(), []graph.TxItem{
		{Entity: map[string]any{
			"block/parent":  blockID,
			"block/content": "nested",
			"block/order":   "a0a0",
		}},
	})
	require.NoError(t, err)

	trees, err := GetPageTrees(g, []int64{pageID})
	require.NoError(t, err)
	require.Len(t, trees, 1)

	tree := trees[0]
	assert.Equal(t, "welcome", tree.Name)
	assert.Equal(t, "Welcome", tree.Title)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "first", tree.Children[0].Content)
	require.Len(t, tree.Children[0].Children, 1)
	assert.Equal(t, "nested", tree.Children[0].Children[0].Content)
}

func TestGetPageTreesSkipsMissingIDs(t *testing.T) {
	g := newTestGraph(t)
	trees, err := GetPageTrees(g, []int64{999})
	require.NoError(t, err)
	assert.Empty(t, trees)
}

func TestGetFileWritesComposesPath(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []graph.TxItem{
		{Entity: map[string]any{"page/name": "journal"}},
	})
	require.NoError(t, err)
	pageID := report.TxData[0].E

	render := func(tree *Tree, format string, opts map[string]any) (string, error) {
		return "content-for-" + tree.Name, nil
	}
	writes, err := GetFileWrites(g, []int64{pageID}, "md", map[string]any{"graph-dir": "/graphs/g1"}, render)
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, "/graphs/g1/journal.md", writes[0].Path)
	assert.Equal(t, "content-for-journal", writes[0].Content)
}
