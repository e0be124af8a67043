package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/wire"
)

func seedPages(t *testing.T, g *Graph, titles ...string) map[string]int64 {
	t.Helper()
	ids := map[string]int64{}
	for _, title := range titles {
		report, err := g.Transact(context.Background(), []TxItem{
			{Entity: map[string]any{"page/name": title, "page/title": title}},
		})
		require.NoError(t, err)
		ids[title] = report.TxData[0].E
	}
	return ids
}

func TestQueryTriplePattern(t *testing.T) {
	g := newTestGraph(t)
	seedPages(t, g, "alpha", "beta")

	q, err := ParseQuery(map[string]any{
		"find":  []any{wire.Symbol{Name: "?e"}},
		"where": []any{[]any{wire.Symbol{Name: "?e"}, "page/name", "alpha"}},
	})
	require.NoError(t, err)

	rows, err := g.Query(q, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestQueryJoinAcrossClauses(t *testing.T) {
	g := newTestGraph(t)
	ids := seedPages(t, g, "alpha")
	_, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"block/uuid": "b1", "block/page": ids["alpha"], "block/content": "hello"}},
	})
	require.NoError(t, err)

	q, err := ParseQuery(map[string]any{
		"find": []any{wire.Symbol{Name: "?b"}},
		"where": []any{
			[]any{wire.Symbol{Name: "?p"}, "page/name", "alpha"},
			[]any{wire.Symbol{Name: "?b"}, "block/page", wire.Symbol{Name: "?p"}},
		},
	})
	require.NoError(t, err)

	rows, err := g.Query(q, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestQueryPredicateFiltersResults(t *testing.T) {
	g := newTestGraph(t)
	for i, title := range []string{"one", "two", "three"} {
		_, err := g.Transact(context.Background(), []TxItem{
			{Entity: map[string]any{"page/name": title, "page/journal-day": float64(i)}},
		})
		require.NoError(t, err)
	}

	q, err := ParseQuery(map[string]any{
		"find": []any{wire.Symbol{Name: "?e"}},
		"where": []any{
			[]any{wire.Symbol{Name: "?e"}, "page/journal-day", wire.Symbol{Name: "?d"}},
			[]any{[]any{wire.Symbol{Name: ">"}, wire.Symbol{Name: "?d"}, float64(0)}},
		},
	})
	require.NoError(t, err)

	rows, err := g.Query(q, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestQueryNotClauseExcludesMatches(t *testing.T) {
	g := newTestGraph(t)
	ids := seedPages(t, g, "has-block", "no-block")
	_, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"block/uuid": "b1", "block/page": ids["has-block"]}},
	})
	require.NoError(t, err)

	q, err := ParseQuery(map[string]any{
		"find": []any{wire.Symbol{Name: "?p"}},
		"where": []any{
			[]any{wire.Symbol{Name: "?p"}, "page/name", wire.Symbol{Name: "?n"}},
			[]any{wire.Symbol{Name: "not"}, []any{wire.Symbol{Name: "?b"}, "block/page", wire.Symbol{Name: "?p"}}},
		},
	})
	require.NoError(t, err)

	rows, err := g.Query(q, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ids["no-block"], rows[0][0])
}

func TestQueryAggregateCount(t *testing.T) {
	g := newTestGraph(t)
	seedPages(t, g, "a", "b", "c")

	q, err := ParseQuery(map[string]any{
		"find":  []any{[]any{wire.Symbol{Name: "count"}, wire.Symbol{Name: "?e"}}},
		"where": []any{[]any{wire.Symbol{Name: "?e"}, "page/name", wire.Symbol{Name: "?n"}}},
	})
	require.NoError(t, err)

	rows, err := g.Query(q, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0][0])
}
