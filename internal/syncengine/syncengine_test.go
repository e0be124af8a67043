package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/graph"
	"github.com/kittclouds/graphcore/internal/wire"
)

func newTestEngine(t *testing.T) (*Engine, *graph.Graph) {
	t.Helper()
	g, err := graph.Open(context.Background(), graph.Options{Schema: graph.DefaultSchema()})
	require.NoError(t, err)
	tick := int64(0)
	now := func() int64 { tick++; return tick }
	return New(g, now), g
}

func TestSyncDatomsAppliesAssertions(t *testing.T) {
	e, g := newTestEngine(t)
	ctx := context.Background()

	res, err := e.SyncDatoms(ctx, []wire.Datom{
		{E: 100, A: "page/name", V: "synced", Added: true},
		{E: 100, A: "page/title", V: "Synced", Added: true},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	ds, err := g.Datoms(graph.DatomsQuery{Index: graph.IndexAVET, A: "page/name", V: "synced"})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, int64(100), ds[0].E)
}

func TestSyncDatomsIdempotentUnderDuplicateDelivery(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	batch := []wire.Datom{{E: 1, A: "page/name", V: "dup", Added: true}}

	_, err := e.SyncDatoms(ctx, batch, true)
	require.NoError(t, err)

	res2, err := e.SyncDatoms(ctx, batch, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Count)
}

func TestSyncDatomsIdempotentRetractOfMissingFact(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.SyncDatoms(ctx, []wire.Datom{
		{E: 5, A: "page/title", V: "gone", Added: false},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestSyncTxReportRoundTrip(t *testing.T) {
	_, g := newTestEngine(t)
	ctx := context.Background()
	report, err := g.Transact(ctx, []graph.TxItem{
		{Entity: map[string]any{"page/name": "reported", "page/title": "Reported"}},
	})
	require.NoError(t, err)

	out := SyncTxReport(report)
	assert.Len(t, out, len(report.TxData))
	for i, d := range out {
		assert.Equal(t, report.TxData[i].E, d.E)
		assert.True(t, d.Added)
	}
}
