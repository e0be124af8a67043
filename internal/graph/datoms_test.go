package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatomsScanEAVTPrefixedByEntity(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"page/name": "scan-me", "page/title": "Scan Me"}},
	})
	require.NoError(t, err)
	e := report.TxData[0].E

	ds, err := g.Datoms(DatomsQuery{Index: IndexEAVT, E: &e})
	require.NoError(t, err)
	assert.Len(t, ds, 2)
}

func TestDatomsScanAVETRequiresIndexedAttribute(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.Datoms(DatomsQuery{Index: IndexAVET, A: "page/title"})
	assert.Error(t, err)

	_, err = g.Datoms(DatomsQuery{Index: IndexAVET, A: "page/name"})
	assert.NoError(t, err)
}

func TestDatomsScanVAETFindsReferrers(t *testing.T) {
	g := newTestGraph(t)
	pageReport, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"page/name": "vaet-page"}},
	})
	require.NoError(t, err)
	pageID := pageReport.TxData[0].E

	_, err = g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"block/uuid": "vaet-block", "block/page": pageID}},
	})
	require.NoError(t, err)

	ds, err := g.Datoms(DatomsQuery{Index: IndexVAET, V: pageID})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "block/page", ds[0].A)
}
