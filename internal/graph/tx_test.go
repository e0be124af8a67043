package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Open(context.Background(), Options{Schema: DefaultSchema()})
	require.NoError(t, err)
	return g
}

func TestTransactEntityMapAllocatesEntity(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{
			"page/name":  "welcome",
			"page/title": "Welcome",
		}},
	})
	require.NoError(t, err)
	assert.Len(t, report.TxData, 2)
	assert.NotZero(t, report.TxData[0].E)
}

func TestTransactTempidResolvesConsistentlyWithinTx(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []TxItem{
		{Add: &AddRetract{E: "page1", A: "page/name", V: "journal"}},
		{Add: &AddRetract{E: "page1", A: "page/title", V: "Journal"}},
	})
	require.NoError(t, err)
	require.Contains(t, report.TempIDs, "page1")
	e := report.TempIDs["page1"]
	for _, d := range report.TxData {
		assert.Equal(t, e, d.E)
	}
}

func TestCardinalityOneSupersedesPriorValue(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"page/name": "p1", "page/title": "one"}},
	})
	require.NoError(t, err)
	e := report.TxData[0].E

	report2, err := g.Transact(context.Background(), []TxItem{
		{Add: &AddRetract{E: e, A: "page/title", V: "two"}},
	})
	require.NoError(t, err)
	require.Len(t, report2.TxData, 2)

	var added, retracted bool
	for _, d := range report2.TxData {
		if d.Added && d.V == "two" {
			added = true
		}
		if !d.Added && d.V == "one" {
			retracted = true
		}
	}
	assert.True(t, added)
	assert.True(t, retracted)
}

func TestRepeatedAssertIsNoOp(t *testing.T) {
	g := newTestGraph(t)
	items := []TxItem{{Entity: map[string]any{"page/name": "dup", "page/title": "Dup"}}}
	_, err := g.Transact(context.Background(), items)
	require.NoError(t, err)

	report2, err := g.Transact(context.Background(), items)
	require.NoError(t, err)
	assert.Empty(t, report2.TxData)
}

func TestUniqueConstraintViolation(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"page/name": "clash", "page/title": "A"}},
	})
	require.NoError(t, err)

	_, err = g.Transact(context.Background(), []TxItem{
		{Add: &AddRetract{E: "other", A: "page/name", V: "clash"}},
	})
	assert.Error(t, err)
}

func TestLookupRefResolution(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"page/name": "home", "page/title": "Home"}},
	})
	require.NoError(t, err)
	e := report.TxData[0].E

	report2, err := g.Transact(context.Background(), []TxItem{
		{Add: &AddRetract{E: LookupRef{A: "page/name", V: "home"}, A: "page/title", V: "Home Page"}},
	})
	require.NoError(t, err)
	require.Len(t, report2.TxData, 2)
	for _, d := range report2.TxData {
		assert.Equal(t, e, d.E)
	}
}

func TestRetractEntityLeavesInboundRefsDangling(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"page/name": "parent-page", "page/title": "Parent"}},
	})
	require.NoError(t, err)
	pageID := report.TxData[0].E

	blockReport, err := g.Transact(context.Background(), []TxItem{
		{Entity: map[string]any{"block/uuid": "b1", "block/page": pageID, "block/content": "hi"}},
	})
	require.NoError(t, err)
	var blockID int64
	for _, d := range blockReport.TxData {
		blockID = d.E
		break
	}

	_, err = g.Transact(context.Background(), []TxItem{
		{RetractEntity: &pageID},
	})
	require.NoError(t, err)

	g.mu.RLock()
	_, pageStillPresent := g.eav[pageID]["page/name"]
	byV, blockRefStillPresent := g.eav[blockID]["block/page"]
	g.mu.RUnlock()

	// Spec §3: retract-entity is not cascading. The page's own datoms
	// are gone, but other entities' references to it are left dangling.
	assert.False(t, pageStillPresent)
	require.True(t, blockRefStillPresent)
	require.Len(t, byV, 1)
	for _, d := range byV {
		assert.Equal(t, pageID, d.V)
	}
}

func TestIdempotentRetractOfMissingDatomIsNoOp(t *testing.T) {
	g := newTestGraph(t)
	report, err := g.Transact(context.Background(), []TxItem{
		{Retract: &AddRetract{E: int64(999), A: "page/title", V: "nope"}},
	})
	require.NoError(t, err)
	assert.Empty(t, report.TxData)
}
