package rpc

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/graph"
	"github.com/kittclouds/graphcore/internal/metrics"
	"github.com/kittclouds/graphcore/internal/server"
	"github.com/kittclouds/graphcore/internal/wire"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	reg := server.NewRegistry()
	m := metrics.New()
	clock := int64(1000)
	now := func() int64 { clock++; return clock }
	return New(reg, m, zerolog.Nop(), now, "")
}

func openGraph(t *testing.T, d *Dispatcher, graphID string) {
	t.Helper()
	_, err := d.Registry.CreateOrOpen(context.Background(), graphID, graph.Options{Schema: graph.DefaultSchema()})
	require.NoError(t, err)
}

func TestHandshakeSucceedsAboveMinimum(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{Type: "handshake", ID: "1", Version: "1.0.0"})
	assert.True(t, resp.OK)
	assert.Equal(t, Capabilities, resp.Capabilities)
}

func TestHandshakeRejectsBelowMinimum(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{Type: "handshake", ID: "1", Version: "0.0.1"})
	assert.False(t, resp.OK)
	assert.Equal(t, "version-mismatch", resp.ErrorType)
}

func TestDispatchUnknownOp(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{Type: "request", Op: "thread-api/nonsense", Payload: map[string]any{}})
	assert.False(t, resp.OK)
	assert.Equal(t, "unknown-op", resp.ErrorType)
}

func TestDispatchGraphNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{Type: "request", Op: "thread-api/pull", Payload: map[string]any{"graph-id": "missing"}})
	assert.False(t, resp.OK)
	assert.Equal(t, "graph-not-found", resp.ErrorType)
}

func TestTransactAndPullRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	openGraph(t, d, "g1")

	txResp := d.Dispatch(context.Background(), Request{
		Type: "request", Op: "thread-api/transact",
		Payload: map[string]any{
			"graph-id": "g1",
			"tx-data": []any{
				map[string]any{"page/name": "welcome", "page/title": "Welcome"},
			},
		},
	})
	require.True(t, txResp.OK)

	pullResp := d.Dispatch(context.Background(), Request{
		Type: "request", Op: "thread-api/pull",
		Payload: map[string]any{
			"graph-id": "g1",
			"selector": []any{wire.NewKeyword("page/name"), wire.NewKeyword("page/title")},
			"eid":      []any{wire.NewKeyword("page/name"), "welcome"},
		},
	})
	require.True(t, pullResp.OK)
	m, ok := pullResp.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Welcome", m["page/title"])
}

func TestApplyOutlinerOpsCreatesPage(t *testing.T) {
	d := newTestDispatcher(t)
	openGraph(t, d, "g1")

	resp := d.Dispatch(context.Background(), Request{
		Type: "request", Op: "thread-api/apply-outliner-ops",
		Payload: map[string]any{
			"graph-id": "g1",
			"ops": []any{
				[]any{wire.NewKeyword("outliner/create-page"), map[string]any{"title": "Notes"}},
			},
		},
	})
	require.True(t, resp.OK)
	payload, ok := resp.Payload.(map[string]any)
	require.True(t, ok)
	assert.Len(t, payload["affected-pages"], 1)
}

func TestListDBReturnsOpenGraphs(t *testing.T) {
	d := newTestDispatcher(t)
	openGraph(t, d, "g1")
	openGraph(t, d, "g2")

	resp := d.Dispatch(context.Background(), Request{Type: "request", Op: "thread-api/list-db", Payload: map[string]any{}})
	require.True(t, resp.OK)
	rows, ok := resp.Payload.([]map[string]any)
	require.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestUpdateThreadAtomRejectsBadNamespace(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Dispatch(context.Background(), Request{
		Type: "request", Op: "thread-api/update-thread-atom",
		Payload: map[string]any{"key": "app-state/foo", "value": 1},
	})
	assert.False(t, resp.OK)
	assert.Equal(t, "malformed", resp.ErrorType)
}

func TestVersionLess(t *testing.T) {
	assert.True(t, versionLess("0.9.9", "1.0.0"))
	assert.False(t, versionLess("1.0.0", "1.0.0"))
	assert.False(t, versionLess("1.2.0", "1.1.9"))
}
