package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteUnclassifiedForUnknownOp(t *testing.T) {
	r := New()
	assert.Equal(t, Unclassified, r.Route("thread-api/mystery", "g1"))
}

func TestRouteWorkerOnlyIgnoresReadiness(t *testing.T) {
	r := New()
	assert.Equal(t, WorkerOnly, r.Route("thread-api/vec-search", "g1"))
	r.SetSidecarReady(true)
	r.MarkSyncComplete("g1")
	assert.Equal(t, WorkerOnly, r.Route("thread-api/vec-search", "g1"))
}

func TestRouteSidecarPreferredDegradesUntilReadyAndSynced(t *testing.T) {
	r := New()
	assert.Equal(t, Unclassified, r.Route("thread-api/q", "g1"))

	r.SetSidecarReady(true)
	assert.Equal(t, Unclassified, r.Route("thread-api/q", "g1"), "ready but not synced still degrades")

	r.MarkSyncComplete("g1")
	assert.Equal(t, SidecarPreferred, r.Route("thread-api/q", "g1"))

	assert.Equal(t, Unclassified, r.Route("thread-api/q", "g2"), "sync completion is per-graph")
}

func TestSidecarReadyAndSyncCompleteAccessors(t *testing.T) {
	r := New()
	assert.False(t, r.SidecarReady())
	assert.False(t, r.SyncComplete("g1"))

	r.SetSidecarReady(true)
	r.MarkSyncComplete("g1")
	assert.True(t, r.SidecarReady())
	assert.True(t, r.SyncComplete("g1"))
	assert.False(t, r.SyncComplete("g2"))
}
