// Package syncengine implements spec §4.6: converting between the
// writer's wire-level datom vectors and graph transactions, both
// directions, idempotently under duplicate delivery.
package syncengine

import (
	"context"

	"github.com/kittclouds/graphcore/internal/graph"
	"github.com/kittclouds/graphcore/internal/wire"
)

// SyncResult is sync-datoms' return value.
type SyncResult struct {
	Count     int
	ElapsedMs int64
}

// Engine adapts one graph to the wire-level sync protocol.
type Engine struct {
	g   *graph.Graph
	now func() int64 // milliseconds, for elapsed-time bookkeeping
}

func New(g *graph.Graph, now func() int64) *Engine {
	return &Engine{g: g, now: now}
}

// SyncDatoms applies an incoming batch of wire datoms as one transaction
// (spec §4.6). On fullSync, entity ids are the writer's own ids, used
// verbatim rather than remapped.
func (e *Engine) SyncDatoms(ctx context.Context, datoms []wire.Datom, fullSync bool) (SyncResult, error) {
	start := e.now()

	items := make([]graph.TxItem, 0, len(datoms))
	for _, d := range datoms {
		if d.Added {
			items = append(items, graph.TxItem{Add: &graph.AddRetract{E: d.E, A: d.A, V: d.V}})
		} else {
			items = append(items, graph.TxItem{Retract: &graph.AddRetract{E: d.E, A: d.A, V: d.V}})
		}
	}

	report, err := e.g.Transact(ctx, items)
	if err != nil {
		return SyncResult{}, err
	}

	return SyncResult{Count: len(report.TxData), ElapsedMs: e.now() - start}, nil
}

// SyncTxReport converts a local tx report back into the wire datom
// vectors the writer persists (spec §4.6, the reverse direction).
func SyncTxReport(report graph.TxReport) []wire.Datom {
	out := make([]wire.Datom, 0, len(report.TxData))
	for _, d := range report.TxData {
		out = append(out, wire.Datom{E: d.E, A: d.A, V: d.V, T: d.T, Added: d.Added})
	}
	return out
}
