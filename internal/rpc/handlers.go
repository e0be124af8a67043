package rpc

import (
	"context"
	"strings"

	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/export"
	"github.com/kittclouds/graphcore/internal/graph"
	"github.com/kittclouds/graphcore/internal/outliner"
	"github.com/kittclouds/graphcore/internal/syncengine"
	"github.com/kittclouds/graphcore/internal/vecstub"
	"github.com/kittclouds/graphcore/internal/wire"
)

// catalogue builds the full op -> handler map (spec §4.7's table).
func (d *Dispatcher) catalogue() map[string]handlerFunc {
	return map[string]handlerFunc{
		"thread-api/q":                   handleQuery,
		"thread-api/pull":                handlePull,
		"thread-api/pull-many":           handlePullMany,
		"thread-api/datoms":              handleDatoms,
		"thread-api/transact":            handleTransact,
		"thread-api/apply-outliner-ops":  handleApplyOutlinerOps,
		"thread-api/sync-datoms":         handleSyncDatoms,
		"thread-api/create-or-open-db":   handleCreateOrOpenDB,
		"thread-api/db-exists":           handleDBExists,
		"thread-api/list-db":             handleListDB,
		"thread-api/get-initial-data":    handleGetInitialData,
		"thread-api/get-view-data":       handleGetViewData,
		"thread-api/delete-page":         handleDeletePage,
		"thread-api/get-page-trees":      handleGetPageTrees,
		"thread-api/get-file-writes":     handleGetFileWrites,
		"thread-api/sync-app-state":      handleSyncAppState,
		"thread-api/set-context":         handleSetContext,
		"thread-api/update-thread-atom":  handleUpdateThreadAtom,
		"thread-api/init":                handleInit,
		"thread-api/write-log":           handleWriteLog,
		"thread-api/extract-and-transact": handleExtractAndTransact,
		"thread-api/rtc-offer":           handleVecOrRTCStub,
		"thread-api/rtc-answer":          handleVecOrRTCStub,
		"thread-api/vec-search":          handleVecOrRTCStub,
		"thread-api/mobile-sync":         handleVecOrRTCStub,
		"thread-api/import-db":           handleVecOrRTCStub,
	}
}

func (d *Dispatcher) graphOrErr(graphID string) (*graph.Graph, error) {
	return d.Registry.Get(graphID)
}

func handleQuery(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	qm, ok := payload["query"].(map[string]any)
	if !ok {
		return nil, apperr.Wrap(apperr.Malformed, "q", "missing query map")
	}
	q, err := graph.ParseQuery(qm)
	if err != nil {
		return nil, err
	}
	inputs, _ := payload["inputs"].([]any)
	rows, err := g.Query(q, inputs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rows": rows}, nil
}

func handlePull(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	selRaw, _ := payload["selector"].([]any)
	sel, err := graph.ParseSelector(selRaw)
	if err != nil {
		return nil, err
	}
	eid := payload["eid"]
	if ref, ok := eid.([]any); ok && len(ref) == 2 {
		eid = graph.LookupRef{A: keywordString(ref[0]), V: ref[1]}
	}
	result, err := g.Pull(sel, eid)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func handlePullMany(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	selRaw, _ := payload["selector"].([]any)
	sel, err := graph.ParseSelector(selRaw)
	if err != nil {
		return nil, err
	}
	eids, _ := payload["eids"].([]any)
	result, err := g.PullMany(sel, eids)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func handleDatoms(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	q := graph.DatomsQuery{Index: graph.Index(keywordString(payload["index"]))}
	if a := keywordString(payload["a"]); a != "" {
		q.A = a
	}
	if e, ok := payload["e"]; ok {
		if id, ok := asEntityID(e); ok {
			q.E = &id
		}
	}
	if v, ok := payload["v"]; ok {
		q.V = v
	}
	rows, err := g.Datoms(q)
	if err != nil {
		return nil, err
	}
	out := make([][]any, 0, len(rows))
	for _, dm := range rows {
		out = append(out, []any{dm.E, dm.A, dm.V, dm.T, dm.Added})
	}
	return map[string]any{"datoms": out}, nil
}

func asEntityID(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

func handleTransact(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	txRaw, _ := payload["tx-data"].([]any)
	items, err := graph.ParseTxData(txRaw)
	if err != nil {
		return nil, err
	}
	report, err := g.Transact(ctx, items)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tempids": report.TempIDs, "tx": report.Tx}, nil
}

func handleApplyOutlinerOps(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	opsRaw, _ := payload["ops"].([]any)
	ops := make([]outliner.Op, 0, len(opsRaw))
	for _, raw := range opsRaw {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return nil, apperr.Wrap(apperr.Malformed, "apply-outliner-ops", "each op must be [op-keyword, args]")
		}
		args, _ := pair[1].(map[string]any)
		ops = append(ops, outliner.Op{Kind: opSuffix(keywordString(pair[0])), Args: args})
	}
	applier := outliner.New(g, d.Now)
	result, err := applier.Apply(ctx, ops)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": result.Results, "affected-pages": result.AffectedPages}, nil
}

// opSuffix strips a leading namespace from a coerced op keyword so
// "outliner/save-block" and "save-block" both resolve the same way.
func opSuffix(op string) string {
	if i := strings.LastIndexByte(op, '/'); i >= 0 {
		return op[i+1:]
	}
	return op
}

func handleSyncDatoms(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	raw, _ := payload["datoms"].([]any)
	datoms := make([]wire.Datom, 0, len(raw))
	for _, entry := range raw {
		tuple, ok := entry.([]any)
		if !ok || len(tuple) != 5 {
			return nil, apperr.Wrap(apperr.Malformed, "sync-datoms", "each datom must be a 5-tuple")
		}
		e, _ := asEntityID(tuple[0])
		a := keywordString(tuple[1])
		tx, _ := asEntityID(tuple[3])
		added, _ := tuple[4].(bool)
		datoms = append(datoms, wire.Datom{E: e, A: a, V: tuple[2], T: tx, Added: added})
	}
	fullSync, _ := payload["full-sync?"].(bool)
	engine := syncengine.New(g, d.Now)
	result, err := engine.SyncDatoms(ctx, datoms, fullSync)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": result.Count, "elapsed-ms": result.ElapsedMs}, nil
}

func handleCreateOrOpenDB(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	if graphID == "" {
		return nil, apperr.Wrap(apperr.Malformed, "create-or-open-db", "missing graph-id")
	}
	opts := graph.Options{}
	if path, ok := payload["storage-path"].(string); ok && path != "" {
		opts.StoragePath = path
	} else if d.DataDir != "" {
		opts.StoragePath = d.DataDir + "/" + graphID + ".db"
	}
	_, err := d.Registry.CreateOrOpen(ctx, graphID, opts)
	if err != nil {
		return nil, err
	}
	return map[string]any{"graph-id": graphID}, nil
}

func handleDBExists(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	return map[string]any{"exists": d.Registry.Exists(graphID)}, nil
}

func handleListDB(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	names := d.Registry.List()
	out := make([]map[string]any, 0, len(names))
	var opCounts map[string]int64
	if d.Metrics != nil {
		opCounts = d.Metrics.Snapshot()
	}
	for _, name := range names {
		out = append(out, map[string]any{
			"name":     name,
			"metadata": map[string]any{"op-counts": opCounts},
		})
	}
	return out, nil
}

func handleGetInitialData(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	fileGraphImport, _ := payload["file-graph-import?"].(bool)
	q := graph.DatomsQuery{Index: graph.IndexEAVT}
	if !fileGraphImport {
		q.A = "page/name"
	}
	rows, err := g.Datoms(q)
	if err != nil {
		return nil, err
	}
	if !fileGraphImport {
		var pageRows []graph.Datom
		for _, pr := range rows {
			e := pr.E
			ds, err := g.Datoms(graph.DatomsQuery{Index: graph.IndexEAVT, E: &e})
			if err != nil {
				return nil, err
			}
			pageRows = append(pageRows, ds...)
		}
		rows = pageRows
	}
	out := make([][]any, 0, len(rows))
	for _, dm := range rows {
		out = append(out, []any{dm.E, dm.A, dm.V, dm.T, dm.Added})
	}
	return map[string]any{"datoms": out}, nil
}

func handleGetViewData(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	journals, _ := payload["journals?"].(bool)
	if !journals {
		return nil, nil
	}
	today, _ := payload["today"].(float64)
	rows, err := g.Datoms(graph.DatomsQuery{Index: graph.IndexAEVT, A: "page/journal-day"})
	if err != nil {
		return nil, err
	}
	var ids []idDay
	for _, dm := range rows {
		day, ok := toFloat(dm.V)
		if ok && day <= today {
			ids = append(ids, idDay{dm.E, day})
		}
	}
	sortDesc(ids)
	out := make([]int64, len(ids))
	for i, x := range ids {
		out[i] = x.id
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// idDay pairs an entity with its journal-day value for sortDesc.
type idDay struct {
	id  int64
	day float64
}

func sortDesc(ids []idDay) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1].day < ids[j].day; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func handleDeletePage(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	name, _ := payload["name"].(string)
	name = strings.ToLower(name)
	rows, err := g.Datoms(graph.DatomsQuery{Index: graph.IndexAVET, A: "page/name", V: name})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]any{"deleted": false}, nil
	}
	applier := outliner.New(g, d.Now)
	_, err = applier.Apply(ctx, []outliner.Op{{Kind: "delete-page", Args: map[string]any{"page-uuid": rows[0].E}}})
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true}, nil
}

func handleGetPageTrees(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	ids := asInt64Slice(payload["page-ids"])
	trees, err := export.GetPageTrees(g, ids)
	if err != nil {
		return nil, err
	}
	return trees, nil
}

func handleGetFileWrites(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	ids := asInt64Slice(payload["page-ids"])
	format, _ := payload["format"].(string)
	opts, _ := payload["opts"].(map[string]any)
	writes, err := export.GetFileWrites(g, ids, format, opts, identityRenderer)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(writes))
	for _, w := range writes {
		out = append(out, map[string]any{"path": w.Path, "content": w.Content})
	}
	return out, nil
}

// identityRenderer is the default renderer until a real text-format
// backend is wired in: it emits a flat newline-joined dump of each
// block's content, depth-first, so get-file-writes has a concrete,
// schema-correct string to hand back.
func identityRenderer(tree *export.Tree, format string, opts map[string]any) (string, error) {
	var b strings.Builder
	var walk func(nodes []*export.BlockNode, depth int)
	walk = func(nodes []*export.BlockNode, depth int) {
		for _, n := range nodes {
			b.WriteString(strings.Repeat("  ", depth))
			if s, ok := n.Content.(string); ok {
				b.WriteString(s)
			}
			b.WriteByte('\n')
			walk(n.Children, depth+1)
		}
	}
	walk(tree.Children, 0)
	return b.String(), nil
}

func asInt64Slice(v any) []int64 {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, e := range raw {
		if id, ok := asEntityID(e); ok {
			out = append(out, id)
		}
	}
	return out
}

func handleSyncAppState(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	patch, _ := payload["patch"].(map[string]any)
	return d.Registry.State.MergeAppState(patch), nil
}

func handleSetContext(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	patch, _ := payload["patch"].(map[string]any)
	return d.Registry.State.SetContext(patch), nil
}

func handleUpdateThreadAtom(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	key := keywordString(payload["key"])
	if err := d.Registry.State.UpdateThreadAtom(key, payload["value"]); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func handleInit(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	patch, _ := payload["app-state"].(map[string]any)
	if url, ok := payload["rtc-ws-url"].(string); ok {
		d.Registry.State.SetRTCWSURL(url)
	}
	return d.Registry.State.MergeAppState(patch), nil
}

func handleWriteLog(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	level, _ := payload["level"].(string)
	msg, _ := payload["message"].(string)
	ev := d.Log.Info()
	switch level {
	case "warn":
		ev = d.Log.Warn()
	case "error":
		ev = d.Log.Error()
	case "debug":
		ev = d.Log.Debug()
	}
	ev.Str("source", "write-log").Msg(msg)
	return map[string]any{"ok": true}, nil
}

func handleExtractAndTransact(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	g, err := d.graphOrErr(graphID)
	if err != nil {
		return nil, err
	}
	astRaw, _ := payload["ast"].([]any)
	items, pageCount, blockCount, err := extractTxItems(astRaw)
	if err != nil {
		return nil, err
	}
	if _, err := g.Transact(ctx, items); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "page-count": pageCount, "block-count": blockCount}, nil
}

// extractTxItems converts a parser-produced AST (a flat list of page and
// block entity maps) into tx-data, counting each by whether it carries
// page/name. Real AST shapes come from the writer's own parser; this is
// the minimal contract the dispatcher needs to stay decoupled from it.
func extractTxItems(ast []any) ([]graph.TxItem, int, int, error) {
	items := make([]graph.TxItem, 0, len(ast))
	var pages, blocks int
	for _, node := range ast {
		m, ok := node.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, graph.TxItem{Entity: m})
		if _, isPage := m["page/name"]; isPage {
			pages++
		} else {
			blocks++
		}
	}
	return items, pages, blocks, nil
}

func handleVecOrRTCStub(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error) {
	return vecstub.Search(payload)
}
