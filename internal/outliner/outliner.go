// Package outliner implements the tree-operation applier of spec §4.5:
// a fixed catalogue of block/page operations run against a graph.Graph,
// each committing before the next starts, with affected-page tracking
// for the caller's file-writeback step.
package outliner

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/graph"
)

// Op is one (op-keyword, args) pair from an apply_ops batch.
type Op struct {
	Kind string
	Args map[string]any
}

// Result is apply_ops' return value: the per-op results plus the total
// set of pages touched across the whole batch.
type Result struct {
	Results       []any
	AffectedPages []int64
}

// Applier runs outliner operations against one graph.
type Applier struct {
	g   *graph.Graph
	now func() int64
}

// New builds an Applier. now supplies millisecond timestamps for
// created-at/updated-at bookkeeping; tests can inject a fixed clock.
func New(g *graph.Graph, now func() int64) *Applier {
	return &Applier{g: g, now: now}
}

// Apply runs ops in order; the whole batch aborts with the failing op's
// index on the first error (spec §4.5).
func (a *Applier) Apply(ctx context.Context, ops []Op) (Result, error) {
	affected := map[int64]bool{}
	results := make([]any, 0, len(ops))

	for i, op := range ops {
		before := a.pagesOf(op.Args)
		res, err := a.applyOne(ctx, op)
		if err != nil {
			return Result{}, fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
		for p := range before {
			affected[p] = true
		}
		for _, p := range a.pagesTouchedByResult(res) {
			affected[p] = true
		}
		results = append(results, res)
	}

	pages := make([]int64, 0, len(affected))
	for p := range affected {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })

	return Result{Results: results, AffectedPages: pages}, nil
}

func (a *Applier) applyOne(ctx context.Context, op Op) (any, error) {
	switch op.Kind {
	case "save-block":
		return a.saveBlock(ctx, op.Args)
	case "insert-blocks":
		return a.insertBlocks(ctx, op.Args)
	case "delete-blocks":
		return a.deleteBlocks(ctx, op.Args)
	case "move-blocks":
		return a.moveBlocks(ctx, op.Args)
	case "move-blocks-up-down":
		return a.moveBlocksUpDown(ctx, op.Args)
	case "indent-outdent-blocks":
		return a.indentOutdentBlocks(ctx, op.Args)
	case "create-page":
		return a.createPage(ctx, op.Args)
	case "rename-page":
		return a.renamePage(ctx, op.Args)
	case "delete-page":
		return a.deletePage(ctx, op.Args)
	case "batch-import-edn":
		return a.batchImport(ctx, op.Args)
	case "transact":
		return a.rawTransact(ctx, op.Args)
	default:
		return nil, apperr.UnknownOpf(op.Kind)
	}
}

// pageOf walks block -> page for a single block uuid/id.
func (a *Applier) pageOf(ref any) (int64, bool) {
	e, ok := a.resolveBlock(ref)
	if !ok {
		return 0, false
	}
	v, ok := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexEAVT, E: &e, A: "block/page"})
	if ok != nil || len(v) == 0 {
		return 0, false
	}
	pid, ok := v[0].V.(int64)
	return pid, ok
}

func (a *Applier) pagesOf(args map[string]any) map[int64]bool {
	out := map[int64]bool{}
	for _, key := range []string{"block-ids", "block-id"} {
		refs := asSlice(args[key])
		for _, r := range refs {
			if p, ok := a.pageOf(r); ok {
				out[p] = true
			}
		}
	}
	if bm, ok := args["block-map"].(map[string]any); ok {
		if id, ok := bm["uuid"]; ok {
			if p, ok := a.pageOf(id); ok {
				out[p] = true
			}
		}
	}
	if target, ok := args["target"]; ok {
		if e, ok := a.resolveBlock(target); ok {
			out[a.pageForParent(e)] = true
		}
	}
	return out
}

func (a *Applier) pagesTouchedByResult(res any) []int64 {
	m, ok := res.(map[string]any)
	if !ok {
		return nil
	}
	if pages, ok := m["pages"].([]int64); ok {
		return pages
	}
	if id, ok := m["id"].(int64); ok {
		_, isPage := m["name"]
		_, isDeletedPage := m["deleted_blocks"]
		if isPage || isDeletedPage {
			return []int64{id}
		}
	}
	return nil
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// resolveBlock resolves a uuid string or raw entity id to an entity id.
func (a *Applier) resolveBlock(ref any) (int64, bool) {
	switch t := ref.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexAVET, A: "block/uuid", V: t})
		if err != nil || len(rows) == 0 {
			return 0, false
		}
		return rows[0].E, true
	default:
		return 0, false
	}
}

func (a *Applier) resolvePage(ref any) (int64, bool) {
	switch t := ref.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexAVET, A: "page/name", V: t})
		if err == nil && len(rows) > 0 {
			return rows[0].E, true
		}
		rows, err = a.g.Datoms(graph.DatomsQuery{Index: graph.IndexAVET, A: "block/uuid", V: t})
		if err == nil && len(rows) > 0 {
			return rows[0].E, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func newUUID() string { return uuid.NewString() }
