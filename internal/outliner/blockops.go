package outliner

import (
	"context"

	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/graph"
)

func (a *Applier) blockOrder(e int64) string {
	rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexEAVT, E: &e, A: "block/order"})
	if err != nil || len(rows) == 0 {
		return ""
	}
	s, _ := rows[0].V.(string)
	return s
}

func (a *Applier) blockParent(e int64) (int64, bool) {
	rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexEAVT, E: &e, A: "block/parent"})
	if err != nil || len(rows) == 0 {
		return 0, false
	}
	p, ok := rows[0].V.(int64)
	return p, ok
}

// pageForParent resolves the page a new/moved block should point at when
// reparented under e: e's own page if e is a block, or e itself if e is
// a page (the "insert as first child of the page" case).
func (a *Applier) pageForParent(e int64) int64 {
	if pg, ok := a.blockPage(e); ok {
		return pg
	}
	return e
}

func (a *Applier) blockPage(e int64) (int64, bool) {
	rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexEAVT, E: &e, A: "block/page"})
	if err != nil || len(rows) == 0 {
		return 0, false
	}
	p, ok := rows[0].V.(int64)
	return p, ok
}

// siblingsOf returns every block sharing e's parent, sorted by order.
func (a *Applier) siblingsOf(e int64) []orderedEntity {
	parent, hasParent := a.blockParent(e)
	if !hasParent {
		return nil
	}
	rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexVAET, A: "block/parent", V: parent})
	if err != nil {
		return nil
	}
	out := make([]orderedEntity, 0, len(rows))
	for _, d := range rows {
		out = append(out, orderedEntity{E: d.E, Order: a.blockOrder(d.E)})
	}
	sortByOrder(out)
	return out
}

func (a *Applier) childrenOf(parent int64) []orderedEntity {
	rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexVAET, A: "block/parent", V: parent})
	if err != nil {
		return nil
	}
	out := make([]orderedEntity, 0, len(rows))
	for _, d := range rows {
		out = append(out, orderedEntity{E: d.E, Order: a.blockOrder(d.E)})
	}
	sortByOrder(out)
	return out
}

// descendantsOf collects e's entire subtree (children, recursively).
func (a *Applier) descendantsOf(e int64) []int64 {
	var out []int64
	for _, c := range a.childrenOf(e) {
		out = append(out, c.E)
		out = append(out, a.descendantsOf(c.E)...)
	}
	return out
}

func (a *Applier) saveBlock(ctx context.Context, args map[string]any) (any, error) {
	bm, _ := args["block-map"].(map[string]any)
	if bm == nil {
		return nil, apperr.Wrap(apperr.Malformed, "save-block", "missing block-map")
	}

	var e int64
	var ok bool
	if id, has := bm["uuid"]; has {
		e, ok = a.resolveBlock(id)
	} else if id, has := bm["id"]; has {
		e, ok = a.resolveBlock(id)
	}
	if !ok {
		return nil, apperr.Wrap(apperr.Malformed, "save-block", "referenced block does not exist")
	}

	item := graph.TxItem{Entity: map[string]any{"db/id": e}}
	for k, v := range bm {
		if k == "uuid" || k == "id" {
			continue
		}
		item.Entity["block/"+k] = v
	}
	item.Entity["block/updated-at"] = a.now()

	_, err := a.g.Transact(ctx, []graph.TxItem{item})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": e}, nil
}

func (a *Applier) insertBlocks(ctx context.Context, args map[string]any) (any, error) {
	blocks := asSlice(args["blocks"])
	targetRef := args["target"]
	sibling := optBool(args, "sibling?", true)

	targetE, ok := a.resolveBlock(targetRef)
	if !ok {
		return nil, apperr.Wrap(apperr.Malformed, "insert-blocks", "target block does not exist")
	}

	var baseOrder string
	var parent int64
	if sibling {
		p, _ := a.blockParent(targetE)
		parent = p
		baseOrder = a.blockOrder(targetE)
	} else {
		parent = targetE
		baseOrder = firstChildOrder(a.blockOrder(targetE))
	}
	page := a.pageForParent(targetE)

	items := make([]graph.TxItem, 0, len(blocks))
	now := a.now()
	for i, raw := range blocks {
		bm, _ := raw.(map[string]any)
		if bm == nil {
			bm = map[string]any{}
		}
		uid, _ := bm["uuid"].(string)
		if uid == "" {
			uid = newUUID()
		}
		order := baseOrder
		if sibling {
			order = siblingOrderAfter(baseOrder, i+1)
		} else {
			order = nthChildOrder(baseOrder, i)
		}

		entity := map[string]any{
			"block/uuid":       uid,
			"block/parent":     parent,
			"block/page":       page,
			"block/order":      order,
			"block/created-at": now,
			"block/updated-at": now,
		}
		for k, v := range bm {
			if k == "uuid" {
				continue
			}
			entity["block/"+k] = v
		}
		items = append(items, graph.TxItem{Entity: entity})
	}

	report, err := a.g.Transact(ctx, items)
	if err != nil {
		return nil, err
	}
	insertedIDs := make([]int64, 0, len(items))
	seen := map[int64]bool{}
	for _, d := range report.TxData {
		if d.A == "block/uuid" && !seen[d.E] {
			seen[d.E] = true
			insertedIDs = append(insertedIDs, d.E)
		}
	}
	return map[string]any{"ids": insertedIDs}, nil
}

func (a *Applier) deleteBlocks(ctx context.Context, args map[string]any) (any, error) {
	refs := asSlice(args["block-ids"])
	withChildren := optBool(args, "children?", true)

	toDelete := map[int64]bool{}
	for _, ref := range refs {
		e, ok := a.resolveBlock(ref)
		if !ok {
			continue
		}
		toDelete[e] = true
		if withChildren {
			for _, d := range a.descendantsOf(e) {
				toDelete[d] = true
			}
		}
	}

	items := make([]graph.TxItem, 0, len(toDelete))
	for e := range toDelete {
		ent := e
		items = append(items, graph.TxItem{RetractEntity: &ent})
	}
	if _, err := a.g.Transact(ctx, items); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": len(toDelete)}, nil
}

func (a *Applier) moveBlocks(ctx context.Context, args map[string]any) (any, error) {
	refs := asSlice(args["block-ids"])
	targetE, ok := a.resolveBlock(args["target"])
	if !ok {
		return nil, apperr.Wrap(apperr.Malformed, "move-blocks", "target block does not exist")
	}
	sibling := optBool(args, "sibling?", true)

	var newParent int64
	var baseOrder string
	if sibling {
		p, _ := a.blockParent(targetE)
		newParent = p
		baseOrder = a.blockOrder(targetE)
	} else {
		newParent = targetE
		baseOrder = firstChildOrder(a.blockOrder(targetE))
	}
	page := a.pageForParent(targetE)

	items := make([]graph.TxItem, 0, len(refs))
	for i, ref := range refs {
		e, ok := a.resolveBlock(ref)
		if !ok {
			continue
		}
		order := baseOrder
		if sibling {
			order = siblingOrderAfter(baseOrder, i+1)
		} else {
			order = nthChildOrder(baseOrder, i)
		}
		items = append(items, graph.TxItem{Entity: map[string]any{
			"db/id":        e,
			"block/parent": newParent,
			"block/page":   page,
			"block/order":  order,
		}})
	}
	if _, err := a.g.Transact(ctx, items); err != nil {
		return nil, err
	}
	return map[string]any{"moved": len(items)}, nil
}

func (a *Applier) moveBlocksUpDown(ctx context.Context, args map[string]any) (any, error) {
	refs := asSlice(args["block-ids"])
	up := optBool(args, "up?", true)

	items := make([]graph.TxItem, 0, len(refs)*2)
	for _, ref := range refs {
		e, ok := a.resolveBlock(ref)
		if !ok {
			continue
		}
		siblings := a.siblingsOf(e)
		idx := -1
		for i, s := range siblings {
			if s.E == e {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		var swapIdx int
		if up {
			swapIdx = idx - 1
		} else {
			swapIdx = idx + 1
		}
		if swapIdx < 0 || swapIdx >= len(siblings) {
			continue // no-op at edges
		}
		a_, b_ := siblings[idx], siblings[swapIdx]
		items = append(items,
			graph.TxItem{Entity: map[string]any{"db/id": a_.E, "block/order": b_.Order}},
			graph.TxItem{Entity: map[string]any{"db/id": b_.E, "block/order": a_.Order}},
		)
	}
	if _, err := a.g.Transact(ctx, items); err != nil {
		return nil, err
	}
	return map[string]any{"swapped": len(items) / 2}, nil
}

func (a *Applier) indentOutdentBlocks(ctx context.Context, args map[string]any) (any, error) {
	refs := asSlice(args["block-ids"])
	indent := optBool(args, "indent?", true)

	items := make([]graph.TxItem, 0, len(refs))
	for _, ref := range refs {
		e, ok := a.resolveBlock(ref)
		if !ok {
			continue
		}
		if indent {
			siblings := a.siblingsOf(e)
			idx := -1
			for i, s := range siblings {
				if s.E == e {
					idx = i
					break
				}
			}
			if idx <= 0 {
				continue // no previous sibling: no-op
			}
			prev := siblings[idx-1]
			items = append(items, graph.TxItem{Entity: map[string]any{
				"db/id":        e,
				"block/parent": prev.E,
				"block/order":  lastChildOrder(a.blockOrder(prev.E)),
			}})
		} else {
			parent, hasParent := a.blockParent(e)
			if !hasParent {
				continue
			}
			grandparent, hasGrandparent := a.blockParent(parent)
			if !hasGrandparent {
				continue // at root: no-op
			}
			items = append(items, graph.TxItem{Entity: map[string]any{
				"db/id":        e,
				"block/parent": grandparent,
				"block/order":  lastChildOrder(a.blockOrder(grandparent)),
			}})
		}
	}
	if _, err := a.g.Transact(ctx, items); err != nil {
		return nil, err
	}
	return map[string]any{"changed": len(items)}, nil
}

func optBool(args map[string]any, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
