package outliner

import (
	"context"
	"strings"

	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/graph"
)

func (a *Applier) createPage(ctx context.Context, args map[string]any) (any, error) {
	title, _ := args["title"].(string)
	if title == "" {
		return nil, apperr.Wrap(apperr.Malformed, "create-page", "missing title")
	}
	format, _ := args["format"].(string)
	if format == "" {
		format = "markdown"
	}
	pageType, _ := args["type"].(string)

	now := a.now()
	entity := map[string]any{
		"page/name":       strings.ToLower(title),
		"page/title":      title,
		"page/format":     format,
		"page/created-at": now,
		"page/updated-at": now,
	}
	if pageType != "" {
		entity["page/type"] = pageType
	}
	if props, ok := args["properties"]; ok {
		entity["page/properties"] = props
	}

	report, err := a.g.Transact(ctx, []graph.TxItem{{Entity: entity}})
	if err != nil {
		return nil, err
	}
	id := report.TxData[0].E
	return map[string]any{
		"id":     id,
		"name":   strings.ToLower(title),
		"title":  title,
		"format": format,
	}, nil
}

func (a *Applier) renamePage(ctx context.Context, args map[string]any) (any, error) {
	pageRef := args["page-uuid"]
	newTitle, _ := args["new-title"].(string)
	if newTitle == "" {
		return nil, apperr.Wrap(apperr.Malformed, "rename-page", "missing new-title")
	}
	e, ok := a.resolvePage(pageRef)
	if !ok {
		return nil, apperr.Wrap(apperr.Malformed, "rename-page", "page does not exist")
	}
	_, err := a.g.Transact(ctx, []graph.TxItem{{Entity: map[string]any{
		"db/id":            e,
		"page/name":        strings.ToLower(newTitle),
		"page/title":       newTitle,
		"page/updated-at":  a.now(),
	}}})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": e, "name": strings.ToLower(newTitle), "title": newTitle}, nil
}

func (a *Applier) deletePage(ctx context.Context, args map[string]any) (any, error) {
	pageRef := args["page-uuid"]
	e, ok := a.resolvePage(pageRef)
	if !ok {
		return nil, apperr.Wrap(apperr.Malformed, "delete-page", "page does not exist")
	}

	rows, err := a.g.Datoms(graph.DatomsQuery{Index: graph.IndexVAET, A: "block/page", V: e})
	if err != nil {
		return nil, err
	}
	blocks := map[int64]bool{}
	for _, d := range rows {
		blocks[d.E] = true
	}

	items := make([]graph.TxItem, 0, len(blocks)+1)
	for b := range blocks {
		blk := b
		items = append(items, graph.TxItem{RetractEntity: &blk})
	}
	items = append(items, graph.TxItem{RetractEntity: &e})

	if _, err := a.g.Transact(ctx, items); err != nil {
		return nil, err
	}
	return map[string]any{"id": e, "deleted_blocks": len(blocks)}, nil
}

// batchImport walks a page-tree import payload depth-first (spec §4.5):
// the top-level `blocks` key holds an array of page trees, each with its
// own nested `children`.
func (a *Applier) batchImport(ctx context.Context, args map[string]any) (any, error) {
	data, _ := args["data"].(map[string]any)
	if data == nil {
		data = args
	}
	trees := asSlice(data["blocks"])

	var imported int
	var pages []int64
	for _, raw := range trees {
		tree, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title, _ := tree["title"].(string)
		if title == "" {
			title, _ = tree["name"].(string)
		}
		pageRes, err := a.createPage(ctx, map[string]any{"title": title})
		if err != nil {
			return nil, err
		}
		pageMap := pageRes.(map[string]any)
		pageID := pageMap["id"].(int64)
		pages = append(pages, pageID)

		n, err := a.importChildren(ctx, pageID, pageID, "", asSlice(tree["children"]))
		if err != nil {
			return nil, err
		}
		imported += n
	}
	return map[string]any{"pages": pages, "blocks_imported": imported}, nil
}

func (a *Applier) importChildren(ctx context.Context, page, parent int64, parentOrder string, children []any) (int, error) {
	count := 0
	now := a.now()
	for i, raw := range children {
		child, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		content, _ := child["content"].(string)
		uid, _ := child["uuid"].(string)
		if uid == "" {
			uid = newUUID()
		}
		order := nthChildOrder(parentOrder, i)

		report, err := a.g.Transact(ctx, []graph.TxItem{{Entity: map[string]any{
			"block/uuid":       uid,
			"block/parent":     parent,
			"block/page":       page,
			"block/order":      order,
			"block/content":    content,
			"block/created-at": now,
			"block/updated-at": now,
		}}})
		if err != nil {
			return count, err
		}
		count++
		childID := report.TxData[0].E

		n, err := a.importChildren(ctx, page, childID, order, asSlice(child["children"]))
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// rawTransact is a pass-through transaction with no affected-pages
// tracking (spec §4.5 `transact` op).
func (a *Applier) rawTransact(ctx context.Context, args map[string]any) (any, error) {
	items, _ := args["tx-data"].([]graph.TxItem)
	report, err := a.g.Transact(ctx, items)
	if err != nil {
		return nil, err
	}
	return report, nil
}
