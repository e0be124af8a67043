// Package export implements the core's only structured output for the
// file layer (spec §4.8): rendering pages to trees, and composing the
// write-back paths an external renderer turns into file content.
package export

import (
	"fmt"
	"sort"

	"github.com/kittclouds/graphcore/internal/graph"
)

// pageAttrs are the page entity's stable attributes carried into every
// tree (spec §4.8).
var pageAttrs = []string{
	"page/name", "page/title", "page/type", "page/format",
	"page/properties", "page/journal-day", "page/created-at", "page/updated-at",
}

// blockAttrs are carried into every block node of a tree.
var blockAttrs = []string{
	"block/content", "block/title", "block/properties", "block/order",
	"block/collapsed?", "block/marker", "block/priority",
	"block/scheduled", "block/deadline", "block/created-at", "block/updated-at",
}

// Tree is one page's exported tree (spec §4.8's page-tree shape).
type Tree struct {
	UUID     string         `json:"uuid"`
	Name     string         `json:"name,omitempty"`
	Title    any            `json:"title,omitempty"`
	Type     any            `json:"type,omitempty"`
	Format   any            `json:"format,omitempty"`
	Properties any          `json:"properties,omitempty"`
	JournalDay any          `json:"journal-day,omitempty"`
	CreatedAt  any          `json:"created-at,omitempty"`
	UpdatedAt  any          `json:"updated-at,omitempty"`
	Children []*BlockNode   `json:"children"`
	pageID   int64
}

// BlockNode is one block in an exported tree.
type BlockNode struct {
	UUID       string       `json:"uuid"`
	Content    any          `json:"content,omitempty"`
	Title      any          `json:"title,omitempty"`
	Properties any          `json:"properties,omitempty"`
	Order      string       `json:"order"`
	Collapsed  any          `json:"collapsed?,omitempty"`
	Marker     any          `json:"marker,omitempty"`
	Priority   any          `json:"priority,omitempty"`
	Scheduled  any          `json:"scheduled,omitempty"`
	Deadline   any          `json:"deadline,omitempty"`
	CreatedAt  any          `json:"created-at,omitempty"`
	UpdatedAt  any          `json:"updated-at,omitempty"`
	Children   []*BlockNode `json:"children"`
	entity     int64
}

// GetPageTrees builds a page tree per requested id. Ids that do not
// resolve to a page entity (one with a page/name attribute; block/uuid
// is optional) are silently skipped (spec §4.8: "Skip any id that does not exist").
func GetPageTrees(g *graph.Graph, pageIDs []int64) ([]*Tree, error) {
	trees := make([]*Tree, 0, len(pageIDs))
	for _, id := range pageIDs {
		tree, ok, err := pageTree(g, id)
		if err != nil {
			return nil, err
		}
		if ok {
			trees = append(trees, tree)
		}
	}
	return trees, nil
}

func pageTree(g *graph.Graph, pageID int64) (*Tree, bool, error) {
	uuid, ok, err := firstValue(g, pageID, "block/uuid")
	if err != nil {
		return nil, false, err
	}
	if !ok {
		uuid = fmt.Sprintf("page-%d", pageID)
	}
	name, hasName, err := firstValue(g, pageID, "page/name")
	if err != nil {
		return nil, false, err
	}
	if !hasName {
		return nil, false, nil
	}

	tree := &Tree{UUID: asString(uuid), Name: asString(name), pageID: pageID}
	for _, attr := range pageAttrs[1:] {
		v, found, err := firstValue(g, pageID, attr)
		if err != nil {
			return nil, false, err
		}
		if found {
			assignTreeAttr(tree, attr, v)
		}
	}

	children, err := childBlocks(g, pageID)
	if err != nil {
		return nil, false, err
	}
	tree.Children = children
	return tree, true, nil
}

func assignTreeAttr(t *Tree, attr string, v any) {
	switch attr {
	case "page/title":
		t.Title = v
	case "page/type":
		t.Type = v
	case "page/format":
		t.Format = v
	case "page/properties":
		t.Properties = v
	case "page/journal-day":
		t.JournalDay = v
	case "page/created-at":
		t.CreatedAt = v
	case "page/updated-at":
		t.UpdatedAt = v
	}
}

func assignBlockAttr(n *BlockNode, attr string, v any) {
	switch attr {
	case "block/content":
		n.Content = v
	case "block/title":
		n.Title = v
	case "block/properties":
		n.Properties = v
	case "block/collapsed?":
		n.Collapsed = v
	case "block/marker":
		n.Marker = v
	case "block/priority":
		n.Priority = v
	case "block/scheduled":
		n.Scheduled = v
	case "block/deadline":
		n.Deadline = v
	case "block/created-at":
		n.CreatedAt = v
	case "block/updated-at":
		n.UpdatedAt = v
	}
}

func childBlocks(g *graph.Graph, parent int64) ([]*BlockNode, error) {
	rows, err := g.Datoms(graph.DatomsQuery{Index: graph.IndexVAET, A: "block/parent", V: parent})
	if err != nil {
		return nil, err
	}
	nodes := make([]*BlockNode, 0, len(rows))
	for _, d := range rows {
		node, err := buildNode(g, d.E)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Order < nodes[j].Order })
	return nodes, nil
}

func buildNode(g *graph.Graph, e int64) (*BlockNode, error) {
	uuid, _, err := firstValue(g, e, "block/uuid")
	if err != nil {
		return nil, err
	}
	order, _, err := firstValue(g, e, "block/order")
	if err != nil {
		return nil, err
	}
	node := &BlockNode{UUID: asString(uuid), Order: asString(order), entity: e}
	for _, attr := range blockAttrs {
		if attr == "block/order" {
			continue
		}
		v, found, err := firstValue(g, e, attr)
		if err != nil {
			return nil, err
		}
		if found {
			assignBlockAttr(node, attr, v)
		}
	}
	children, err := childBlocks(g, e)
	if err != nil {
		return nil, err
	}
	node.Children = children
	return node, nil
}

func firstValue(g *graph.Graph, e int64, attr string) (any, bool, error) {
	rows, err := g.Datoms(graph.DatomsQuery{Index: graph.IndexEAVT, E: &e, A: attr})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0].V, true, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Renderer turns one exported tree into the target text format. The
// renderer is an external collaborator (spec §4.8): graphcore has no
// opinion on markdown/org/whatever syntax, only on the tree shape and
// the write-back path.
type Renderer func(tree *Tree, format string, opts map[string]any) (string, error)

// FileWrite is one (path, content) pair get-file-writes produces.
type FileWrite struct {
	Path    string
	Content string
}

// GetFileWrites renders every requested page's tree and composes its
// write-back path from opts["graph-dir"] plus the page's canonical name
// (spec §4.8). Actual I/O happens outside the core.
func GetFileWrites(g *graph.Graph, pageIDs []int64, format string, opts map[string]any, render Renderer) ([]FileWrite, error) {
	trees, err := GetPageTrees(g, pageIDs)
	if err != nil {
		return nil, err
	}
	dir, _ := opts["graph-dir"].(string)
	ext, _ := opts["ext"].(string)
	if ext == "" {
		ext = format
	}

	out := make([]FileWrite, 0, len(trees))
	for _, tree := range trees {
		content, err := render(tree, format, opts)
		if err != nil {
			return nil, fmt.Errorf("render page %q: %w", tree.Name, err)
		}
		path := tree.Name + "." + ext
		if dir != "" {
			path = dir + "/" + path
		}
		out = append(out, FileWrite{Path: path, Content: content})
	}
	return out, nil
}
