// Package graph implements the per-graph EAV datom store: schema,
// indices, transactions, entity resolution, pull, and datalog-style
// query (spec §4.3).
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/kittclouds/graphcore/internal/graph/cache"
	"github.com/kittclouds/graphcore/internal/storage"
)

// Options configure a graph at create-or-open time (spec §3 Lifecycles).
type Options struct {
	StoragePath string
	RefType     cache.RefType
	Schema      Schema
	CacheSize   int
}

// Graph is one named in-memory triple-store with its attached schema.
type Graph struct {
	mu sync.RWMutex

	schema Schema

	// eav / ae mirror every current datom along two axes; eav is keyed
	// E -> A -> valueKey -> Datom, ae is keyed A -> E -> valueKey -> Datom.
	eav map[int64]map[string]map[any]Datom
	ae  map[string]map[int64]map[any]Datom

	// avet / vaet are populated only for indexed/unique/ref attributes
	// (spec §4.3.1).
	avet map[string]map[any][]int64
	vaet map[int64]map[string][]int64

	nextEntity int64
	nextTx     int64

	backend storage.Backend
	cache   *cache.NodeCache
	dirty   map[string]bool // attributes touched since last flush
}

// Open creates or reopens a graph per the given options.
func Open(ctx context.Context, opts Options) (*Graph, error) {
	schema := opts.Schema
	if schema == nil {
		schema = DefaultSchema()
	}
	refType := opts.RefType
	if refType == "" {
		refType = cache.Soft
	}

	g := &Graph{
		schema:     schema,
		eav:        make(map[int64]map[string]map[any]Datom),
		ae:         make(map[string]map[int64]map[any]Datom),
		avet:       make(map[string]map[any][]int64),
		vaet:       make(map[int64]map[string][]int64),
		nextEntity: 1,
		nextTx:     1,
		dirty:      make(map[string]bool),
	}

	if opts.StoragePath != "" {
		backend, err := storage.Open(opts.StoragePath)
		if err != nil {
			return nil, err
		}
		g.backend = backend
		nc, err := cache.New(refType, backend, opts.CacheSize)
		if err != nil {
			backend.Close()
			return nil, err
		}
		g.cache = nc
		if err := g.hydrate(ctx); err != nil {
			backend.Close()
			return nil, err
		}
	}

	return g, nil
}

// Close releases the graph's backing storage, if any.
func (g *Graph) Close() error {
	if g.backend != nil {
		return g.backend.Close()
	}
	return nil
}

// Schema returns the graph's attribute schema.
func (g *Graph) Schema() Schema { return g.schema }

// page, a stable per-attribute storage address, approximating the "tree
// node" granularity spec §4.3.2 describes: one page per attribute rather
// than one page per B-tree node, which keeps the soft-reference cache
// genuinely exercised without building a full paged index structure.
func attrAddress(attr string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(attr))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

type attrPage struct {
	Attr   string  `json:"attr"`
	Datoms []Datom `json:"datoms"`
}

func (g *Graph) hydrate(ctx context.Context) error {
	addrs, err := g.backend.ListAddresses(ctx)
	if err != nil {
		return err
	}
	maxE, maxT := int64(0), int64(0)
	for _, addr := range addrs {
		data, ok, err := g.cache.Get(ctx, addr)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		var page attrPage
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("storage/backend-error: corrupt page at %d: %w", addr, err)
		}
		for _, d := range page.Datoms {
			g.indexAssert(d)
			if d.E > maxE {
				maxE = d.E
			}
			if d.T > maxT {
				maxT = d.T
			}
		}
	}
	if maxE > 0 {
		g.nextEntity = maxE + 1
	}
	if maxT > 0 {
		g.nextTx = maxT + 1
	}
	return nil
}

// flush persists every attribute page touched since the last flush.
func (g *Graph) flush(ctx context.Context) error {
	if g.cache == nil || len(g.dirty) == 0 {
		return nil
	}
	for attr := range g.dirty {
		page := attrPage{Attr: attr, Datoms: g.currentDatomsForAttr(attr)}
		data, err := json.Marshal(page)
		if err != nil {
			return fmt.Errorf("storage/backend-error: %w", err)
		}
		g.cache.Put(attrAddress(attr), data)
	}
	if err := g.cache.Flush(ctx); err != nil {
		return err
	}
	g.dirty = make(map[string]bool)
	return nil
}

func (g *Graph) currentDatomsForAttr(attr string) []Datom {
	byE := g.ae[attr]
	out := make([]Datom, 0, len(byE))
	for _, byV := range byE {
		for _, d := range byV {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].E != out[j].E {
			return out[i].E < out[j].E
		}
		return fmt.Sprint(out[i].V) < fmt.Sprint(out[j].V)
	})
	return out
}

// valueKey canonicalises a value for use as a Go map key.
func valueKey(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float64:
		if t == float64(int64(t)) {
			return t // keep floats distinct from ints unless caller normalised already
		}
		return t
	default:
		return v
	}
}

func (g *Graph) indexAssert(d Datom) {
	if g.eav[d.E] == nil {
		g.eav[d.E] = make(map[string]map[any]Datom)
	}
	if g.eav[d.E][d.A] == nil {
		g.eav[d.E][d.A] = make(map[any]Datom)
	}
	g.eav[d.E][d.A][valueKey(d.V)] = d

	if g.ae[d.A] == nil {
		g.ae[d.A] = make(map[int64]map[any]Datom)
	}
	if g.ae[d.A][d.E] == nil {
		g.ae[d.A][d.E] = make(map[any]Datom)
	}
	g.ae[d.A][d.E][valueKey(d.V)] = d

	spec := g.schema[d.A]
	if g.schema.indexed(d.A) {
		if g.avet[d.A] == nil {
			g.avet[d.A] = make(map[any][]int64)
		}
		g.avet[d.A][valueKey(d.V)] = appendUnique(g.avet[d.A][valueKey(d.V)], d.E)
	}
	if spec.ValueRef {
		if target, ok := asEntityID(d.V); ok {
			if g.vaet[target] == nil {
				g.vaet[target] = make(map[string][]int64)
			}
			g.vaet[target][d.A] = appendUnique(g.vaet[target][d.A], d.E)
		}
	}

	g.dirty[d.A] = true
}

func (g *Graph) indexRetract(d Datom) {
	if byA, ok := g.eav[d.E]; ok {
		if byV, ok := byA[d.A]; ok {
			delete(byV, valueKey(d.V))
			if len(byV) == 0 {
				delete(byA, d.A)
			}
		}
		if len(byA) == 0 {
			delete(g.eav, d.E)
		}
	}
	if byE, ok := g.ae[d.A]; ok {
		if byV, ok := byE[d.E]; ok {
			delete(byV, valueKey(d.V))
			if len(byV) == 0 {
				delete(byE, d.E)
			}
		}
	}
	spec := g.schema[d.A]
	if g.schema.indexed(d.A) {
		if byV, ok := g.avet[d.A]; ok {
			byV[valueKey(d.V)] = removeValue(byV[valueKey(d.V)], d.E)
			if len(byV[valueKey(d.V)]) == 0 {
				delete(byV, valueKey(d.V))
			}
		}
	}
	if spec.ValueRef {
		if target, ok := asEntityID(d.V); ok {
			if byA, ok := g.vaet[target]; ok {
				byA[d.A] = removeValue(byA[d.A], d.E)
				if len(byA[d.A]) == 0 {
					delete(byA, d.A)
				}
			}
		}
	}
	g.dirty[d.A] = true
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

func appendUnique(s []int64, v int64) []int64 {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

func removeValue(s []int64, v int64) []int64 {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// currentValue returns the current datom for (E, A, V), if asserted.
func (g *Graph) currentValue(e int64, a string, v any) (Datom, bool) {
	byA, ok := g.eav[e]
	if !ok {
		return Datom{}, false
	}
	byV, ok := byA[a]
	if !ok {
		return Datom{}, false
	}
	d, ok := byV[valueKey(v)]
	return d, ok
}

// currentValues returns every current (A, V) datom for entity e.
func (g *Graph) currentValues(e int64) []Datom {
	byA, ok := g.eav[e]
	if !ok {
		return nil
	}
	var out []Datom
	for _, byV := range byA {
		for _, d := range byV {
			out = append(out, d)
		}
	}
	return out
}

// resolveByLookupRef resolves a unique-attribute lookup ref to an entity
// id. ok is false if the attribute isn't unique or the value is unknown.
func (g *Graph) resolveByLookupRef(ref LookupRef) (int64, bool) {
	spec, known := g.schema[ref.A]
	if !known || !spec.Unique {
		return 0, false
	}
	entities, ok := g.avet[ref.A][valueKey(ref.V)]
	if !ok || len(entities) == 0 {
		return 0, false
	}
	return entities[0], true
}
