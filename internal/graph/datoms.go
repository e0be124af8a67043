package graph

import (
	"sort"

	"github.com/kittclouds/graphcore/internal/apperr"
)

// Index names the index a raw scan reads (spec §4.3.6). Results are
// ordered by E, A, T for EAVT and by A, E, T for AEVT, AVET and VAET;
// values do not take part in the ordering.
type Index string

const (
	IndexEAVT Index = "eavt"
	IndexAEVT Index = "aevt"
	IndexAVET Index = "avet"
	IndexVAET Index = "vaet"
)

// DatomsQuery constrains a raw index scan. Zero-value fields are
// unconstrained (spec §4.3.6: a scan may supply a prefix of the index's
// leading components).
type DatomsQuery struct {
	Index Index
	E     *int64
	A     string
	V     any
}

// Datoms performs a raw, read-only scan of one index under a snapshot
// read lock (spec §4.3.6, §5).
func (g *Graph) Datoms(q DatomsQuery) ([]Datom, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	switch q.Index {
	case IndexEAVT, "":
		return g.scanEAVT(q), nil
	case IndexAEVT:
		return g.scanAEVT(q), nil
	case IndexAVET:
		return g.scanAVET(q)
	case IndexVAET:
		return g.scanVAET(q)
	default:
		return nil, apperr.Wrap(apperr.Malformed, "datoms", "unknown index %q", q.Index)
	}
}

func (g *Graph) scanEAVT(q DatomsQuery) []Datom {
	var out []Datom
	for e, byA := range g.eav {
		if q.E != nil && e != *q.E {
			continue
		}
		for a, byV := range byA {
			if q.A != "" && a != q.A {
				continue
			}
			for _, d := range byV {
				if q.V != nil && valueKey(d.V) != valueKey(q.V) {
					continue
				}
				out = append(out, d)
			}
		}
	}
	sortDatoms(out, IndexEAVT)
	return out
}

func (g *Graph) scanAEVT(q DatomsQuery) []Datom {
	var out []Datom
	for a, byE := range g.ae {
		if q.A != "" && a != q.A {
			continue
		}
		for e, byV := range byE {
			if q.E != nil && e != *q.E {
				continue
			}
			for _, d := range byV {
				if q.V != nil && valueKey(d.V) != valueKey(q.V) {
					continue
				}
				out = append(out, d)
			}
		}
	}
	sortDatoms(out, IndexAEVT)
	return out
}

func (g *Graph) scanAVET(q DatomsQuery) ([]Datom, error) {
	if q.A != "" && !g.schema.indexed(q.A) {
		return nil, apperr.Wrap(apperr.Malformed, "datoms", "attribute %q is not secondarily indexed", q.A)
	}
	var out []Datom
	for a, byV := range g.avet {
		if q.A != "" && a != q.A {
			continue
		}
		for v, entities := range byV {
			if q.V != nil && v != valueKey(q.V) {
				continue
			}
			for _, e := range entities {
				if q.E != nil && e != *q.E {
					continue
				}
				if d, ok := g.currentValue(e, a, v); ok {
					out = append(out, d)
				}
			}
		}
	}
	sortDatoms(out, IndexAVET)
	return out, nil
}

func (g *Graph) scanVAET(q DatomsQuery) ([]Datom, error) {
	var out []Datom
	for target, byA := range g.vaet {
		if q.V != nil {
			targetVal, ok := asEntityID(q.V)
			if !ok || targetVal != target {
				continue
			}
		}
		for a, entities := range byA {
			if q.A != "" && a != q.A {
				continue
			}
			for _, e := range entities {
				if q.E != nil && e != *q.E {
					continue
				}
				if d, ok := g.currentValue(e, a, target); ok {
					out = append(out, d)
				}
			}
		}
	}
	sortDatoms(out, IndexVAET)
	return out, nil
}

func sortDatoms(ds []Datom, idx Index) {
	sort.Slice(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		switch idx {
		case IndexAEVT:
			if a.A != b.A {
				return a.A < b.A
			}
			if a.E != b.E {
				return a.E < b.E
			}
		case IndexAVET, IndexVAET:
			if a.A != b.A {
				return a.A < b.A
			}
			if a.E != b.E {
				return a.E < b.E
			}
		default: // EAVT
			if a.E != b.E {
				return a.E < b.E
			}
			if a.A != b.A {
				return a.A < b.A
			}
		}
		return a.T < b.T
	})
}
