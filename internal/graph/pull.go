package graph

import (
	"sort"

	"github.com/kittclouds/graphcore/internal/apperr"
)

// PullOpts carries the `:as`/`:default`/`:limit` options attached to a
// single selector entry (spec §4.3.5).
type PullOpts struct {
	As      string
	Default any
	Limit   int // 0 means unlimited
}

// PullSpec is one parsed selector entry.
type PullSpec struct {
	Wildcard bool
	Attr     string
	Nested   []PullSpec // populated when Attr selects a nested map
	Opts     PullOpts
}

// Pull resolves eid (an entity id or LookupRef) against selector and
// returns its attribute map (spec §4.3.5).
func (g *Graph) Pull(selector []PullSpec, eid any) (map[string]any, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, err := g.resolveEID(eid)
	if err != nil {
		return nil, err
	}
	return g.pullEntity(selector, e), nil
}

// PullMany is Pull over a batch of eids (spec §4.3.5).
func (g *Graph) PullMany(selector []PullSpec, eids []any) ([]map[string]any, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]map[string]any, 0, len(eids))
	for _, eid := range eids {
		e, err := g.resolveEID(eid)
		if err != nil {
			return nil, err
		}
		out = append(out, g.pullEntity(selector, e))
	}
	return out, nil
}

func (g *Graph) resolveEID(eid any) (int64, error) {
	switch t := eid.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case LookupRef:
		e, ok := g.resolveByLookupRef(t)
		if !ok {
			return 0, apperr.Wrap(apperr.Malformed, "pull", "unresolved lookup ref %s=%v", t.A, t.V)
		}
		return e, nil
	default:
		return 0, apperr.Wrap(apperr.Malformed, "pull", "unrecognised eid %v (%T)", eid, eid)
	}
}

// attrValue returns an attribute's current value: a sorted []any for
// cardinality-many, a bare scalar for cardinality-one.
func (g *Graph) attrValue(e int64, attr string) (any, bool) {
	byV, ok := g.eav[e][attr]
	if !ok || len(byV) == 0 {
		return nil, false
	}
	if g.schema.cardinalityOf(attr) == CardinalityMany {
		vals := make([]any, 0, len(byV))
		for _, d := range byV {
			vals = append(vals, d.V)
		}
		sort.Slice(vals, func(i, j int) bool { return lessValue(vals[i], vals[j]) })
		return vals, true
	}
	for _, d := range byV {
		return d.V, true
	}
	return nil, false
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return false
}

func (g *Graph) pullEntity(selector []PullSpec, e int64) map[string]any {
	out := make(map[string]any)

	for _, spec := range selector {
		if spec.Wildcard {
			if byA, ok := g.eav[e]; ok {
				for a := range byA {
					if v, found := g.attrValue(e, a); found {
						out[a] = v
					}
				}
			}
			continue
		}

		key := spec.Attr
		if spec.Opts.As != "" {
			key = spec.Opts.As
		}

		v, found := g.attrValue(e, spec.Attr)
		if !found {
			if spec.Opts.Default != nil {
				out[key] = spec.Opts.Default
			}
			continue
		}

		if spec.Nested != nil {
			out[key] = g.pullNested(spec, v)
			continue
		}

		if vs, ok := v.([]any); ok && spec.Opts.Limit > 0 && len(vs) > spec.Opts.Limit {
			v = vs[:spec.Opts.Limit]
		}
		out[key] = v
	}

	if len(out) > 0 {
		out["db/id"] = e
	}
	return out
}

func (g *Graph) pullNested(spec PullSpec, v any) any {
	if vs, ok := v.([]any); ok {
		limit := spec.Opts.Limit
		results := make([]map[string]any, 0, len(vs))
		for i, one := range vs {
			if limit > 0 && i >= limit {
				break
			}
			ref, ok := asEntityID(one)
			if !ok {
				continue
			}
			results = append(results, g.pullEntity(spec.Nested, ref))
		}
		return results
	}
	ref, ok := asEntityID(v)
	if !ok {
		return nil
	}
	return g.pullEntity(spec.Nested, ref)
}

// cardinalityOf is exposed on Schema for pull's nested-vs-scalar branch.
func (s Schema) cardinalityOf(attr string) Cardinality {
	return s[attr].cardinality()
}
