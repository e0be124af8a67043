package graph

import (
	"context"

	"github.com/kittclouds/graphcore/internal/apperr"
)

// Transact applies a batch of tx-data atomically under the graph's
// single-writer lock and returns the resulting tx report (spec §4.3.3).
// Only the net changes — assertions and retractions that actually altered
// the current value set — are reported in TxData, which is what makes
// re-delivering an unchanged transaction a true no-op (spec §4.3.3
// idempotency, spec §4.6 sync invariants).
func (g *Graph) Transact(ctx context.Context, items []TxItem) (TxReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := g.nextTx
	g.nextTx++

	tempids := make(map[string]int64)
	var report []Datom

	for _, item := range items {
		switch {
		case item.Entity != nil:
			ds, err := g.applyEntityMap(tx, item.Entity, tempids)
			if err != nil {
				return TxReport{}, err
			}
			report = append(report, ds...)

		case item.Add != nil:
			e, err := g.resolveRef(item.Add.E, tempids, true)
			if err != nil {
				return TxReport{}, err
			}
			ds, err := g.assert(tx, e, item.Add.A, item.Add.V)
			if err != nil {
				return TxReport{}, err
			}
			report = append(report, ds...)

		case item.Retract != nil:
			e, err := g.resolveRef(item.Retract.E, tempids, false)
			if err != nil {
				return TxReport{}, err
			}
			if e == 0 {
				continue // unknown entity: retracting a fact that can't exist is a no-op
			}
			if d, ok := g.retract(tx, e, item.Retract.A, item.Retract.V); ok {
				report = append(report, d)
			}

		case item.RetractEntity != nil:
			report = append(report, g.retractEntity(tx, *item.RetractEntity)...)
		}
	}

	if err := g.flush(ctx); err != nil {
		return TxReport{}, err
	}

	return TxReport{Tx: tx, TempIDs: tempids, TxData: report}, nil
}

// resolveRef resolves an E position to a concrete entity id. allocate
// controls whether an unseen tempid string mints a new entity (true for
// :db/add, false for :db/retract, where an unseen entity can't hold the
// fact being retracted).
func (g *Graph) resolveRef(ref any, tempids map[string]int64, allocate bool) (int64, error) {
	switch t := ref.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case LookupRef:
		e, ok := g.resolveByLookupRef(t)
		if !ok {
			return 0, apperr.Wrap(apperr.Malformed, "transact", "unresolved lookup ref %s=%v", t.A, t.V)
		}
		return e, nil
	case string:
		if e, ok := tempids[t]; ok {
			return e, nil
		}
		if !allocate {
			return 0, nil
		}
		e := g.nextEntity
		g.nextEntity++
		tempids[t] = e
		return e, nil
	default:
		return 0, apperr.Wrap(apperr.Malformed, "transact", "unrecognised entity ref %v (%T)", ref, ref)
	}
}

// applyEntityMap upserts a single entity-map tx item (spec §4.3.3: a map
// is resolved to an entity either by its :db/id or by a unique attribute
// already present in the map, and then every other key is asserted).
func (g *Graph) applyEntityMap(tx int64, m map[string]any, tempids map[string]int64) ([]Datom, error) {
	e, err := g.resolveEntityMapID(m, tempids)
	if err != nil {
		return nil, err
	}
	return g.applyEntityMapAt(tx, e, m, tempids)
}

// applyEntityMapAt asserts m's attributes onto an already-resolved entity
// e. Split out from applyEntityMap so nested entity maps (ref-valued
// attributes whose value is itself a map) resolve their id exactly once.
func (g *Graph) applyEntityMapAt(tx int64, e int64, m map[string]any, tempids map[string]int64) ([]Datom, error) {
	var report []Datom
	for a, v := range m {
		if a == "db/id" {
			continue
		}
		values := v
		spec := g.schema[a]
		if spec.cardinality() == CardinalityMany {
			vs, ok := v.([]any)
			if !ok {
				vs = []any{v}
			}
			for _, one := range vs {
				resolved, nestedReport, err := g.resolveValueRef(tx, a, one, tempids)
				if err != nil {
					return nil, err
				}
				report = append(report, nestedReport...)
				ds, err := g.assert(tx, e, a, resolved)
				if err != nil {
					return nil, err
				}
				report = append(report, ds...)
			}
			continue
		}
		resolved, nestedReport, err := g.resolveValueRef(tx, a, values, tempids)
		if err != nil {
			return nil, err
		}
		report = append(report, nestedReport...)
		ds, err := g.assert(tx, e, a, resolved)
		if err != nil {
			return nil, err
		}
		report = append(report, ds...)
	}
	return report, nil
}

// resolveValueRef resolves v through tempids/lookup-refs when a is
// schema-declared ref-valued; scalar attributes pass v through unchanged.
// A nested entity map is applied in place and its own asserted datoms are
// folded into the caller's tx report.
func (g *Graph) resolveValueRef(tx int64, a string, v any, tempids map[string]int64) (any, []Datom, error) {
	if !g.schema[a].ValueRef {
		return v, nil, nil
	}
	switch t := v.(type) {
	case LookupRef:
		e, ok := g.resolveByLookupRef(t)
		if !ok {
			return nil, nil, apperr.Wrap(apperr.Malformed, "transact", "unresolved lookup ref %s=%v", t.A, t.V)
		}
		return e, nil, nil
	case string:
		e, err := g.resolveRef(t, tempids, true)
		if err != nil {
			return nil, nil, err
		}
		return e, nil, nil
	case map[string]any:
		nested, err := g.resolveEntityMapID(t, tempids)
		if err != nil {
			return nil, nil, err
		}
		nestedReport, err := g.applyEntityMapAt(tx, nested, t, tempids)
		if err != nil {
			return nil, nil, err
		}
		return nested, nestedReport, nil
	default:
		return v, nil, nil
	}
}

func (g *Graph) resolveEntityMapID(m map[string]any, tempids map[string]int64) (int64, error) {
	if id, ok := m["db/id"]; ok {
		return g.resolveRef(id, tempids, true)
	}
	for a, v := range m {
		spec, known := g.schema[a]
		if !known || !spec.Unique {
			continue
		}
		if e, ok := g.resolveByLookupRef(LookupRef{A: a, V: v}); ok {
			return e, nil
		}
	}
	e := g.nextEntity
	g.nextEntity++
	return e, nil
}

// assert records (e, a, v) as currently true, enforcing cardinality-one
// supersession (spec §3: a new value for a cardinality-one attribute
// retracts the old one in the same transaction) and returning the datoms
// that actually changed the index: the retraction of any superseded value
// followed by the new assertion, or nothing if (e, a, v) was already true.
func (g *Graph) assert(tx int64, e int64, a string, v any) ([]Datom, error) {
	spec := g.schema[a]

	if spec.Unique {
		if holder, ok := g.avet[a][valueKey(v)]; ok && len(holder) > 0 && holder[0] != e {
			return nil, apperr.Wrap(apperr.Malformed, "transact",
				"unique constraint violated: %s=%v already held by entity %d", a, v, holder[0])
		}
	}

	var changed []Datom
	if spec.cardinality() == CardinalityOne {
		for _, existing := range g.currentValuesForAttr(e, a) {
			if valueKey(existing.V) == valueKey(v) {
				return nil, nil // already true: no-op
			}
			g.indexRetract(existing)
			changed = append(changed, Datom{E: e, A: a, V: existing.V, T: tx, Added: false})
		}
	} else if _, ok := g.currentValue(e, a, v); ok {
		return nil, nil
	}

	d := Datom{E: e, A: a, V: v, T: tx, Added: true}
	g.indexAssert(d)
	return append(changed, d), nil
}

func (g *Graph) currentValuesForAttr(e int64, a string) []Datom {
	byV, ok := g.eav[e][a]
	if !ok {
		return nil
	}
	out := make([]Datom, 0, len(byV))
	for _, d := range byV {
		out = append(out, d)
	}
	return out
}

// retract removes (e, a, v) if currently asserted; a no-op otherwise.
func (g *Graph) retract(tx int64, e int64, a string, v any) (Datom, bool) {
	existing, ok := g.currentValue(e, a, v)
	if !ok {
		return Datom{}, false
	}
	g.indexRetract(existing)
	return Datom{E: e, A: a, V: v, T: tx, Added: false}, true
}

// retractEntity removes every currently asserted datom with E == e.
// Ref integrity is not enforced: inbound references from other entities
// are left dangling, and the retraction does not cascade (spec §3).
func (g *Graph) retractEntity(tx int64, e int64) []Datom {
	var report []Datom
	for _, d := range g.currentValues(e) {
		g.indexRetract(d)
		report = append(report, Datom{E: d.E, A: d.A, V: d.V, T: tx, Added: false})
	}
	return report
}
