package graph

// Cardinality controls how many concurrent (E, A, _) datoms an attribute
// permits (spec §3 Schema).
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// AttrSpec is one schema entry's recognised options (spec §3 Schema).
type AttrSpec struct {
	Unique      bool // unique = identity
	ValueRef    bool // valueType = ref
	Cardinality Cardinality
	Indexed     bool // index = true
	// RulePredicate marks this attribute name as a schema-declared rule
	// predicate for the query evaluator (spec §4.3.4's "domain-specific
	// rule predicates that the schema declares"): a call [(name ?e)] holds
	// when entity ?e has a current value for this attribute.
	RulePredicate bool
}

func (s AttrSpec) cardinality() Cardinality {
	if s.Cardinality == "" {
		return CardinalityOne
	}
	return s.Cardinality
}

// Schema maps attribute name ("ns/name") to its spec.
type Schema map[string]AttrSpec

// indexed reports whether A participates in a secondary index (spec
// §4.3.1: "Secondary indices are only populated for attributes that
// declare index=true, unique=identity, or valueType=ref").
func (s Schema) indexed(attr string) bool {
	spec, ok := s[attr]
	if !ok {
		return false
	}
	return spec.Indexed || spec.Unique || spec.ValueRef
}

// DefaultSchema covers the outliner domain attributes used by §3 (page /
// block) and §4.5 (applier). Callers may extend or override it via
// create-or-open's `schema` option.
func DefaultSchema() Schema {
	return Schema{
		"db/id": {},

		"page/name":       {Unique: true, Indexed: true},
		"page/title":      {},
		"page/type":       {Indexed: true},
		"page/format":     {},
		"page/properties": {},
		"page/journal-day": {Indexed: true},
		"page/created-at": {},
		"page/updated-at": {},

		"block/uuid":       {Unique: true, Indexed: true},
		"block/parent":     {ValueRef: true, Indexed: true},
		"block/page":       {ValueRef: true, Indexed: true},
		"block/order":      {},
		"block/content":    {},
		"block/title":      {},
		"block/properties": {},
		"block/collapsed?": {},
		"block/marker":     {},
		"block/priority":   {},
		"block/scheduled":  {},
		"block/deadline":   {},
		"block/created-at": {},
		"block/updated-at": {},
	}
}
