// Package coerce implements the type-coercion boundary (spec §4.4): wire
// decoding yields typed values for tagged forms, but untagged strings stay
// strings. This package recovers keyword/symbol/lookup-ref semantics from
// those strings before the coerced value reaches the graph engine.
package coerce

import (
	"strings"

	"github.com/kittclouds/graphcore/internal/wire"
)

// knownFunctions is the fixed, small function/predicate set from spec §4.3.4.
// A slash-bearing string matching one of these becomes a Symbol, not a
// Keyword, even though it contains '/' — none of the fixed names do, but
// domain rule predicates supplied by the schema (e.g. "task") might.
var knownFunctions = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "=": true, "!=": true,
	"not=": true, "contains?": true, "get": true, "get-in": true,
	"count": true, "str": true, "re-find": true, "re-matches": true,
	"and": true, "or": true, "identity": true, "ground": true,
	"missing?": true, "tuple": true,
}

// queryClauseWords are plain strings that should become keywords (spec
// rule 2) rather than being left untouched or coerced as symbols.
var queryClauseWords = map[string]bool{
	"find": true, "where": true, "in": true, "with": true,
	"keys": true, "strs": true, "syms": true,
}

// RuleNames registers additional rule-predicate names the schema declares
// (spec §4.3.4: "plus any domain-specific rule predicates that the schema
// declares"). Coerce treats these the same as knownFunctions.
type RuleNames map[string]bool

// Value walks v recursively and restores keyword/symbol/lookup-ref
// semantics for plain strings. extraFns supplies any schema-declared rule
// predicate names; pass nil if none apply.
func Value(v any, extraFns RuleNames) any {
	switch t := v.(type) {
	case string:
		return coerceString(t, extraFns)
	case []any:
		if ref, ok := asLookupRef(t, extraFns); ok {
			return ref
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Value(e, extraFns)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			nk := k
			if kw, ok := coerceString(k, extraFns).(wire.Keyword); ok {
				nk = kw.String()
			}
			out[nk] = Value(e, extraFns)
		}
		return out
	default:
		return v
	}
}

// asLookupRef implements rule 4: a 2-element array whose first element is a
// string attribute is a lookup ref. Only the first element is coerced; the
// second is left untouched.
func asLookupRef(t []any, extraFns RuleNames) (any, bool) {
	if len(t) != 2 {
		return nil, false
	}
	first, ok := t[0].(string)
	if !ok {
		return nil, false
	}
	if !looksLikeAttribute(first, extraFns) {
		return nil, false
	}
	return []any{wire.NewKeyword(first), t[1]}, true
}

func looksLikeAttribute(s string, extraFns RuleNames) bool {
	if !strings.Contains(s, "/") {
		return false
	}
	if knownFunctions[s] || (extraFns != nil && extraFns[s]) {
		return false
	}
	return true
}

func coerceString(s string, extraFns RuleNames) any {
	// Rule 3: query variables / wildcards.
	if strings.HasPrefix(s, "?") || strings.HasPrefix(s, "$") ||
		s == "_" || s == "..." || s == "pull" || s == "*" || s == "%" {
		return wire.Symbol{Name: s}
	}
	// Rule 1: namespaced attribute, unless it's a known function symbol.
	if strings.Contains(s, "/") {
		if knownFunctions[s] || (extraFns != nil && extraFns[s]) {
			return wire.Symbol{Name: s}
		}
		return wire.NewKeyword(s)
	}
	// Rule 2: known query-clause words become keywords.
	if queryClauseWords[s] {
		return wire.NewKeyword(s)
	}
	// Any residual string is a literal value.
	return s
}
