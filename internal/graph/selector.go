package graph

import (
	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/wire"
)

// ParseSelector interprets a decoded+coerced pull selector (spec
// §4.3.5). Each entry is one of:
//
//	wire.Symbol{Name: "*"}                 wildcard
//	wire.Keyword                           bare attribute
//	[]any{wire.Keyword, map[string]any}    attribute with :as/:default/:limit
//	[]any{wire.Keyword, []any}             attribute with a nested selector
//	map[string]any{attr: []any}            nested map form, single key
//
// The attr-with-options form shares its wire shape with a lookup ref
// (both are a 2-element array led by a keyword); coerce.Value cannot
// tell them apart, so this parser is the one place that resolves the
// ambiguity, by context: a pull selector entry is never a lookup ref.
func ParseSelector(raw []any) ([]PullSpec, error) {
	out := make([]PullSpec, 0, len(raw))
	for _, entry := range raw {
		spec, err := parseSelectorEntry(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

func parseSelectorEntry(entry any) (PullSpec, error) {
	switch t := entry.(type) {
	case wire.Symbol:
		if t.Name == "*" {
			return PullSpec{Wildcard: true}, nil
		}
		return PullSpec{}, apperr.Wrap(apperr.Malformed, "pull", "unrecognised selector symbol %q", t.Name)

	case wire.Keyword:
		return PullSpec{Attr: t.String()}, nil

	case []any:
		if len(t) != 2 {
			return PullSpec{}, apperr.Wrap(apperr.Malformed, "pull", "selector entry must have 2 elements, got %d", len(t))
		}
		kw, ok := t[0].(wire.Keyword)
		if !ok {
			return PullSpec{}, apperr.Wrap(apperr.Malformed, "pull", "selector entry must lead with an attribute")
		}
		spec := PullSpec{Attr: kw.String()}
		switch second := t[1].(type) {
		case map[string]any:
			spec.Opts = parseOpts(second)
			if nested, ok := second["select"].([]any); ok {
				ns, err := ParseSelector(nested)
				if err != nil {
					return PullSpec{}, err
				}
				spec.Nested = ns
			}
		case []any:
			ns, err := ParseSelector(second)
			if err != nil {
				return PullSpec{}, err
			}
			spec.Nested = ns
		}
		return spec, nil

	case map[string]any:
		// Map keys are plain strings even after coercion (coerce.Value
		// only rewrites values, not keys, to Keyword); the key is
		// already "ns/name".
		for attr, v := range t {
			nested, isSlice := v.([]any)
			if !isSlice {
				continue
			}
			ns, err := ParseSelector(nested)
			if err != nil {
				return PullSpec{}, err
			}
			return PullSpec{Attr: attr, Nested: ns}, nil
		}
		return PullSpec{}, apperr.Wrap(apperr.Malformed, "pull", "empty nested selector map")

	default:
		return PullSpec{}, apperr.Wrap(apperr.Malformed, "pull", "unrecognised selector entry %T", entry)
	}
}

func parseOpts(m map[string]any) PullOpts {
	var opts PullOpts
	if as, ok := m["as"].(string); ok {
		opts.As = as
	}
	if def, ok := m["default"]; ok {
		opts.Default = def
	}
	if limit, ok := asInt(m["limit"]); ok {
		opts.Limit = limit
	}
	return opts
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}
