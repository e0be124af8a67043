package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/wire"
)

// Query is a parsed datalog-style query (spec §4.3.4). Callers build one
// from the decoded+coerced wire form; see ParseQuery.
type Query struct {
	Find  []FindElem
	In    []string
	Where []any // raw decoded where-clauses, evaluated lazily
	Keys  []string
	With  []string
}

// FindElem is one `:find` element: either a bare variable or an
// aggregate call over one.
type FindElem struct {
	Var   string
	AggFn string // "" for a bare variable
}

// ParseQuery interprets a decoded+coerced query map (keys are the
// coerced keywords "find"/"in"/"where"/"keys"/"with").
func ParseQuery(q map[string]any) (Query, error) {
	var out Query

	findRaw, ok := q["find"].([]any)
	if !ok {
		return Query{}, apperr.Wrap(apperr.Malformed, "query", "missing :find clause")
	}
	for _, f := range findRaw {
		switch t := f.(type) {
		case wire.Symbol:
			out.Find = append(out.Find, FindElem{Var: t.Name})
		case []any:
			if len(t) != 2 {
				return Query{}, apperr.Wrap(apperr.Malformed, "query", "malformed aggregate find element")
			}
			fn, ok := t[0].(wire.Symbol)
			if !ok {
				return Query{}, apperr.Wrap(apperr.Malformed, "query", "aggregate head must be a symbol")
			}
			v, ok := t[1].(wire.Symbol)
			if !ok {
				return Query{}, apperr.Wrap(apperr.Malformed, "query", "aggregate argument must be a variable")
			}
			out.Find = append(out.Find, FindElem{Var: v.Name, AggFn: fn.Name})
		}
	}

	if inRaw, ok := q["in"].([]any); ok {
		for _, in := range inRaw {
			if sym, ok := in.(wire.Symbol); ok {
				out.In = append(out.In, sym.Name)
			}
		}
	} else {
		out.In = []string{"$"}
	}

	whereRaw, ok := q["where"].([]any)
	if !ok {
		return Query{}, apperr.Wrap(apperr.Malformed, "query", "missing :where clause")
	}
	out.Where = whereRaw

	if keysRaw, ok := q["keys"].([]any); ok {
		for _, k := range keysRaw {
			if sym, ok := k.(wire.Symbol); ok {
				out.Keys = append(out.Keys, sym.Name)
			} else if kw, ok := k.(wire.Keyword); ok {
				out.Keys = append(out.Keys, kw.String())
			}
		}
	}
	if withRaw, ok := q["with"].([]any); ok {
		for _, w := range withRaw {
			if sym, ok := w.(wire.Symbol); ok {
				out.With = append(out.With, sym.Name)
			}
		}
	}

	return out, nil
}

type ruleDef struct {
	Params []string
	Body   []any
}

type binding map[string]any

// Query evaluates q against the graph, with extra inputs supplied
// positionally after the implicit $ source (spec §4.3.4). A rules input
// ("%") is a []any of rule definitions, each shaped
// [(rule-name ?a ?b) clause…].
func (g *Graph) Query(q Query, inputs []any) ([][]any, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rules := map[string]ruleDef{}
	inputVals := map[string]any{"$": nil}
	ii := 0
	for _, name := range q.In {
		if name == "$" {
			continue
		}
		if ii >= len(inputs) {
			return nil, apperr.Wrap(apperr.Malformed, "query", "missing input for %s", name)
		}
		if name == "%" {
			rs, ok := inputs[ii].([]any)
			if !ok {
				return nil, apperr.Wrap(apperr.Malformed, "query", "%% input must be a rule list")
			}
			for _, r := range rs {
				rd, err := parseRule(r)
				if err != nil {
					return nil, err
				}
				rules[rd.name] = rd.ruleDef
			}
		} else {
			inputVals[name] = inputs[ii]
		}
		ii++
	}

	bindings := []binding{{}}
	for v, val := range inputVals {
		if v == "$" {
			continue
		}
		for i := range bindings {
			bindings[i][v] = val
		}
	}

	bindings, err := g.evalClauses(q.Where, bindings, rules)
	if err != nil {
		return nil, err
	}

	return g.project(q, bindings), nil
}

type namedRule struct {
	name string
	ruleDef
}

func parseRule(r any) (namedRule, error) {
	clause, ok := r.([]any)
	if !ok || len(clause) < 1 {
		return namedRule{}, apperr.Wrap(apperr.Malformed, "query", "malformed rule definition")
	}
	head, ok := clause[0].([]any)
	if !ok || len(head) < 1 {
		return namedRule{}, apperr.Wrap(apperr.Malformed, "query", "malformed rule head")
	}
	nameSym, ok := head[0].(wire.Symbol)
	if !ok {
		return namedRule{}, apperr.Wrap(apperr.Malformed, "query", "rule name must be a symbol")
	}
	var params []string
	for _, p := range head[1:] {
		if sym, ok := p.(wire.Symbol); ok {
			params = append(params, sym.Name)
		}
	}
	return namedRule{name: nameSym.Name, ruleDef: ruleDef{Params: params, Body: clause[1:]}}, nil
}

// evalClauses threads a frontier of partial bindings through each
// :where clause in order.
func (g *Graph) evalClauses(clauses []any, bindings []binding, rules map[string]ruleDef) ([]binding, error) {
	for _, raw := range clauses {
		c, ok := raw.([]any)
		if !ok {
			return nil, apperr.Wrap(apperr.Malformed, "query", "malformed clause %v", raw)
		}
		next, err := g.evalClause(c, bindings, rules)
		if err != nil {
			return nil, err
		}
		bindings = next
		if len(bindings) == 0 {
			break
		}
	}
	return bindings, nil
}

func (g *Graph) evalClause(c []any, bindings []binding, rules map[string]ruleDef) ([]binding, error) {
	if len(c) == 0 {
		return bindings, nil
	}

	if head, ok := c[0].(wire.Symbol); ok {
		switch head.Name {
		case "or", "or-join":
			return g.evalOr(c, bindings, rules)
		case "not", "not-join":
			return g.evalNot(c, bindings, rules)
		}
	}

	// function/predicate call: [(f a...) ?r] or [(p a...)]
	if inner, ok := c[0].([]any); ok && len(inner) >= 1 {
		fnSym, ok := inner[0].(wire.Symbol)
		if ok {
			var resultVar string
			if len(c) == 2 {
				if sym, ok := c[1].(wire.Symbol); ok {
					resultVar = sym.Name
				}
			}
			return g.evalCall(fnSym.Name, inner[1:], resultVar, bindings)
		}
	}

	// rule invocation: [rule-name arg...] where rule-name is declared
	if head, ok := c[0].(wire.Symbol); ok {
		if rd, known := rules[head.Name]; known {
			return g.evalRule(rd, c[1:], bindings)
		}
	}

	// triple pattern: [e a v]
	if len(c) != 3 {
		return nil, apperr.Wrap(apperr.Malformed, "query", "malformed triple pattern %v", c)
	}
	return g.evalTriple(c[0], c[1], c[2], bindings)
}

func (g *Graph) allDatoms() []Datom {
	var out []Datom
	for _, byA := range g.eav {
		for _, byV := range byA {
			for _, d := range byV {
				out = append(out, d)
			}
		}
	}
	return out
}

func isVar(term any) (string, bool) {
	sym, ok := term.(wire.Symbol)
	if !ok {
		return "", false
	}
	return sym.Name, strings.HasPrefix(sym.Name, "?") || sym.Name == "_"
}

func literalOf(term any) any {
	switch t := term.(type) {
	case wire.Keyword:
		return t.String()
	default:
		return t
	}
}

func (g *Graph) evalTriple(eTerm, aTerm, vTerm any, bindings []binding) ([]binding, error) {
	candidates := g.allDatoms()
	var out []binding

	for _, b := range bindings {
		for _, d := range candidates {
			nb := matchTerm(b, eTerm, d.E)
			if nb == nil {
				continue
			}
			nb = matchTerm(nb, aTerm, d.A)
			if nb == nil {
				continue
			}
			nb = matchTerm(nb, vTerm, d.V)
			if nb == nil {
				continue
			}
			out = append(out, nb)
		}
	}
	return out, nil
}

// matchTerm attempts to unify term against val within b, returning an
// extended copy of b, or nil if they don't unify.
func matchTerm(b binding, term any, val any) binding {
	if name, ok := isVar(term); ok {
		if name == "_" {
			return b
		}
		if bound, ok := b[name]; ok {
			if !valuesEqual(bound, val) {
				return nil
			}
			return b
		}
		nb := cloneBinding(b)
		nb[name] = val
		return nb
	}
	if !valuesEqual(literalOf(term), val) {
		return nil
	}
	return b
}

func valuesEqual(a, b any) bool {
	return fmt.Sprint(valueKey(a)) == fmt.Sprint(valueKey(b)) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	_, aIsNum := asEntityID(a)
	_, bIsNum := asEntityID(b)
	if aIsNum && bIsNum {
		return true
	}
	return aIsNum == bIsNum
}

func cloneBinding(b binding) binding {
	nb := make(binding, len(b)+1)
	for k, v := range b {
		nb[k] = v
	}
	return nb
}

func (g *Graph) evalOr(c []any, bindings []binding, rules map[string]ruleDef) ([]binding, error) {
	branches := c[1:]
	if c[0].(wire.Symbol).Name == "or-join" {
		if len(branches) == 0 {
			return bindings, nil
		}
		branches = branches[1:] // skip the join-vars vector
	}

	var union []binding
	for _, br := range branches {
		clause, ok := br.([]any)
		if !ok {
			continue
		}
		results, err := g.evalClause(clause, bindings, rules)
		if err != nil {
			return nil, err
		}
		union = append(union, results...)
	}
	return dedupeBindings(union), nil
}

func (g *Graph) evalNot(c []any, bindings []binding, rules map[string]ruleDef) ([]binding, error) {
	clauses := c[1:]
	if c[0].(wire.Symbol).Name == "not-join" {
		if len(clauses) > 0 {
			clauses = clauses[1:]
		}
	}

	var out []binding
	for _, b := range bindings {
		matched, err := g.evalClauses(clauses, []binding{cloneBinding(b)}, rules)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

func (g *Graph) evalRule(rd ruleDef, args []any, bindings []binding) ([]binding, error) {
	var out []binding
	for _, b := range bindings {
		inner := cloneBinding(b)
		for i, p := range rd.Params {
			if i >= len(args) {
				break
			}
			if name, ok := isVar(args[i]); ok {
				if v, bound := b[name]; bound {
					inner[p] = v
				}
			} else {
				inner[p] = literalOf(args[i])
			}
		}
		results, err := g.evalClauses(rd.Body, []binding{inner}, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			merged := cloneBinding(b)
			for i, p := range rd.Params {
				if i >= len(args) {
					continue
				}
				if name, ok := isVar(args[i]); ok && name != "_" {
					if v, ok := r[p]; ok {
						merged[name] = v
					}
				}
			}
			out = append(out, merged)
		}
	}
	return out, nil
}

func dedupeBindings(bs []binding) []binding {
	seen := map[string]bool{}
	var out []binding
	for _, b := range bs {
		key := bindingKey(b)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
	}
	return out
}

func bindingKey(b binding) string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(fmt.Sprint(b[k]))
		sb.WriteByte(';')
	}
	return sb.String()
}

// evalCall applies one of the fixed built-in functions/predicates, plus
// any schema-declared rule predicate, to resolved argument values.
func (g *Graph) evalCall(fn string, args []any, resultVar string, bindings []binding) ([]binding, error) {
	var out []binding
	for _, b := range bindings {
		vals := make([]any, len(args))
		unresolved := false
		for i, a := range args {
			if name, ok := isVar(a); ok {
				v, bound := b[name]
				if !bound {
					unresolved = true
					break
				}
				vals[i] = v
			} else {
				vals[i] = literalOf(a)
			}
		}
		if unresolved {
			continue
		}

		result, truthy, err := g.applyFn(fn, vals)
		if err != nil {
			return nil, err
		}

		if resultVar == "" {
			if truthy {
				out = append(out, b)
			}
			continue
		}
		if resultVar == "_" {
			out = append(out, b)
			continue
		}
		nb := cloneBinding(b)
		nb[resultVar] = result
		out = append(out, nb)
	}
	return out, nil
}

func (g *Graph) applyFn(fn string, args []any) (result any, truthy bool, err error) {
	switch fn {
	case ">", "<", ">=", "<=":
		if len(args) != 2 {
			return nil, false, apperr.Wrap(apperr.Malformed, "query", "%s expects 2 args", fn)
		}
		af, aok := toFloat(args[0])
		bf, bok := toFloat(args[1])
		if !aok || !bok {
			return nil, false, nil
		}
		switch fn {
		case ">":
			return nil, af > bf, nil
		case "<":
			return nil, af < bf, nil
		case ">=":
			return nil, af >= bf, nil
		default:
			return nil, af <= bf, nil
		}
	case "=":
		return nil, len(args) == 2 && valuesEqual(args[0], args[1]), nil
	case "!=", "not=":
		return nil, len(args) == 2 && !valuesEqual(args[0], args[1]), nil
	case "contains?":
		if len(args) != 2 {
			return nil, false, nil
		}
		return nil, containsValue(args[0], args[1]), nil
	case "get":
		if len(args) != 2 {
			return nil, false, nil
		}
		v, ok := mapGet(args[0], args[1])
		return v, ok, nil
	case "get-in":
		if len(args) != 2 {
			return nil, false, nil
		}
		path, ok := args[1].([]any)
		if !ok {
			return nil, false, nil
		}
		cur := args[0]
		for _, p := range path {
			v, ok := mapGet(cur, p)
			if !ok {
				return nil, false, nil
			}
			cur = v
		}
		return cur, true, nil
	case "count":
		if len(args) != 1 {
			return nil, false, nil
		}
		n := collectionLen(args[0])
		return int64(n), n > 0, nil
	case "str":
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(fmt.Sprint(a))
		}
		return sb.String(), true, nil
	case "re-find", "re-matches":
		if len(args) != 2 {
			return nil, false, nil
		}
		pattern, _ := args[0].(string)
		s, _ := args[1].(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, false, apperr.Wrap(apperr.Malformed, "query", "bad regex %q: %v", pattern, err)
		}
		if fn == "re-matches" {
			return nil, re.MatchString(s) && re.FindString(s) == s, nil
		}
		m := re.FindString(s)
		return m, m != "", nil
	case "and":
		for _, a := range args {
			if !isTruthy(a) {
				return nil, false, nil
			}
		}
		return nil, true, nil
	case "or":
		for _, a := range args {
			if isTruthy(a) {
				return nil, true, nil
			}
		}
		return nil, false, nil
	case "identity", "ground":
		if len(args) != 1 {
			return nil, false, nil
		}
		return args[0], isTruthy(args[0]), nil
	case "missing?":
		if len(args) != 2 {
			return nil, false, nil
		}
		e, ok := asEntityID(args[0])
		attr, aok := args[1].(string)
		if !ok || !aok {
			return nil, false, nil
		}
		_, present := g.eav[e][attr]
		return nil, !present, nil
	case "tuple":
		return append([]any(nil), args...), true, nil
	default:
		if spec, ok := g.schema[fn]; ok && spec.RulePredicate {
			if len(args) != 1 {
				return nil, false, nil
			}
			e, ok := asEntityID(args[0])
			if !ok {
				return nil, false, nil
			}
			_, present := g.eav[e][fn]
			return nil, present, nil
		}
		return nil, false, apperr.Wrap(apperr.UnknownOp, "query", "unknown query function %q", fn)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func collectionLen(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case string:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 0
	}
}

func containsValue(coll, v any) bool {
	switch t := coll.(type) {
	case []any:
		for _, e := range t {
			if valuesEqual(e, v) {
				return true
			}
		}
	case map[string]any:
		if s, ok := v.(string); ok {
			_, ok := t[s]
			return ok
		}
	}
	return false
}

func mapGet(m, k any) (any, bool) {
	mm, ok := m.(map[string]any)
	if !ok {
		return nil, false
	}
	ks, ok := k.(string)
	if !ok {
		return nil, false
	}
	v, ok := mm[ks]
	return v, ok
}

// project turns the final binding set into result rows per :find,
// applying :with identity-extension and aggregation (spec §4.3.4).
func (g *Graph) project(q Query, bindings []binding) [][]any {
	hasAgg := false
	for _, f := range q.Find {
		if f.AggFn != "" {
			hasAgg = true
			break
		}
	}

	if !hasAgg {
		identityVars := make([]string, 0, len(q.Find)+len(q.With))
		for _, f := range q.Find {
			identityVars = append(identityVars, f.Var)
		}
		identityVars = append(identityVars, q.With...)

		seen := map[string]bool{}
		var out [][]any
		for _, b := range bindings {
			key := identityKey(b, identityVars)
			if seen[key] {
				continue
			}
			seen[key] = true
			row := make([]any, len(q.Find))
			for i, f := range q.Find {
				row[i] = b[f.Var]
			}
			out = append(out, row)
		}
		return out
	}

	var groupVars []string
	for _, f := range q.Find {
		if f.AggFn == "" {
			groupVars = append(groupVars, f.Var)
		}
	}

	groups := map[string][]binding{}
	var order []string
	for _, b := range bindings {
		key := identityKey(b, groupVars)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], b)
	}

	var out [][]any
	for _, key := range order {
		rows := groups[key]
		row := make([]any, len(q.Find))
		for i, f := range q.Find {
			if f.AggFn == "" {
				row[i] = rows[0][f.Var]
				continue
			}
			row[i] = aggregate(f.AggFn, f.Var, rows)
		}
		out = append(out, row)
	}
	return out
}

func identityKey(b binding, vars []string) string {
	var sb strings.Builder
	for _, v := range vars {
		sb.WriteString(fmt.Sprint(b[v]))
		sb.WriteByte(';')
	}
	return sb.String()
}

func aggregate(fn, v string, rows []binding) any {
	switch fn {
	case "count":
		return int64(len(rows))
	case "sum":
		var sum float64
		for _, r := range rows {
			f, _ := toFloat(r[v])
			sum += f
		}
		return sum
	case "min":
		var min float64
		first := true
		for _, r := range rows {
			f, ok := toFloat(r[v])
			if !ok {
				continue
			}
			if first || f < min {
				min = f
				first = false
			}
		}
		return min
	case "max":
		var max float64
		first := true
		for _, r := range rows {
			f, ok := toFloat(r[v])
			if !ok {
				continue
			}
			if first || f > max {
				max = f
				first = false
			}
		}
		return max
	case "distinct":
		seen := map[string]bool{}
		var out []any
		for _, r := range rows {
			key := fmt.Sprint(r[v])
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r[v])
		}
		return out
	default:
		return nil
	}
}
