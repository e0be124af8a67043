package coerce

import (
	"testing"

	"github.com/kittclouds/graphcore/internal/wire"
	"github.com/stretchr/testify/assert"
)

func TestCoerceAttribute(t *testing.T) {
	got := Value("block/name", nil)
	assert.Equal(t, wire.Keyword{NS: "block", Name: "name"}, got)
}

func TestCoerceKnownFunctionStaysSymbol(t *testing.T) {
	got := Value("get-in", nil)
	assert.Equal(t, wire.Symbol{Name: "get-in"}, got)
}

func TestCoerceQueryVariable(t *testing.T) {
	for _, s := range []string{"?e", "$", "_", "...", "pull", "*", "%"} {
		assert.Equal(t, wire.Symbol{Name: s}, Value(s, nil))
	}
}

func TestCoerceQueryClauseWord(t *testing.T) {
	got := Value("where", nil)
	assert.Equal(t, wire.Keyword{Name: "where"}, got)
}

func TestCoerceLiteralUntouched(t *testing.T) {
	assert.Equal(t, "hello world", Value("hello world", nil))
}

func TestCoerceLookupRef(t *testing.T) {
	got := Value([]any{"block/uuid", "some-uuid-string"}, nil)
	ref, ok := got.([]any)
	assert.True(t, ok)
	assert.Equal(t, wire.Keyword{NS: "block", Name: "uuid"}, ref[0])
	assert.Equal(t, "some-uuid-string", ref[1])
}

func TestCoerceRecursesIntoNestedStructures(t *testing.T) {
	in := []any{"?e", []any{"?x", "block/uuid"}}
	got := Value(in, nil)
	outer, ok := got.([]any)
	assert.True(t, ok)
	inner, ok := outer[1].([]any)
	assert.True(t, ok)
	assert.Equal(t, wire.Keyword{NS: "block", Name: "uuid"}, inner[1])
}

func TestCoerceIsIdempotent(t *testing.T) {
	in := "block/name"
	once := Value(in, nil)
	twice := Value(once, nil)
	assert.Equal(t, once, twice)
}

func TestCoerceSchemaRulePredicate(t *testing.T) {
	extra := RuleNames{"task": true}
	got := Value("task", extra)
	assert.Equal(t, "task", got)
}
