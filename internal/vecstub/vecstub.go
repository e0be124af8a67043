// Package vecstub backs the dispatcher's thread-api/vec-* stub ops
// (spec §4.7: "Stubs; respond with a schema-correct empty/nil result").
// It blank-imports the sqlite-vec extension so the vec0 virtual table
// module is registered against every connection this process opens,
// even though no vec-* op does a real search yet.
package vecstub

import (
	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
)

// Search is the schema-correct empty result every vec-* op returns
// until a real embedding pipeline exists.
func Search(_ map[string]any) (any, error) {
	return map[string]any{"results": []any{}}, nil
}
