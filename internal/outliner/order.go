package outliner

import "sort"

// Sibling order strings are lexicographically comparable keys (spec
// §4.5 "Sibling ordering"). Every new key extends an existing key: by one
// character, or by "0" plus one character for a block's first children
// (firstChildOrder then nthChildOrder), which is what the spec's
// no-collision guarantee relies on.

func firstChildOrder(parentOrder string) string { return parentOrder + "0" }

func nthChildOrder(parentOrder string, n int) string {
	return parentOrder + string(rune('a'+(n%26)))
}

func siblingOrderAfter(order string, offset int) string {
	return order + string(rune('a'+(offset%26)))
}

// lastChildOrder produces a key that extends parentOrder and sorts after
// every key nthChildOrder can produce, for re-parenting onto the end of
// an existing child list (indent).
func lastChildOrder(parentOrder string) string { return parentOrder + "~" }

type orderedEntity struct {
	E     int64
	Order string
}

func sortByOrder(items []orderedEntity) {
	sort.Slice(items, func(i, j int) bool { return items[i].Order < items[j].Order })
}
