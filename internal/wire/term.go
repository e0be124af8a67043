// Package wire implements the self-describing tagged JSON codec described
// in spec §4.1: a bidirectional mapping between in-memory typed values
// (keywords, symbols, uuids, timestamps, datoms, errors) and a wire form
// compatible with the external writer's own codec.
package wire

import (
	"fmt"
	"strings"
)

// Keyword is a namespaced attribute or op name, e.g. block/uuid.
type Keyword struct {
	NS   string
	Name string
}

func NewKeyword(s string) Keyword {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return Keyword{NS: s[:i], Name: s[i+1:]}
	}
	return Keyword{Name: s}
}

func (k Keyword) String() string {
	if k.NS == "" {
		return k.Name
	}
	return k.NS + "/" + k.Name
}

func (k Keyword) IsZero() bool { return k.NS == "" && k.Name == "" }

// Symbol is a query variable, wildcard, or function-name symbol, e.g. ?e.
type Symbol struct {
	Name string
}

func (s Symbol) String() string { return s.Name }

// Datom is the wire 5-tuple (E, A, V, T, added?).
type Datom struct {
	E     int64
	A     string
	V     any
	T     int64
	Added bool
}

// WireError is the decoded form of a "~#error" tagged value.
type WireError struct {
	Message string
	Data    any
}

func (e *WireError) Error() string { return e.Message }
func (e *WireError) Unwrap() error { return fmt.Errorf("%s", e.Message) }
