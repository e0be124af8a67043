package graph

// Datom is the in-memory EAV fact (spec §3): (E, A, V, T, added?).
type Datom struct {
	E     int64
	A     string
	V     any
	T     int64
	Added bool
}

// LookupRef is an (A, V) pair used in place of an entity id, for
// attributes marked unique-identity (spec §3 Glossary).
type LookupRef struct {
	A string
	V any
}

// TxItem is one element of a transact() call's tx-data (spec §4.3.3).
// Exactly one of Entity, Add, Retract, or RetractEntity is populated.
type TxItem struct {
	Entity        map[string]any
	Add           *AddRetract
	Retract       *AddRetract
	RetractEntity *int64
}

// AddRetract is the (E, A, V) payload of a :db/add or :db/retract tuple.
// E may be an int64, a LookupRef, or a tempid string.
type AddRetract struct {
	E any
	A string
	V any
}

// TxReport is the result of transact() (spec §4.3.3).
type TxReport struct {
	Tx      int64
	TempIDs map[string]int64
	TxData  []Datom
}
