package graph

import (
	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/wire"
)

// ParseTxData interprets a decoded+coerced transact() payload (spec
// §4.3.3): each element is an entity map or one of the three
// :db/add | :db/retract | :db/retractEntity tuples.
func ParseTxData(raw []any) ([]TxItem, error) {
	items := make([]TxItem, 0, len(raw))
	for _, entry := range raw {
		item, err := parseTxItem(entry)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func parseTxItem(entry any) (TxItem, error) {
	switch t := entry.(type) {
	case map[string]any:
		return TxItem{Entity: t}, nil

	case []any:
		if len(t) == 0 {
			return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", "empty tx-data tuple")
		}
		kw, ok := t[0].(wire.Keyword)
		if !ok {
			return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", "tx-data tuple must lead with a :db/... keyword")
		}
		switch kw.String() {
		case "db/add":
			if len(t) != 4 {
				return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", ":db/add requires [E A V], got %d args", len(t)-1)
			}
			a, err := attrName(t[2])
			if err != nil {
				return TxItem{}, err
			}
			return TxItem{Add: &AddRetract{E: t[1], A: a, V: t[3]}}, nil

		case "db/retract":
			if len(t) != 4 {
				return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", ":db/retract requires [E A V], got %d args", len(t)-1)
			}
			a, err := attrName(t[2])
			if err != nil {
				return TxItem{}, err
			}
			return TxItem{Retract: &AddRetract{E: t[1], A: a, V: t[3]}}, nil

		case "db/retractEntity":
			if len(t) != 2 {
				return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", ":db/retractEntity requires [E], got %d args", len(t)-1)
			}
			e, ok := asEntityID(t[1])
			if !ok {
				return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", ":db/retractEntity needs an entity id, got %T", t[1])
			}
			return TxItem{RetractEntity: &e}, nil

		default:
			return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", "unrecognised tx-data op %q", kw.String())
		}

	default:
		return TxItem{}, apperr.Wrap(apperr.Malformed, "transact", "unrecognised tx-data entry %T", entry)
	}
}

func attrName(v any) (string, error) {
	switch t := v.(type) {
	case wire.Keyword:
		return t.String(), nil
	case string:
		return t, nil
	default:
		return "", apperr.Wrap(apperr.Malformed, "transact", "attribute must be a keyword, got %T", v)
	}
}
