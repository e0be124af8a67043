package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kittclouds/graphcore/internal/apperr"
)

const (
	tagUUID  = "~#uuid"
	tagInst  = "~#inst"
	tagDatom = "~#datom"
	tagError = "~#error"
)

// Encode serialises a decoded value into the tagged-JSON wire form.
func Encode(v any) ([]byte, error) {
	out, err := toWire(v)
	if err != nil {
		return nil, apperr.New(apperr.Malformed, "encode", err)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, apperr.New(apperr.Malformed, "encode", err)
	}
	return b, nil
}

// Decode parses wire bytes into a generic decoded value tree: maps become
// map[string]any, arrays become []any, and tagged forms become the typed
// values in term.go. Plain untagged strings stay strings — restoring
// keyword/symbol semantics for those is the coercion layer's job (§4.4).
func Decode(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.New(apperr.Malformed, "decode", err)
	}
	return fromWire(raw)
}

func toWire(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, string, float64, int, int64, float32:
		return t, nil
	case Keyword:
		return "~:" + t.String(), nil
	case Symbol:
		return "~$" + t.Name, nil
	case uuid.UUID:
		return []any{tagUUID, t.String()}, nil
	case time.Time:
		return []any{tagInst, t.UnixMilli()}, nil
	case Datom:
		return []any{tagDatom, []any{t.E, t.A, t.V, t.T, t.Added}}, nil
	case *WireError:
		return []any{tagError, map[string]any{"message": t.Message, "data": t.Data}}, nil
	case error:
		return []any{tagError, map[string]any{"message": t.Error()}}, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			w, err := toWire(vv)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			w, err := toWire(vv)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec/malformed: unsupported type %T", v)
	}
}

func fromWire(v any) (any, error) {
	switch t := v.(type) {
	case []any:
		if len(t) == 2 {
			if tag, ok := t[0].(string); ok {
				switch tag {
				case tagUUID:
					s, _ := t[1].(string)
					id, err := uuid.Parse(s)
					if err != nil {
						return nil, fmt.Errorf("codec/malformed: bad uuid %q: %w", s, err)
					}
					return id, nil
				case tagInst:
					ms, ok := t[1].(float64)
					if !ok {
						return nil, fmt.Errorf("codec/malformed: bad inst payload")
					}
					return time.UnixMilli(int64(ms)).UTC(), nil
				case tagError:
					m, ok := t[1].(map[string]any)
					if !ok {
						return nil, fmt.Errorf("codec/malformed: bad error payload")
					}
					msg, _ := m["message"].(string)
					return &WireError{Message: msg, Data: m["data"]}, nil
				}
			}
		}
		if len(t) == 2 {
			if tag, ok := t[0].(string); ok && tag == tagDatom {
				arr, ok := t[1].([]any)
				if !ok || len(arr) != 5 {
					return nil, fmt.Errorf("codec/malformed: bad datom payload")
				}
				e, err := toInt64(arr[0])
				if err != nil {
					return nil, err
				}
				a, _ := arr[1].(string)
				tx, err := toInt64(arr[3])
				if err != nil {
					return nil, err
				}
				added, _ := arr[4].(bool)
				return Datom{E: e, A: a, V: arr[2], T: tx, Added: added}, nil
			}
		}
		out := make([]any, len(t))
		for i, vv := range t {
			w, err := fromWire(vv)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			w, err := fromWire(vv)
			if err != nil {
				return nil, err
			}
			out[k] = w
		}
		return out, nil
	case string:
		switch {
		case len(t) >= 2 && t[0] == '~' && t[1] == ':':
			return NewKeyword(t[2:]), nil
		case len(t) >= 2 && t[0] == '~' && t[1] == '$':
			return Symbol{Name: t[2:]}, nil
		default:
			return t, nil
		}
	default:
		return t, nil
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("codec/malformed: expected numeric id, got %T", v)
	}
}
