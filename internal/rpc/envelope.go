// Package rpc implements the dispatcher of spec §4.7: one function that
// takes a decoded request envelope and returns a response envelope,
// independent of whatever transport carried the bytes.
package rpc

import "github.com/kittclouds/graphcore/pkg/pool"

// Request is a decoded request or handshake envelope. Payload is already
// coerced (internal/coerce) by the caller, so its values may be
// wire.Keyword, wire.Symbol, or plain JSON scalars/maps/slices.
type Request struct {
	ID        string
	Type      string // "request" | "handshake"
	Op        string
	Payload   map[string]any
	Timestamp int64
	Version   string // handshake only
}

// Response is a decoded response envelope, ready for wire.Encode.
type Response struct {
	Type         string
	RequestID    string
	OK           bool
	Op           string
	Payload      any
	ErrorType    string
	Message      string
	Timestamp    int64
	Version      string
	Capabilities map[string]bool
}

// ToMap renders r into the wire-level field names spec §4.7 specifies.
// The backing map comes from pool.GetMap: a dispatch builds and encodes
// one of these per request, so the caller returns it with pool.PutMap
// once wire.Encode is done with it.
func (r Response) ToMap() map[string]any {
	m := pool.GetMap()
	m["type"] = r.Type
	m["ok?"] = r.OK
	m["timestamp"] = r.Timestamp
	if r.RequestID != "" {
		m["request-id"] = r.RequestID
	}
	if r.Op != "" {
		m["op"] = r.Op
	}
	if r.Payload != nil {
		m["payload"] = r.Payload
	}
	if r.ErrorType != "" {
		m["error-type"] = r.ErrorType
	}
	if r.Message != "" {
		m["message"] = r.Message
	}
	if r.Version != "" {
		m["version"] = r.Version
	}
	if r.Capabilities != nil {
		m["capabilities"] = r.Capabilities
	}
	return m
}

// Push is a server-to-client push envelope (spec §4.7).
type Push struct {
	Event     string
	Payload   any
	Timestamp int64
}

func (p Push) ToMap() map[string]any {
	m := pool.GetMap()
	m["type"] = "push"
	m["event"] = p.Event
	m["payload"] = p.Payload
	m["timestamp"] = p.Timestamp
	return m
}

// RequestFromMap builds a Request from a decoded+coerced envelope map, as
// produced by wire.Decode followed by coerce.Value.
func RequestFromMap(m map[string]any) Request {
	req := Request{
		Type: keywordString(m["type"]),
		Op:   keywordString(m["op"]),
	}
	if id, ok := m["id"].(string); ok {
		req.ID = id
	}
	if ts, ok := asInt64(m["timestamp"]); ok {
		req.Timestamp = ts
	}
	if v, ok := m["version"].(string); ok {
		req.Version = v
	}
	if p, ok := m["payload"].(map[string]any); ok {
		req.Payload = p
	} else {
		req.Payload = map[string]any{}
	}
	return req
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
