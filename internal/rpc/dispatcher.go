package rpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/graphcore/internal/apperr"
	"github.com/kittclouds/graphcore/internal/metrics"
	"github.com/kittclouds/graphcore/internal/server"
	"github.com/kittclouds/graphcore/internal/wire"
)

// MinVersion is the lowest client protocol version this dispatcher
// accepts at handshake (spec §4.7).
const MinVersion = "1.0.0"

// Capabilities advertised on a successful handshake.
var Capabilities = map[string]bool{
	"query": true, "transact": true, "pull": true, "push": true,
}

// handlerFunc runs one op against the named graph's resources and
// returns the decoded payload for a successful response.
type handlerFunc func(ctx context.Context, d *Dispatcher, graphID string, payload map[string]any) (any, error)

// Dispatcher is the single dispatch(request) -> response function of
// spec §4.7, plus everything it closes over: the graph registry, the
// op-dispatch counters, and a clock for timestamping.
type Dispatcher struct {
	Registry *server.Registry
	Metrics  *metrics.Registry
	Log      zerolog.Logger
	Now      func() int64

	// DataDir is the default directory create-or-open-db stores a new
	// graph's SQLite file under, when the request doesn't supply its
	// own storage-path.
	DataDir string

	handlers map[string]handlerFunc
}

// New builds a Dispatcher with the full op catalogue of spec §4.7 wired
// in. now supplies millisecond timestamps.
func New(reg *server.Registry, m *metrics.Registry, log zerolog.Logger, now func() int64, dataDir string) *Dispatcher {
	d := &Dispatcher{Registry: reg, Metrics: m, Log: log, Now: now, DataDir: dataDir}
	d.handlers = d.catalogue()
	return d
}

// Dispatch runs one request/handshake envelope through to a response
// envelope. It never panics the caller: any error, including a runtime
// panic from a handler, becomes an error response (spec §4.7: "the
// dispatcher must never crash the transport").
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	resp = Response{Type: "response", RequestID: req.ID, Op: req.Op, Timestamp: d.Now()}

	defer func() {
		if r := recover(); r != nil {
			d.Log.Error().Str("op", req.Op).Str("stack", string(debug.Stack())).Msgf("recovered panic: %v", r)
			resp.OK = false
			resp.ErrorType = string(apperr.InternalError)
			resp.Message = fmt.Sprintf("panic: %v", r)
		}
	}()

	if req.Type == "handshake" {
		return d.handshake(req)
	}

	handler, ok := d.handlers[req.Op]
	if !ok {
		resp.OK = false
		resp.ErrorType = string(apperr.UnknownOp)
		resp.Message = fmt.Sprintf("unrecognised operation %q", req.Op)
		return resp
	}

	graphID, _ := req.Payload["graph-id"].(string)
	if d.Metrics != nil {
		d.Metrics.Record(req.Op)
	}

	start := time.Now()
	payload, err := handler(ctx, d, graphID, req.Payload)
	d.Log.Debug().Str("op", req.Op).Str("graph-id", graphID).Dur("elapsed", time.Since(start)).Bool("ok", err == nil).Msg("dispatched op")
	if err != nil {
		resp.OK = false
		resp.ErrorType = string(apperr.KindOf(err))
		resp.Message = err.Error()
		return resp
	}

	resp.OK = true
	resp.Payload = payload
	return resp
}

func (d *Dispatcher) handshake(req Request) Response {
	resp := Response{Type: "handshake-response", RequestID: req.ID, Timestamp: d.Now(), Version: MinVersion}
	if versionLess(req.Version, MinVersion) {
		resp.OK = false
		resp.ErrorType = string(apperr.VersionMismatch)
		resp.Message = fmt.Sprintf("client version %q is below minimum %q", req.Version, MinVersion)
		return resp
	}
	resp.OK = true
	resp.Capabilities = Capabilities
	return resp
}

// versionLess compares two "major.minor.patch" strings lexicographically
// by numeric component (spec §4.7).
func versionLess(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}

// keywordString returns the dotted-namespace string form of a coerced
// value, whether it arrived as a wire.Keyword or a plain string.
func keywordString(v any) string {
	switch t := v.(type) {
	case wire.Keyword:
		return t.String()
	case string:
		return t
	default:
		return ""
	}
}

