// Package ws implements the WebSocket transport of spec §4.9.2: a
// separate loopback port, an origin allow-list, and the same dispatch
// function as the TCP transport, one frame per text message.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kittclouds/graphcore/internal/coerce"
	"github.com/kittclouds/graphcore/internal/rpc"
	"github.com/kittclouds/graphcore/internal/wire"
	"github.com/kittclouds/graphcore/pkg/pool"
)

// Server upgrades HTTP connections to WebSocket and dispatches each
// message through the same rpc.Dispatcher the TCP transport uses.
type Server struct {
	Dispatcher      *rpc.Dispatcher
	Log             zerolog.Logger
	AllowedOrigins  []string // host prefixes, e.g. "http://localhost"
	MaxMessageBytes int64

	http *http.Server
	mu   sync.Mutex
	// conns tracks open sockets for Broadcast.
	conns map[*websocket.Conn]bool
}

// NewServer builds a Server bound to addr (e.g. "127.0.0.1:47633"). The
// caller starts it with Serve.
func NewServer(addr string, d *rpc.Dispatcher, log zerolog.Logger, allowedOrigins []string, maxMessageBytes int64) *Server {
	if maxMessageBytes <= 0 {
		maxMessageBytes = 10 * 1024 * 1024
	}
	s := &Server{
		Dispatcher:      d,
		Log:             log,
		AllowedOrigins:  allowedOrigins,
		MaxMessageBytes: maxMessageBytes,
		conns:           make(map[*websocket.Conn]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Serve blocks until Stop is called (mirrors http.Server.ListenAndServe).
func (s *Server) Serve(ctx context.Context) error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the HTTP server and every open socket.
func (s *Server) Stop() error {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	return s.http.Close()
}

// CheckOrigin is a no-op here: originAllowed already vets the request
// before Upgrade is ever called.
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r.Header.Get("Origin")) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(s.MaxMessageBytes)

	s.mu.Lock()
	s.conns[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		resp := s.dispatch(ctx, data)
		if err := conn.WriteMessage(websocket.TextMessage, resp); err != nil {
			return
		}
	}
}

// originAllowed implements spec §4.9.2: any http://localhost:* or
// http://127.0.0.1:* origin, and the empty/null origin a file:// page
// sends, are accepted.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" || origin == "null" {
		return true
	}
	prefixes := s.AllowedOrigins
	if len(prefixes) == 0 {
		prefixes = []string{"http://localhost", "http://127.0.0.1"}
	}
	for _, p := range prefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}

func (s *Server) dispatch(ctx context.Context, frame []byte) []byte {
	decoded, err := wire.Decode(frame)
	if err != nil {
		resp := rpc.Response{Type: "response", OK: false, ErrorType: "malformed", Message: err.Error(), Timestamp: s.Dispatcher.Now()}
		respMap := resp.ToMap()
		out, _ := wire.Encode(respMap)
		pool.PutMap(respMap)
		return out
	}
	coerced := coerce.Value(decoded, nil)
	env, _ := coerced.(map[string]any)
	req := rpc.RequestFromMap(env)
	resp := s.Dispatcher.Dispatch(ctx, req)
	respMap := resp.ToMap()
	out, err := wire.Encode(respMap)
	if err != nil {
		fallback := rpc.Response{Type: "response", RequestID: resp.RequestID, OK: false, ErrorType: "internal-error", Message: err.Error(), Timestamp: s.Dispatcher.Now()}
		fallbackMap := fallback.ToMap()
		out, _ = wire.Encode(fallbackMap)
		pool.PutMap(fallbackMap)
	}
	pool.PutMap(respMap)
	return out
}

// Broadcast writes a push envelope to every open socket (spec §4.9.2:
// "individual failures are logged and skipped").
func (s *Server) Broadcast(push rpc.Push) {
	pushMap := push.ToMap()
	out, err := wire.Encode(pushMap)
	pool.PutMap(pushMap)
	if err != nil {
		s.Log.Warn().Err(err).Msg("failed to encode push")
		return
	}
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, out); err != nil {
			s.Log.Debug().Err(err).Msg("push write failed")
		}
	}
}
