// Package tcp implements the length-prefixed TCP transport of spec
// §4.9.1: a loopback listener, one long-lived goroutine per connection,
// and the dispatcher wired in as the sole request handler.
package tcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/graphcore/internal/coerce"
	"github.com/kittclouds/graphcore/internal/rpc"
	"github.com/kittclouds/graphcore/internal/wire"
	"github.com/kittclouds/graphcore/pkg/pool"
)

// Server listens on loopback and dispatches one envelope per frame.
type Server struct {
	Dispatcher *rpc.Dispatcher
	Log        zerolog.Logger

	// ReadTimeout is the short per-read deadline that lets a connection
	// loop periodically observe Stop (spec §4.9.1: "~200ms").
	ReadTimeout time.Duration

	ln       net.Listener
	mu       sync.Mutex
	conns    map[net.Conn]bool
	stopping bool
}

// Listen binds the loopback TCP port. port=0 picks an ephemeral port,
// useful for tests; Addr() reports the bound address afterward.
func Listen(port int) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
}

// NewServer wraps an already-bound listener.
func NewServer(ln net.Listener, d *rpc.Dispatcher, log zerolog.Logger, readTimeout time.Duration) *Server {
	if readTimeout <= 0 {
		readTimeout = 200 * time.Millisecond
	}
	return &Server{Dispatcher: d, Log: log, ReadTimeout: readTimeout, ln: ln, conns: make(map[net.Conn]bool)}
}

// Addr returns the bound address, e.g. for logging the resolved port.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until Stop is called or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.conns[conn] = true
		s.mu.Unlock()
		go s.handleConn(ctx, conn)
	}
}

// Broadcast writes a push envelope to every open connection. Individual
// write failures are logged and skipped, not fatal to the broadcast.
func (s *Server) Broadcast(push rpc.Push) {
	pushMap := push.ToMap()
	out, err := wire.Encode(pushMap)
	pool.PutMap(pushMap)
	if err != nil {
		s.Log.Warn().Err(err).Msg("failed to encode push")
		return
	}
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := writeFrame(c, out); err != nil {
			s.Log.Debug().Err(err).Msg("push write failed")
		}
	}
}

// Stop closes the listener and every open connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopping = true
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	return s.ln.Close()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
		frame, err := readFrame(r)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.mu.Lock()
				stopping := s.stopping
				s.mu.Unlock()
				if stopping {
					return
				}
				continue
			}
			if err != io.EOF {
				s.Log.Debug().Err(err).Msg("tcp connection closed")
			}
			return
		}

		resp := s.dispatch(ctx, frame)
		if err := writeFrame(conn, resp); err != nil {
			s.Log.Debug().Err(err).Msg("tcp write failed")
			return
		}
	}
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

// readFrame reads one `<len>\n<payload>\n` frame. A line with no valid
// decimal length is treated as the payload itself (spec §4.9.1 legacy
// fallback).
func readFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\n")

	n, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil || n < 0 {
		return []byte(line), nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	// Consume the trailing newline; its absence isn't fatal.
	if b, err := r.ReadByte(); err == nil && b != '\n' {
		r.UnreadByte()
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	prefix := fmt.Sprintf("%d\n", len(payload))
	if _, err := io.WriteString(w, prefix); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
