package ws

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/metrics"
	"github.com/kittclouds/graphcore/internal/rpc"
	"github.com/kittclouds/graphcore/internal/server"
	"github.com/kittclouds/graphcore/internal/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func newTestWSServer(t *testing.T) (*Server, string) {
	t.Helper()
	port := freePort(t)
	reg := server.NewRegistry()
	d := rpc.New(reg, metrics.New(), zerolog.Nop(), func() int64 { return 1 }, "")
	s := NewServer(fmt.Sprintf("127.0.0.1:%d", port), d, zerolog.Nop(), nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	time.Sleep(50 * time.Millisecond)
	return s, fmt.Sprintf("ws://127.0.0.1:%d/", port)
}

func TestOriginAllowedDefaults(t *testing.T) {
	s := &Server{}
	assert.True(t, s.originAllowed(""))
	assert.True(t, s.originAllowed("null"))
	assert.True(t, s.originAllowed("http://localhost:3000"))
	assert.True(t, s.originAllowed("http://127.0.0.1:8080"))
	assert.False(t, s.originAllowed("http://evil.example.com"))
}

func TestOriginAllowedCustomList(t *testing.T) {
	s := &Server{AllowedOrigins: []string{"http://app.internal"}}
	assert.True(t, s.originAllowed("http://app.internal"))
	assert.False(t, s.originAllowed("http://localhost:3000"))
}

func TestUpgradeRejectsDisallowedOrigin(t *testing.T) {
	_, url := newTestWSServer(t)
	header := map[string][]string{"Origin": {"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}

func TestDispatchRoundTrip(t *testing.T) {
	_, url := newTestWSServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	payload, err := wire.Encode(map[string]any{
		"type": "handshake", "id": "1", "version": "1.0.0",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	decoded, err := wire.Decode(data)
	require.NoError(t, err)
	m, ok := decoded.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, m["ok?"])
}
