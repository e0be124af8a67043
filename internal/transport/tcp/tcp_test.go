package tcp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/graphcore/internal/metrics"
	"github.com/kittclouds/graphcore/internal/rpc"
	"github.com/kittclouds/graphcore/internal/server"
	"github.com/kittclouds/graphcore/internal/wire"
)

func newTestServer(t *testing.T) (*Server, net.Addr) {
	t.Helper()
	ln, err := Listen(0)
	require.NoError(t, err)

	reg := server.NewRegistry()
	d := rpc.New(reg, metrics.New(), zerolog.Nop(), func() int64 { return 1 }, "")
	s := NewServer(ln, d, zerolog.Nop(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx)
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	return s, ln.Addr()
}

func TestReadFrameLengthPrefixed(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("5\nhello\n"))
	frame, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(frame))
}

func TestReadFrameLegacyFallback(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("not-a-length\n"))
	frame, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "not-a-length", string(frame))
}

func TestServeRoundTrip(t *testing.T) {
	_, addr := newTestServer(t)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	payload, err := wire.Encode(map[string]any{
		"type": "handshake", "id": "1", "version": "1.0.0",
	})
	require.NoError(t, err)
	require.NoError(t, writeFrame(conn, payload))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, err := readFrame(bufio.NewReader(conn))
	require.NoError(t, err)

	decoded, err := wire.Decode(out)
	require.NoError(t, err)
	m, ok := decoded.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, m["ok?"])
}
