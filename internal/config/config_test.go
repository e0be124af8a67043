package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 47632, cfg.TCPPort)
	assert.Equal(t, 47633, cfg.WSPort)
	assert.True(t, cfg.EnableWebSocket)
	assert.Equal(t, []string{"http://localhost", "http://127.0.0.1"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*1024*1024, cfg.MaxMessageBytes)
	assert.Equal(t, 30_000, cfg.DefaultTimeoutMs)
	assert.Equal(t, 200, cfg.SocketReadTimeoutMs)
	assert.Equal(t, 5_000, cfg.BatchSize)
	assert.Equal(t, "soft", cfg.RefType)
	assert.Equal(t, "", cfg.StoragePath)
	assert.True(t, cfg.DebugLog)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("GRAPHCORE_TCP_PORT", "9999")
	t.Setenv("GRAPHCORE_ENABLE_WEBSOCKET", "false")
	t.Setenv("GRAPHCORE_REF_TYPE", "hard")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.TCPPort)
	assert.False(t, cfg.EnableWebSocket)
	assert.Equal(t, "hard", cfg.RefType)
}

func TestOverrideTCPPortTakesPrecedence(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.OverrideTCPPort(1234)
	assert.Equal(t, 1234, cfg.TCPPort)
}
