package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.FastFailThreshold)
	assert.Equal(t, 5, cfg.FastFailLimit)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatTick)
	assert.NotEmpty(t, cfg.SocketPath)
	assert.NotEmpty(t, cfg.DumpPath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("UBERVISOR_SOCKET", "/tmp/custom.sock")
	t.Setenv("UBERVISOR_FAST_FAIL_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.sock", cfg.SocketPath)
	assert.Equal(t, 3, cfg.FastFailLimit)
}
