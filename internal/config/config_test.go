package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
	assert.Equal(t, "/jigna", cfg.Server.WSPath)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  listen_address: 0.0.0.0:9000
  write_wait: 2s
  pong_wait: 30s
log:
  level: debug
  protocol_log: /tmp/jigna.jlog
discovery:
  advertise: true
  instance_name: living-room
redis:
  addr: localhost:6379
  channel: people
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddress)
	assert.Equal(t, "/jigna", cfg.Server.WSPath)
	assert.Equal(t, 2*time.Second, cfg.Server.WriteWait)
	assert.Equal(t, 256, cfg.Server.WriteQueue)
	assert.Equal(t, "/tmp/jigna.jlog", cfg.Log.ProtocolLog)
	assert.True(t, cfg.Discovery.Advertise)
	assert.Equal(t, 120*time.Second, cfg.AdvertiserConfig().TTL)

	rl := cfg.RelayConfig()
	assert.Equal(t, "people", rl.Channel)
	assert.Equal(t, 1024, rl.Queue)

	ch := cfg.ChannelConfig()
	assert.Equal(t, 30*time.Second, ch.PongWait)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"empty listen address": "server: {listen_address: ''}",
		"relative ws path":     "server: {ws_path: jigna}",
		"root ws path":         "server: {ws_path: /}",
		"zero write queue":     "server: {write_queue: 0}",
		"negative grace":       "server: {shutdown_grace: -1s}",
		"unknown level":        "log: {level: chatty}",
		"missing instance":     "discovery: {advertise: true, instance_name: ''}",
		"empty redis channel":  "redis: {addr: 'localhost:6379', channel: ''}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jigna.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "missing.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
