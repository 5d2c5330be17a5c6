package proxy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "out2actor", cfg.InboundChannel)
	require.Equal(t, "actor2out/", cfg.OutboundPrefix)
	require.Equal(t, "localhost:6379", cfg.Bus.Addr())
	require.Equal(t, "actor2out/echo-abc", cfg.ResponseChannel("echo-abc"))
	require.Equal(t, 30*time.Second, cfg.AskTimeout)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bus.Host = ""
	cfg.Bus.Port = 70000
	cfg.InboundChannel = ""
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorContains(t, err, "bus.host")
	require.ErrorContains(t, err, "bus.port")
	require.ErrorContains(t, err, "inbound_channel")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actorbus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bus:
  driver: nats
  host: broker
  port: 4222
outbound_prefix: "replies/"
ask_timeout: 2s
nack_unknown: true
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, BusConfig{Driver: "nats", Host: "broker", Port: 4222}, cfg.Bus)
	require.Equal(t, "out2actor", cfg.InboundChannel)
	require.Equal(t, "replies/", cfg.OutboundPrefix)
	require.Equal(t, 2*time.Second, cfg.AskTimeout)
	require.True(t, cfg.NackUnknown)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus: [1, 2"), 0o600))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, os.WriteFile(path, []byte("inbound_channel: \"\"\n"), 0o600))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
