package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/actorbus/core/app"
	"github.com/codewandler/actorbus/core/proxy"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv("ACTORBUS_BUS_DRIVER", "nats")
	t.Setenv("ACTORBUS_BUS_HOST", "broker")
	t.Setenv("ACTORBUS_BUS_PORT", "4222")
	t.Setenv("ACTORBUS_INBOUND_CHANNEL", "in")
	t.Setenv("ACTORBUS_OUTBOUND_PREFIX", "out.")
	t.Setenv("ACTORBUS_NACK_UNKNOWN", "true")

	cfg := proxy.DefaultConfig()
	require.NoError(t, applyEnv(&cfg))
	require.Equal(t, "nats", cfg.Bus.Driver)
	require.Equal(t, "broker:4222", cfg.Bus.Addr())
	require.Equal(t, "in", cfg.InboundChannel)
	require.Equal(t, "out.", cfg.OutboundPrefix)
	require.True(t, cfg.NackUnknown)

	t.Setenv("ACTORBUS_BUS_PORT", "not-a-port")
	require.Error(t, applyEnv(&cfg))
}

func TestRootPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "actorbus.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("bus:\n  driver: nats\n  host: from-file\n  port: 4222\n"), 0o600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ACTORBUS_BUS_HOST=from-env\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ACTORBUS_BUS_HOST") })

	c := &cli{}
	root := c.rootCmd()
	root.AddCommand(probeCmd())
	root.SetArgs([]string{"--config", cfgFile, "--env-file", envFile, "--port", "5222", "probe"})
	require.NoError(t, root.Execute())
	got := c.cfg

	require.Equal(t, "nats", got.Bus.Driver)
	require.Equal(t, "from-env", got.Bus.Host)
	require.Equal(t, 5222, got.Bus.Port)
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	root := newRootCmd()
	root.AddCommand(probeCmd())
	root.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing"), "--inbound-channel", "", "probe"})
	root.SetErr(&bytes.Buffer{})
	require.ErrorIs(t, root.Execute(), proxy.ErrInvalidConfig)
}

func TestRequestFromArgs(t *testing.T) {
	req, err := requestFromArgs([]string{"echo", "Echo", `{"message":"hi"}`})
	require.NoError(t, err)
	require.Equal(t, "echo", req.ActorURN)
	require.Equal(t, "Echo", req.MessageType)
	require.Contains(t, req.MessageID, "echo-")
	require.JSONEq(t, `{"message":"hi"}`, string(req.Contents))

	req, err = requestFromArgs([]string{"echo", "Stats"})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(req.Contents))

	_, err = requestFromArgs([]string{"echo", "Echo", `{broken`})
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug", "json")
	require.NoError(t, err)
	_, err = newLogger("loud", "text")
	require.Error(t, err)
	_, err = newLogger("info", "xml")
	require.Error(t, err)
}

func TestBusConnectorUnknownDriver(t *testing.T) {
	cfg := proxy.DefaultConfig()
	cfg.Bus.Driver = "carrier-pigeon"
	_, err := busConnector(cfg, nil)
	require.Error(t, err)
}

func TestMemoryDriverNeedsServe(t *testing.T) {
	c := &cli{cfg: proxy.DefaultConfig()}
	c.cfg.Bus.Driver = "memory"
	_, _, err := c.newClient(t.Context(), false)
	require.ErrorIs(t, err, errMemoryDriver)
}

func TestBuiltinActors(t *testing.T) {
	a, err := app.Run(app.Config{Context: t.Context()})
	require.NoError(t, err)
	t.Cleanup(a.Stop)

	_, err = a.Spawn("echo", echoActor()...)
	require.NoError(t, err)
	_, err = a.Spawn("heartbeat", heartbeatActor(20*time.Millisecond)...)
	require.NoError(t, err)

	echo, err := proxy.Ask[Echo, Echo](t.Context(), a.Client(), "echo", Echo{Message: "hi"}, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "hi", echo.Message)

	require.Eventually(t, func() bool {
		stats, err := proxy.Ask[Stats, StatsOut](t.Context(), a.Client(), "heartbeat", Stats{}, 2*time.Second)
		return err == nil && stats.Beats >= 3 && !stats.Started.IsZero()
	}, 3*time.Second, 50*time.Millisecond)
}

func probeCmd() *cobra.Command {
	return &cobra.Command{Use: "probe", RunE: func(*cobra.Command, []string) error { return nil }}
}
