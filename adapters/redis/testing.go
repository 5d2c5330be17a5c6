package redis

import (
	"context"
	"log/slog"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type Testing interface {
	require.TestingT
	Context() context.Context
	Logf(format string, args ...any)
	Cleanup(func())
}

// NewTestContainer starts redis and returns a BusConfig pointing at it. The
// container is removed on test cleanup.
func NewTestContainer(t Testing) BusConfig {
	ctx := t.Context()
	redisC, err := testcontainers.Run(
		ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisC); err != nil {
			t.Errorf("failed to terminate container: %s", err.Error())
		}
	})

	addr, err := redisC.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	t.Logf("redis addr: %s", addr)
	return BusConfig{Addr: addr, Log: slog.New(slog.DiscardHandler)}
}
