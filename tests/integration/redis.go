package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedRedis     testcontainers.Container
	sharedRedisMu   sync.Mutex
	sharedRedisAddr string
)

func startRedis(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, fmt.Sprintf("%s:%s", host, port.Port()), nil
}

// NewTestRedis returns a client on the package's shared Redis with the
// database flushed
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	skipShort(t)

	sharedRedisMu.Lock()
	if sharedRedis == nil {
		container, addr, err := startRedis(context.Background())
		if err != nil {
			sharedRedisMu.Unlock()
			require.NoError(t, err, "Failed to start Redis container")
		}
		sharedRedis = container
		sharedRedisAddr = addr
	}
	addr := sharedRedisAddr
	sharedRedisMu.Unlock()

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}
