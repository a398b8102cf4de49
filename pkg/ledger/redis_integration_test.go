//go:build integration

package ledger

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestRedisLedger_Integration_Contract(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	led, err := NewRedis(client)
	require.NoError(t, err)
	defer led.Close()

	ledgerContract(t, led)
}

func TestRedisLedger_Integration_SharedAcrossClients(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()
	ctx := context.Background()

	writer, err := NewRedis(client)
	require.NoError(t, err)
	require.NoError(t, writer.Record(ctx, Record{
		SourceKey:   "congress_bills",
		ResourceID:  "118-hr-1",
		Fingerprint: "fp-1",
	}))

	// A second ledger instance over the same Redis sees the record.
	reader, err := NewRedis(client)
	require.NoError(t, err)

	ok, err := reader.ShouldIngest(ctx, "congress_bills", "118-hr-1", "fp-1")
	require.NoError(t, err)
	require.False(t, ok, "record written by one process must be visible to another")
}
