//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openlegis/govharvest/internal/testutil"
	"github.com/openlegis/govharvest/pkg/checkpoint"
	"github.com/openlegis/govharvest/pkg/client"
	"github.com/openlegis/govharvest/pkg/congress"
	"github.com/openlegis/govharvest/pkg/ingest"
	"github.com/openlegis/govharvest/pkg/ledger"
	"github.com/openlegis/govharvest/pkg/ratelimit"
	"github.com/openlegis/govharvest/pkg/workerpool"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// buildStack wires the full harvesting stack against a mock Congress.gov
// API and a real Redis for ledger and checkpoints.
func buildStack(t *testing.T, rdb *redis.Client, mockURL string) (*ingest.Coordinator, *congress.Source) {
	t.Helper()

	limiter, err := ratelimit.NewBucket("congress-int-"+t.Name(), 5000, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create rate limiter: %v", err)
	}

	apiClient, err := client.New(client.DefaultConfig(mockURL, "integration-key", limiter))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	src, err := congress.NewSource(apiClient)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	led, err := ledger.NewRedis(rdb)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	store, err := checkpoint.NewRedisStore(rdb)
	if err != nil {
		t.Fatalf("Failed to create checkpoint store: %v", err)
	}

	pool, err := workerpool.New("int-"+t.Name(), 4)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	coord, err := ingest.New(pool, led, store)
	if err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	return coord, src
}

// TestFullHarvestFlow drives the complete flow: rate limit -> pagination ->
// dedup ledger -> Redis persistence, across two runs with one change in
// between.
func TestFullHarvestFlow(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()

	var mu sync.Mutex
	bills := testutil.MakeBills(118, 530)
	mock.ServeBills(118, &bills, &mu)

	coord, src := buildStack(t, rdb, mock.URL())
	ctx := context.Background()

	// First run: everything is new.
	sum, err := coord.Run(ctx, src.BillsJob(118, 5))
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if sum.Ingested != 530 || sum.Pages != 3 {
		t.Fatalf("first run = %d ingested over %d pages, want 530 over 3", sum.Ingested, sum.Pages)
	}

	stats, err := coord.Stats(ctx, "congress:bill:118")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 530 {
		t.Fatalf("ledger total = %d, want 530", stats.Total)
	}

	// One bill changes upstream.
	mu.Lock()
	bills[42]["title"] = "An Act concerning matter 42 (amended)"
	mu.Unlock()

	sum2, err := coord.Run(ctx, src.BillsJob(118, 5))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if sum2.Ingested != 1 || sum2.Skipped != 529 {
		t.Fatalf("second run = %d ingested / %d skipped, want 1 / 529", sum2.Ingested, sum2.Skipped)
	}

	stats, err = coord.Stats(ctx, "congress:bill:118")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 530 {
		t.Fatalf("ledger total after update = %d, want 530 (no duplicate)", stats.Total)
	}
}

// TestResumeAcrossProcesses simulates a crash by building a second stack on
// the same Redis and resuming from the persisted checkpoint.
func TestResumeAcrossProcesses(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()

	var mu sync.Mutex
	bills := testutil.MakeBills(118, 530)
	mock.ServeBills(118, &bills, &mu)

	coord, src := buildStack(t, rdb, mock.URL())
	ctx := context.Background()

	// Simulate a prior process that got through page 1 before dying.
	job := src.BillsJob(118, 5)
	midCursor := job.InitialCursor
	midCursor.Offset = 250
	store, err := checkpoint.NewRedisStore(rdb)
	if err != nil {
		t.Fatalf("Failed to create checkpoint store: %v", err)
	}
	if err := store.Save(ctx, job.SourceKey, midCursor); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	sum, err := coord.Run(ctx, job)
	if err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if !sum.Resumed {
		t.Error("run should report it resumed")
	}
	if sum.Pages != 2 {
		t.Errorf("resumed run fetched %d pages, want 2", sum.Pages)
	}
	if sum.Ingested != 280 {
		t.Errorf("resumed run ingested %d, want 280", sum.Ingested)
	}

	// The completed cursor persists; the next run starts fresh.
	cur, err := store.Load(ctx, job.SourceKey)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cur.HasMore {
		t.Error("completed walk should leave a terminal cursor")
	}
}
