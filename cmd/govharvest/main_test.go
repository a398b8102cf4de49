package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/openlegis/govharvest/pkg/checkpoint"
	"github.com/openlegis/govharvest/pkg/ingest"
	"github.com/openlegis/govharvest/pkg/ledger"
	"github.com/openlegis/govharvest/pkg/ratelimit"
	"github.com/openlegis/govharvest/pkg/workerpool"
)

func testHarness(t *testing.T) *harness {
	t.Helper()
	pool, err := workerpool.New("harness-"+t.Name(), 2)
	if err != nil {
		t.Fatalf("workerpool.New() error = %v", err)
	}
	t.Cleanup(pool.Close)

	led := ledger.NewMemory()
	store := checkpoint.NewMemoryStore()
	coord, err := ingest.New(pool, led, store)
	if err != nil {
		t.Fatalf("ingest.New() error = %v", err)
	}

	return &harness{
		limiters: ratelimit.NewManager(),
		pool:     pool,
		ledger:   led,
		store:    store,
		coord:    coord,
	}
}

func TestStatusHandler(t *testing.T) {
	h := testHarness(t)

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	statusHandler(h)(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("status body not JSON: %v", err)
	}
	for _, key := range []string{"pool", "rate_limits", "ledger"} {
		if _, ok := body[key]; !ok {
			t.Errorf("status body missing %q", key)
		}
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := map[string]bool{"bills": false, "collection": false, "stats": false, "serve": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
