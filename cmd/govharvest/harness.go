package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openlegis/govharvest/internal/config"
	"github.com/openlegis/govharvest/pkg/checkpoint"
	"github.com/openlegis/govharvest/pkg/client"
	"github.com/openlegis/govharvest/pkg/ingest"
	"github.com/openlegis/govharvest/pkg/ledger"
	"github.com/openlegis/govharvest/pkg/logging"
	"github.com/openlegis/govharvest/pkg/ratelimit"
	"github.com/openlegis/govharvest/pkg/workerpool"
)

// harness wires the shared infrastructure every subcommand needs.
type harness struct {
	cfg      config.Config
	limiters *ratelimit.Manager
	pool     *workerpool.Pool
	ledger   ledger.Ledger
	store    checkpoint.Store
	coord    *ingest.Coordinator

	closers []func() error
}

// newHarness loads config, sets up logging and builds the coordinator
// stack. Callers must Close it.
func newHarness() (*harness, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	h := &harness{cfg: cfg, limiters: ratelimit.NewManager()}

	if err := h.buildStorage(); err != nil {
		return nil, err
	}

	pool, err := workerpool.New("harvest", cfg.Pool.Concurrency)
	if err != nil {
		h.Close()
		return nil, err
	}
	h.pool = pool
	h.closers = append(h.closers, func() error { pool.Close(); return nil })

	coord, err := ingest.New(pool, h.ledger, h.store)
	if err != nil {
		h.Close()
		return nil, err
	}
	h.coord = coord

	return h, nil
}

// buildStorage selects the ledger and checkpoint backends. Redis keeps both
// in one shared instance; leveldb pairs the embedded ledger with an embedded
// checkpoint db; memory is for dry runs.
func (h *harness) buildStorage() error {
	switch h.cfg.Ledger.Backend {
	case "redis":
		opts, err := redis.ParseURL(h.cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		h.closers = append(h.closers, rdb.Close)

		led, err := ledger.NewRedis(rdb)
		if err != nil {
			return err
		}
		h.ledger = led

		store, err := checkpoint.NewRedisStore(rdb)
		if err != nil {
			return err
		}
		h.store = store

	case "leveldb":
		led, err := ledger.OpenLevelDB(h.cfg.Ledger.Path)
		if err != nil {
			return err
		}
		h.ledger = led
		h.closers = append(h.closers, led.Close)

		store, err := checkpoint.OpenLevelDBStore(h.cfg.Ledger.Path + "-checkpoints")
		if err != nil {
			return err
		}
		h.store = store
		h.closers = append(h.closers, store.Close)

	default:
		h.ledger = ledger.NewMemory()
		h.store = checkpoint.NewMemoryStore()
	}
	return nil
}

// congressClient builds the rate-limited Congress.gov client.
func (h *harness) congressClient() (*client.Client, error) {
	sc := h.cfg.Congress
	if sc.APIKey == "" {
		return nil, fmt.Errorf("congress API key is required (set CONGRESS_API_KEY)")
	}
	limiter, err := h.limiters.GetOrCreate("congress", sc.Quota, sc.Window)
	if err != nil {
		return nil, err
	}
	return client.New(client.DefaultConfig(sc.BaseURL, sc.APIKey, limiter))
}

// govinfoClient builds the rate-limited GovInfo client.
func (h *harness) govinfoClient() (*client.Client, error) {
	sc := h.cfg.GovInfo
	if sc.APIKey == "" {
		return nil, fmt.Errorf("govinfo API key is required (set GOVINFO_API_KEY)")
	}
	limiter, err := h.limiters.GetOrCreate("govinfo", sc.Quota, sc.Window)
	if err != nil {
		return nil, err
	}
	return client.New(client.DefaultConfig(sc.BaseURL, sc.APIKey, limiter))
}

// Close releases resources in reverse acquisition order.
func (h *harness) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		_ = h.closers[i]()
	}
}
