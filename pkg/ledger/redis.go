package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Redis key layout: one hash per source holding resourceID -> record JSON,
// plus a meta hash carrying first/last recorded timestamps and a set of
// known source keys for cross-source stats.
const (
	redisSourceSetKey = "govharvest:ledger:sources"
	redisHashPrefix   = "govharvest:ledger:src:"
	redisMetaPrefix   = "govharvest:ledger:meta:"
)

// Redis is a ledger backed by a shared Redis instance, for deployments where
// several harvester processes must agree on what has been ingested.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedis creates a Redis-backed ledger.
func NewRedis(client *redis.Client) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger: redis client is required")
	}
	return &Redis{
		client: client,
		logger: log.With().Str("component", "ledger").Str("backend", "redis").Logger(),
	}, nil
}

// ShouldIngest implements Ledger.
func (r *Redis) ShouldIngest(ctx context.Context, sourceKey, resourceID, fingerprint string) (bool, error) {
	data, err := r.client.HGet(ctx, redisHashPrefix+sourceKey, resourceID).Bytes()
	if err == redis.Nil {
		observeDecision("redis", true)
		return true, nil
	}
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("redis", "get").Inc()
		return false, fmt.Errorf("ledger hget: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		ledgerErrorsTotal.WithLabelValues("redis", "get").Inc()
		return false, fmt.Errorf("decode ledger record: %w", err)
	}

	ingest := rec.Fingerprint != fingerprint
	observeDecision("redis", ingest)
	return ingest, nil
}

// Record implements Ledger.
func (r *Redis) Record(ctx context.Context, rec Record) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ledger record: %w", err)
	}

	hashKey := redisHashPrefix + rec.SourceKey
	metaKey := redisMetaPrefix + rec.SourceKey
	recordedAt := rec.RecordedAt.Format(time.RFC3339Nano)

	pipe := r.client.TxPipeline()
	setCmd := pipe.HSet(ctx, hashKey, rec.ResourceID, data)
	pipe.SAdd(ctx, redisSourceSetKey, rec.SourceKey)
	pipe.HSetNX(ctx, metaKey, "first_recorded_at", recordedAt)
	pipe.HSet(ctx, metaKey, "last_recorded_at", recordedAt)
	if _, err := pipe.Exec(ctx); err != nil {
		ledgerErrorsTotal.WithLabelValues("redis", "put").Inc()
		return fmt.Errorf("ledger hset: %w", err)
	}

	// HSet returns 1 for a new field, 0 for an overwrite.
	observeRecord("redis", setCmd.Val() == 1)
	return nil
}

// Stats implements Ledger. An empty sourceKey aggregates over all sources.
func (r *Redis) Stats(ctx context.Context, sourceKey string) (Stats, error) {
	if sourceKey != "" {
		return r.sourceStats(ctx, sourceKey)
	}

	sources, err := r.client.SMembers(ctx, redisSourceSetKey).Result()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("redis", "stats").Inc()
		return Stats{}, fmt.Errorf("ledger sources: %w", err)
	}

	var total Stats
	for _, src := range sources {
		s, err := r.sourceStats(ctx, src)
		if err != nil {
			return Stats{}, err
		}
		total.Total += s.Total
		if total.FirstRecordedAt.IsZero() || (!s.FirstRecordedAt.IsZero() && s.FirstRecordedAt.Before(total.FirstRecordedAt)) {
			total.FirstRecordedAt = s.FirstRecordedAt
		}
		if s.LastRecordedAt.After(total.LastRecordedAt) {
			total.LastRecordedAt = s.LastRecordedAt
		}
	}
	return total, nil
}

func (r *Redis) sourceStats(ctx context.Context, sourceKey string) (Stats, error) {
	total, err := r.client.HLen(ctx, redisHashPrefix+sourceKey).Result()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("redis", "stats").Inc()
		return Stats{}, fmt.Errorf("ledger hlen: %w", err)
	}

	meta, err := r.client.HGetAll(ctx, redisMetaPrefix+sourceKey).Result()
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("redis", "stats").Inc()
		return Stats{}, fmt.Errorf("ledger meta: %w", err)
	}

	stats := Stats{SourceKey: sourceKey, Total: total}
	if v := meta["first_recorded_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			stats.FirstRecordedAt = t
		}
	}
	if v := meta["last_recorded_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			stats.LastRecordedAt = t
		}
	}
	return stats, nil
}

// Close implements Ledger. The Redis client is owned by the caller and is
// not closed here.
func (r *Redis) Close() error {
	return nil
}
