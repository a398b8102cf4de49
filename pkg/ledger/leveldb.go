package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const recordPrefix = "rec:"

// LevelDB is an embedded on-disk ledger backed by goleveldb. It replaces the
// need for an external store in single-process deployments.
type LevelDB struct {
	db     *leveldb.DB
	logger zerolog.Logger
}

// OpenLevelDB opens (or creates) a ledger database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	return &LevelDB{
		db:     db,
		logger: log.With().Str("component", "ledger").Str("backend", "leveldb").Logger(),
	}, nil
}

func recordKey(sourceKey, resourceID string) []byte {
	return []byte(recordPrefix + Key(sourceKey, resourceID))
}

// ShouldIngest implements Ledger.
func (l *LevelDB) ShouldIngest(ctx context.Context, sourceKey, resourceID, fingerprint string) (bool, error) {
	data, err := l.db.Get(recordKey(sourceKey, resourceID), nil)
	if err == leveldb.ErrNotFound {
		observeDecision("leveldb", true)
		return true, nil
	}
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("leveldb", "get").Inc()
		return false, fmt.Errorf("ledger get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		ledgerErrorsTotal.WithLabelValues("leveldb", "get").Inc()
		return false, fmt.Errorf("decode ledger record: %w", err)
	}

	ingest := rec.Fingerprint != fingerprint
	observeDecision("leveldb", ingest)
	return ingest, nil
}

// Record implements Ledger.
func (l *LevelDB) Record(ctx context.Context, rec Record) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	key := recordKey(rec.SourceKey, rec.ResourceID)
	existed, err := l.db.Has(key, nil)
	if err != nil {
		ledgerErrorsTotal.WithLabelValues("leveldb", "put").Inc()
		return fmt.Errorf("ledger has: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ledger record: %w", err)
	}
	if err := l.db.Put(key, data, nil); err != nil {
		ledgerErrorsTotal.WithLabelValues("leveldb", "put").Inc()
		return fmt.Errorf("ledger put: %w", err)
	}

	observeRecord("leveldb", !existed)
	l.logger.Debug().
		Str("source", rec.SourceKey).
		Str("resource", rec.ResourceID).
		Bool("update", existed).
		Msg("Ledger record written")
	return nil
}

// Stats implements Ledger by scanning the record keyspace. An empty
// sourceKey aggregates over all sources.
func (l *LevelDB) Stats(ctx context.Context, sourceKey string) (Stats, error) {
	prefix := recordPrefix
	if sourceKey != "" {
		prefix += sourceKey + "\x00"
	}

	stats := Stats{SourceKey: sourceKey}
	iter := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		stats.Total++
		if stats.FirstRecordedAt.IsZero() || rec.RecordedAt.Before(stats.FirstRecordedAt) {
			stats.FirstRecordedAt = rec.RecordedAt
		}
		if rec.RecordedAt.After(stats.LastRecordedAt) {
			stats.LastRecordedAt = rec.RecordedAt
		}
	}
	if err := iter.Error(); err != nil {
		ledgerErrorsTotal.WithLabelValues("leveldb", "stats").Inc()
		return Stats{}, fmt.Errorf("ledger stats scan: %w", err)
	}
	return stats, nil
}

// Close implements Ledger.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
