package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory ledger for tests and dry runs. Nothing survives the
// process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// ShouldIngest implements Ledger.
func (m *Memory) ShouldIngest(ctx context.Context, sourceKey, resourceID, fingerprint string) (bool, error) {
	m.mu.RLock()
	rec, ok := m.records[Key(sourceKey, resourceID)]
	m.mu.RUnlock()

	ingest := !ok || rec.Fingerprint != fingerprint
	observeDecision("memory", ingest)
	return ingest, nil
}

// Record implements Ledger.
func (m *Memory) Record(ctx context.Context, rec Record) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	key := Key(rec.SourceKey, rec.ResourceID)

	m.mu.Lock()
	_, existed := m.records[key]
	m.records[key] = rec
	m.mu.Unlock()

	observeRecord("memory", !existed)
	return nil
}

// Stats implements Ledger. An empty sourceKey aggregates over all sources.
func (m *Memory) Stats(ctx context.Context, sourceKey string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{SourceKey: sourceKey}
	for _, rec := range m.records {
		if sourceKey != "" && rec.SourceKey != sourceKey {
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
	return stats, nil
}

// Close implements Ledger.
func (m *Memory) Close() error {
	return nil
}
