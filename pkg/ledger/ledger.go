// Package ledger records which upstream resources have been ingested, and
// with what content fingerprint, so bulk runs skip unchanged records instead
// of re-fetching them.
//
// A record is keyed by (source key, resource id) and holds exactly one
// fingerprint at a time: re-recording with the same fingerprint is a no-op
// skip, re-recording with a different fingerprint replaces the entry. Three
// backends implement the contract: in-memory (tests, dry runs), LevelDB
// (embedded single-process deployments) and Redis (shared state across
// processes).
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for ledger operations.
var (
	ledgerDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_ledger_decisions_total",
		Help: "ShouldIngest decisions by outcome (ingest, skip)",
	}, []string{"backend", "outcome"})

	ledgerRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_ledger_records_total",
		Help: "Record upserts by kind (insert, update)",
	}, []string{"backend", "kind"})

	ledgerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_ledger_errors_total",
		Help: "Ledger operation errors",
	}, []string{"backend", "operation"})
)

// ErrNotFound indicates no record exists for a (source, resource) pair.
var ErrNotFound = errors.New("ledger: record not found")

// Record is one ledger entry. The (SourceKey, ResourceID) pair is unique;
// an upsert replaces the stored fingerprint rather than duplicating the row.
type Record struct {
	SourceKey   string    `json:"source_key"`
	ResourceID  string    `json:"resource_id"`
	Fingerprint string    `json:"fingerprint"`
	RecordedAt  time.Time `json:"recorded_at"`
	Metadata    string    `json:"metadata,omitempty"`
}

// Stats aggregates a ledger, optionally scoped to one source key.
type Stats struct {
	SourceKey       string    `json:"source_key,omitempty"`
	Total           int64     `json:"total"`
	FirstRecordedAt time.Time `json:"first_recorded_at,omitzero"`
	LastRecordedAt  time.Time `json:"last_recorded_at,omitzero"`
}

// Ledger is the deduplication contract.
//
// ShouldIngest returns true when no record exists for (sourceKey, resourceID)
// with that exact fingerprint, i.e. the content is new or changed. Record
// upserts the entry. A write failure is scoped to that single entry and never
// corrupts unrelated keys.
//
// Implementations serialize operations per exact key; callers that need the
// ShouldIngest-then-Record pair to be atomic against concurrent workers on
// the same key hold a KeyLock around the pair (the ingest coordinator does).
type Ledger interface {
	ShouldIngest(ctx context.Context, sourceKey, resourceID, fingerprint string) (bool, error)
	Record(ctx context.Context, rec Record) error
	Stats(ctx context.Context, sourceKey string) (Stats, error)
	Close() error
}

func observeDecision(backend string, ingest bool) {
	if ingest {
		ledgerDecisionsTotal.WithLabelValues(backend, "ingest").Inc()
	} else {
		ledgerDecisionsTotal.WithLabelValues(backend, "skip").Inc()
	}
}

func observeRecord(backend string, inserted bool) {
	if inserted {
		ledgerRecordsTotal.WithLabelValues(backend, "insert").Inc()
	} else {
		ledgerRecordsTotal.WithLabelValues(backend, "update").Inc()
	}
}
