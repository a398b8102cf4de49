// Package metrics provides the centralized Prometheus registry for the
// harvester. All metrics are defined in their respective packages
// (ratelimit, ledger, workerpool, client, ingest) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - govharvest_rate_tokens_available{source} (Gauge): Fractional tokens left in the bucket
//   - govharvest_rate_acquired_total{source} (Counter): Tokens consumed
//   - govharvest_rate_waits_total{source} (Counter): Acquires that had to wait for refill
//   - govharvest_rate_wait_seconds{source} (Histogram): Time spent waiting for a token
//
// Ledger Metrics (pkg/ledger):
//   - govharvest_ledger_decisions_total{backend, outcome} (Counter): ShouldIngest decisions (ingest, skip)
//   - govharvest_ledger_records_total{backend, kind} (Counter): Record upserts (insert, update)
//   - govharvest_ledger_errors_total{backend, operation} (Counter): Ledger operation errors
//
// Worker Pool Metrics (pkg/workerpool):
//   - govharvest_pool_active_workers{pool} (Gauge): Tasks currently executing
//   - govharvest_pool_queued_tasks{pool} (Gauge): Tasks waiting in the priority queue
//   - govharvest_pool_completed_total{pool} (Counter): Tasks completed successfully
//   - govharvest_pool_failed_total{pool} (Counter): Tasks that returned an error
//
// Request Metrics (pkg/client):
//   - govharvest_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and HTTP status
//   - govharvest_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//   - govharvest_request_errors_total{class} (Counter): Errors by class (client, server, rate_limit, not_found, network)
//
// Retry Metrics (pkg/client):
//   - govharvest_retries_total{error_class} (Counter): Retry attempts by error class
//   - govharvest_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - govharvest_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Ingestion Metrics (pkg/ingest):
//   - govharvest_ingest_outcomes_total{source, outcome} (Counter): Per-item outcomes (ingested, skipped, not_found, failed)
//   - govharvest_runs_total{source, status} (Counter): Runs by final status (completed, aborted)
//   - govharvest_run_duration_seconds{source} (Histogram): Wall-clock run duration
//
// Example Prometheus Queries:
//
//   # Skip Rate (dedup effectiveness)
//   sum(rate(govharvest_ingest_outcomes_total{outcome="skipped"}[5m])) /
//   sum(rate(govharvest_ingest_outcomes_total[5m]))
//
//   # Quota Pressure
//   govharvest_rate_tokens_available < 100
//
//   # Upstream Error Rate
//   rate(govharvest_request_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(govharvest_request_duration_seconds_bucket[5m]))
