// Package ingest coordinates bulk harvesting runs: it walks a paginated
// listing, fans the items out to a priority worker pool, consults the
// deduplication ledger before handing anything to the sink, and checkpoints
// the cursor once each page's items have fully resolved so an interrupted
// run resumes where it stopped without skipping unledgered items.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/openlegis/govharvest/pkg/checkpoint"
	"github.com/openlegis/govharvest/pkg/client"
	"github.com/openlegis/govharvest/pkg/ledger"
	"github.com/openlegis/govharvest/pkg/pagination"
	"github.com/openlegis/govharvest/pkg/workerpool"
)

// Prometheus metrics for ingestion runs.
var (
	ingestOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_ingest_outcomes_total",
		Help: "Per-item ingestion outcomes by source",
	}, []string{"source", "outcome"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_runs_total",
		Help: "Ingestion runs by source and final status",
	}, []string{"source", "status"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govharvest_run_duration_seconds",
		Help:    "Wall-clock duration of ingestion runs",
		Buckets: []float64{1, 10, 60, 300, 1800, 7200},
	}, []string{"source"})
)

// Per-item outcomes.
const (
	outcomeIngested = "ingested"
	outcomeSkipped  = "skipped"
	outcomeNotFound = "not_found"
	outcomeFailed   = "failed"
)

// Job describes one harvesting run over a single listing.
type Job struct {
	// SourceKey identifies the listing, e.g. "congress:bill:118". It keys
	// the ledger records and the resume checkpoint.
	SourceKey string

	// InitialCursor is where a fresh walk starts. A saved checkpoint for
	// SourceKey takes precedence unless Restart is set.
	InitialCursor pagination.Cursor

	// Restart ignores any saved checkpoint and walks from InitialCursor.
	Restart bool

	// FetchPage fetches one listing page (see pagination.FetchFunc).
	FetchPage pagination.FetchFunc

	// ItemID extracts the stable resource identifier from a listing item.
	ItemID func(item json.RawMessage) (string, error)

	// FetchDetail, when set, fetches the full resource body for an item;
	// the detail body is what gets fingerprinted and passed to the sink.
	// When nil the listing item itself is used.
	FetchDetail func(ctx context.Context, resourceID string) ([]byte, error)

	// Fingerprint overrides the content fingerprint. Defaults to
	// ledger.Fingerprint (sha256 over canonical JSON).
	Fingerprint func(raw []byte) string

	// Sink receives each new-or-changed resource body. The ledger is only
	// updated after the sink accepts the item, so a failed delivery is
	// retried on the next run. Nil means record-only (dry harvest).
	Sink func(ctx context.Context, sourceKey, resourceID string, body []byte) error

	// Priority of this job's tasks in the shared pool. Higher runs first.
	Priority int

	// Metadata is stored verbatim on each ledger record.
	Metadata string
}

// Summary is the terminal report of one run.
type Summary struct {
	RunID     string            `json:"run_id"`
	SourceKey string            `json:"source_key"`
	Pages     int               `json:"pages"`
	Ingested  int               `json:"ingested"`
	Skipped   int               `json:"skipped"`
	NotFound  int               `json:"not_found"`
	Failed    int               `json:"failed"`
	Cursor    pagination.Cursor `json:"cursor"`
	Resumed   bool              `json:"resumed"`
	Duration  time.Duration     `json:"duration"`
}

// Items returns the total number of items the run examined.
func (s Summary) Items() int {
	return s.Ingested + s.Skipped + s.NotFound + s.Failed
}

// Coordinator runs ingestion jobs against shared infrastructure. All jobs
// share one pool, one ledger and one checkpoint store; per-source rate
// limits live inside each job's fetch functions.
type Coordinator struct {
	pool        *workerpool.Pool
	ledger      ledger.Ledger
	checkpoints checkpoint.Store
	keys        *ledger.KeyLock
	logger      zerolog.Logger
}

// New creates a coordinator.
func New(pool *workerpool.Pool, led ledger.Ledger, store checkpoint.Store) (*Coordinator, error) {
	if pool == nil {
		return nil, fmt.Errorf("ingest: worker pool is required")
	}
	if led == nil {
		return nil, fmt.Errorf("ingest: ledger is required")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: checkpoint store is required")
	}
	return &Coordinator{
		pool:        pool,
		ledger:      led,
		checkpoints: store,
		keys:        ledger.NewKeyLock(),
		logger:      log.With().Str("component", "ingest").Logger(),
	}, nil
}

// Run executes one job to completion: walk every page, process every item,
// and persist the exhausted cursor. Each page is fetched, processed through
// the pool and tallied before its cursor is checkpointed. On a page fetch
// error or context cancellation the walk stops at the last completed page
// and the partial Summary is returned alongside the error.
func (c *Coordinator) Run(ctx context.Context, job Job) (Summary, error) {
	start := time.Now()
	sum := Summary{
		RunID:     uuid.NewString(),
		SourceKey: job.SourceKey,
	}

	if err := validateJob(job); err != nil {
		return sum, err
	}
	if job.Fingerprint == nil {
		job.Fingerprint = ledger.Fingerprint
	}

	logger := c.logger.With().
		Str("source", job.SourceKey).
		Str("run_id", sum.RunID).
		Logger()

	cursor, resumed, err := c.startCursor(ctx, job)
	if err != nil {
		return sum, err
	}
	sum.Resumed = resumed

	driver, err := pagination.NewDriver(job.FetchPage, cursor)
	if err != nil {
		return sum, err
	}

	logger.Info().
		Bool("resumed", resumed).
		Int("offset", cursor.Offset).
		Msg("Ingestion run started")

	var walkErr error

	for !driver.Exhausted() {
		if err := ctx.Err(); err != nil {
			walkErr = err
			break
		}

		items, err := driver.NextPage(ctx)
		if err != nil {
			walkErr = err
			break
		}

		futures := make([]*workerpool.Future, 0, len(items))
		for _, item := range items {
			futures = append(futures, c.submitItem(ctx, job, item))
		}
		c.gather(futures, &sum)

		// Checkpoint only once the page's items have resolved: a crash
		// after the save must never skip items the ledger has not seen.
		if err := c.checkpoints.Save(ctx, job.SourceKey, driver.Cursor()); err != nil {
			// Resumability degrades but the run itself is unharmed.
			logger.Warn().Err(err).Msg("Checkpoint save failed")
		}
	}

	sum.Pages = driver.Pages()
	sum.Cursor = driver.Cursor()
	sum.Duration = time.Since(start)

	runDuration.WithLabelValues(job.SourceKey).Observe(sum.Duration.Seconds())

	if walkErr != nil {
		runsTotal.WithLabelValues(job.SourceKey, "aborted").Inc()
		logger.Warn().Err(walkErr).
			Int("pages", sum.Pages).
			Int("items", sum.Items()).
			Msg("Ingestion run aborted")
		return sum, fmt.Errorf("ingest %s: %w", job.SourceKey, walkErr)
	}

	runsTotal.WithLabelValues(job.SourceKey, "completed").Inc()
	logger.Info().
		Int("pages", sum.Pages).
		Int("ingested", sum.Ingested).
		Int("skipped", sum.Skipped).
		Int("not_found", sum.NotFound).
		Int("failed", sum.Failed).
		Dur("duration", sum.Duration).
		Msg("Ingestion run completed")

	return sum, nil
}

// IngestAll runs the jobs concurrently and returns their summaries in job
// order. The first job error cancels the remaining walks; in-flight items
// still finish through the pool.
func (c *Coordinator) IngestAll(ctx context.Context, jobs []Job) ([]Summary, error) {
	summaries := make([]Summary, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			sum, err := c.Run(gctx, job)
			summaries[i] = sum
			return err
		})
	}

	err := g.Wait()
	return summaries, err
}

// Resume reports whether a run for sourceKey would resume mid-walk, and the
// cursor it would resume from.
func (c *Coordinator) Resume(ctx context.Context, sourceKey string) (pagination.Cursor, bool, error) {
	cur, err := c.checkpoints.Load(ctx, sourceKey)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return pagination.Cursor{}, false, nil
	}
	if err != nil {
		return pagination.Cursor{}, false, err
	}
	return cur, cur.HasMore, nil
}

func validateJob(job Job) error {
	if job.SourceKey == "" {
		return fmt.Errorf("ingest: source key is required")
	}
	if job.FetchPage == nil {
		return fmt.Errorf("ingest: fetch function is required")
	}
	if job.ItemID == nil {
		return fmt.Errorf("ingest: item ID extractor is required")
	}
	return nil
}

func (c *Coordinator) startCursor(ctx context.Context, job Job) (pagination.Cursor, bool, error) {
	if job.Restart {
		if err := c.checkpoints.Clear(ctx, job.SourceKey); err != nil {
			return pagination.Cursor{}, false, fmt.Errorf("clear checkpoint: %w", err)
		}
		return job.InitialCursor, false, nil
	}

	saved, err := c.checkpoints.Load(ctx, job.SourceKey)
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		return job.InitialCursor, false, nil
	}
	if err != nil {
		return pagination.Cursor{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if !saved.HasMore {
		// Previous run finished this listing; start over to pick up
		// new and changed records. The ledger keeps re-runs cheap.
		return job.InitialCursor, false, nil
	}
	return saved, true, nil
}

// submitItem enqueues the fetch-fingerprint-record work for one listing item.
// The executor returns the item's outcome string.
func (c *Coordinator) submitItem(ctx context.Context, job Job, item json.RawMessage) *workerpool.Future {
	task := workerpool.Task{Priority: job.Priority}

	return c.pool.Submit(ctx, task, func(ctx context.Context) (any, error) {
		resourceID, err := job.ItemID(item)
		if err != nil {
			return outcomeFailed, fmt.Errorf("extract resource id: %w", err)
		}

		body := []byte(item)
		if job.FetchDetail != nil {
			body, err = job.FetchDetail(ctx, resourceID)
			if errors.Is(err, client.ErrNotFound) {
				// Listed but gone upstream. Not a failure and not
				// ledgered: if it reappears it should be ingested.
				c.logger.Warn().
					Str("source", job.SourceKey).
					Str("resource_id", resourceID).
					Msg("Listed resource no longer exists upstream")
				return outcomeNotFound, nil
			}
			if err != nil {
				return outcomeFailed, fmt.Errorf("fetch detail %s: %w", resourceID, err)
			}
		}

		return c.ingestOne(ctx, job, resourceID, body)
	})
}

// ingestOne runs the ShouldIngest-Record pair under the per-key lock so two
// workers racing on the same resource cannot both decide to ingest it.
func (c *Coordinator) ingestOne(ctx context.Context, job Job, resourceID string, body []byte) (string, error) {
	fp := job.Fingerprint(body)

	key := ledger.Key(job.SourceKey, resourceID)
	c.keys.Lock(key)
	defer c.keys.Unlock(key)

	ingest, err := c.ledger.ShouldIngest(ctx, job.SourceKey, resourceID, fp)
	if err != nil {
		return outcomeFailed, fmt.Errorf("ledger decision %s: %w", resourceID, err)
	}
	if !ingest {
		return outcomeSkipped, nil
	}

	if job.Sink != nil {
		if err := job.Sink(ctx, job.SourceKey, resourceID, body); err != nil {
			// Ledger untouched: the item stays eligible next run.
			return outcomeFailed, fmt.Errorf("sink %s: %w", resourceID, err)
		}
	}

	rec := ledger.Record{
		SourceKey:   job.SourceKey,
		ResourceID:  resourceID,
		Fingerprint: fp,
		RecordedAt:  time.Now().UTC(),
		Metadata:    job.Metadata,
	}
	if err := c.ledger.Record(ctx, rec); err != nil {
		return outcomeFailed, fmt.Errorf("ledger record %s: %w", resourceID, err)
	}

	return outcomeIngested, nil
}

// gather waits for every submitted future and tallies outcomes into sum.
// Waiting uses context.Background: even on cancellation the submitted tasks
// resolve (the pool runs or fails them), and the tally must include them.
func (c *Coordinator) gather(futures []*workerpool.Future, sum *Summary) {
	for _, fut := range futures {
		res, err := fut.Wait(context.Background())
		if err != nil {
			sum.Failed++
			ingestOutcomesTotal.WithLabelValues(sum.SourceKey, outcomeFailed).Inc()
			continue
		}

		outcome, _ := res.Value.(string)
		if res.Err != nil || outcome == "" {
			outcome = outcomeFailed
		}
		switch outcome {
		case outcomeIngested:
			sum.Ingested++
		case outcomeSkipped:
			sum.Skipped++
		case outcomeNotFound:
			sum.NotFound++
		default:
			sum.Failed++
		}
		ingestOutcomesTotal.WithLabelValues(sum.SourceKey, outcome).Inc()
	}
}

// Stats surfaces ledger aggregates for status reporting. An empty sourceKey
// aggregates across all sources.
func (c *Coordinator) Stats(ctx context.Context, sourceKey string) (ledger.Stats, error) {
	return c.ledger.Stats(ctx, sourceKey)
}
