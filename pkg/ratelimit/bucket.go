// Package ratelimit implements client-side request budgeting for upstream
// APIs that publish fixed hourly quotas (api.congress.gov allows 5000
// requests/hour, api.govinfo.gov allows 1000 requests/hour). Each bucket
// wraps a golang.org/x/time/rate limiter so requests are spread smoothly
// over the window instead of bursting against a reset boundary.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limiting.
var (
	tokensAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "govharvest_rate_tokens_available",
		Help: "Current fractional tokens available per source",
	}, []string{"source"})

	acquiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_rate_acquired_total",
		Help: "Total tokens consumed per source",
	}, []string{"source"})

	waitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_rate_waits_total",
		Help: "Total acquires that had to wait for a token",
	}, []string{"source"})

	waitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "govharvest_rate_wait_seconds",
		Help:    "Time spent waiting for a token",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"source"})
)

// Stats is a read-only snapshot of a bucket.
type Stats struct {
	Name          string        `json:"name"`
	Capacity      int           `json:"capacity"`
	Window        time.Duration `json:"window"`
	Available     float64       `json:"available"`
	TotalAcquired uint64        `json:"total_acquired"`
	TotalWaits    uint64        `json:"total_waits"`
	TotalWaited   time.Duration `json:"total_waited"`
}

// Bucket is a named token bucket backed by rate.Limiter: tokens refill at
// capacity/window and burst up to capacity. State lives in memory only;
// a process restart starts from a full bucket, which slightly overshoots
// the quota after a crash and is an accepted approximation.
type Bucket struct {
	name     string
	capacity int
	window   time.Duration
	limiter  *rate.Limiter

	mu            sync.Mutex
	totalAcquired uint64
	totalWaits    uint64
	totalWaited   time.Duration

	logger zerolog.Logger
}

// NewBucket creates a token bucket named after its upstream source.
// Capacity is the request quota per window (e.g. 5000 per hour).
func NewBucket(name string, capacity int, window time.Duration) (*Bucket, error) {
	if name == "" {
		return nil, fmt.Errorf("ratelimit: bucket name is required")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be > 0 (got %d)", capacity)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be > 0 (got %s)", window)
	}

	b := &Bucket{
		name:     name,
		capacity: capacity,
		window:   window,
		limiter:  rate.NewLimiter(rate.Limit(float64(capacity)/window.Seconds()), capacity),
		logger:   log.With().Str("component", "ratelimit").Str("source", name).Logger(),
	}
	tokensAvailable.WithLabelValues(name).Set(b.limiter.Tokens())
	return b, nil
}

// Acquire blocks until a token is available, consumes it and returns.
// It returns early with the context error if ctx is cancelled while waiting.
func (b *Bucket) Acquire(ctx context.Context) error {
	var waited time.Duration

	if !b.limiter.Allow() {
		start := time.Now()
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("ratelimit: acquire cancelled: %w", err)
		}
		waited = time.Since(start)
	}

	b.mu.Lock()
	b.totalAcquired++
	if waited > 0 {
		b.totalWaits++
		b.totalWaited += waited
	}
	b.mu.Unlock()

	tokensAvailable.WithLabelValues(b.name).Set(b.limiter.Tokens())
	acquiredTotal.WithLabelValues(b.name).Inc()
	if waited > 0 {
		waitsTotal.WithLabelValues(b.name).Inc()
		waitSeconds.WithLabelValues(b.name).Observe(waited.Seconds())
		b.logger.Debug().
			Dur("waited", waited).
			Msg("Token acquired after wait")
	}
	return nil
}

// Remaining returns the current available tokens without consuming any.
func (b *Bucket) Remaining() float64 {
	return b.limiter.Tokens()
}

// Stats returns a snapshot of the bucket state and counters.
func (b *Bucket) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:          b.name,
		Capacity:      b.capacity,
		Window:        b.window,
		Available:     b.limiter.Tokens(),
		TotalAcquired: b.totalAcquired,
		TotalWaits:    b.totalWaits,
		TotalWaited:   b.totalWaited,
	}
}
