// Package workerpool runs fetch-and-record tasks on a bounded set of
// workers with strict priority ordering. Submission is fire-and-continue:
// each task yields a Future resolved on completion, and Drain blocks until
// the pool is idle.
package workerpool

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for worker pool activity.
var (
	poolActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "govharvest_pool_active_workers",
		Help: "Tasks currently executing",
	}, []string{"pool"})

	poolQueued = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "govharvest_pool_queued_tasks",
		Help: "Tasks waiting in the priority queue",
	}, []string{"pool"})

	poolCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_pool_completed_total",
		Help: "Tasks completed successfully",
	}, []string{"pool"})

	poolFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "govharvest_pool_failed_total",
		Help: "Tasks that returned an error",
	}, []string{"pool"})
)

// ErrPoolClosed is returned on futures of tasks submitted after Close.
var ErrPoolClosed = errors.New("workerpool: pool closed")

// Task tags a unit of work. IDs are caller-defined and NOT deduplicated by
// the pool: two submissions with the same ID both run. Exactly-once per
// resource is the caller's concern (the ingest coordinator enforces it via
// the ledger).
type Task struct {
	ID       string
	Priority int
	Payload  any
}

// Executor is the unit of work.
type Executor func(ctx context.Context) (any, error)

// Result is the terminal outcome of one task.
type Result struct {
	TaskID   string
	Value    any
	Err      error
	Duration time.Duration
}

// Future resolves once its task completes or fails.
type Future struct {
	done chan struct{}
	res  Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(res Result) {
	f.res = res
	close(f.done)
}

// Done returns a channel closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task completes or ctx is cancelled. A task error is
// reported inside the Result, not as Wait's error.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("workerpool: wait cancelled: %w", ctx.Err())
	}
}

// State is a point-in-time snapshot of the pool.
type State struct {
	ConcurrencyLimit int    `json:"concurrency_limit"`
	Active           int    `json:"active"`
	Queued           int    `json:"queued"`
	Completed        uint64 `json:"completed"`
	Failed           uint64 `json:"failed"`
	Paused           bool   `json:"paused"`
}

type queuedTask struct {
	task Task
	fn   Executor
	ctx  context.Context
	fut  *Future
	seq  uint64
}

// taskHeap orders by priority descending, then submission order (FIFO among
// equal priorities).
type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*queuedTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Pool executes tasks on a fixed number of worker goroutines.
type Pool struct {
	name  string
	limit int

	mu        sync.Mutex
	cond      *sync.Cond
	queue     taskHeap
	seq       uint64
	active    int
	completed uint64
	failed    uint64
	paused    bool
	closed    bool

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// New creates a pool and starts its workers.
func New(name string, concurrency int) (*Pool, error) {
	if name == "" {
		return nil, fmt.Errorf("workerpool: name is required")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("workerpool: concurrency must be > 0 (got %d)", concurrency)
	}

	p := &Pool{
		name:   name,
		limit:  concurrency,
		logger: log.With().Str("component", "workerpool").Str("pool", name).Logger(),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debug().Int("workers", concurrency).Msg("Worker pool started")
	return p, nil
}

// Submit enqueues fn tagged with task. It never blocks the submitter; the
// returned Future resolves when the work completes or fails. An empty task
// ID gets a generated one. Submitting after Close resolves the future
// immediately with ErrPoolClosed.
func (p *Pool) Submit(ctx context.Context, task Task, fn Executor) *Future {
	fut := newFuture()
	if fn == nil {
		fut.resolve(Result{TaskID: task.ID, Err: fmt.Errorf("workerpool: nil executor")})
		return fut
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		fut.resolve(Result{TaskID: task.ID, Err: ErrPoolClosed})
		return fut
	}
	p.seq++
	heap.Push(&p.queue, &queuedTask{task: task, fn: fn, ctx: ctx, fut: fut, seq: p.seq})
	poolQueued.WithLabelValues(p.name).Set(float64(p.queue.Len()))
	// Broadcast, not Signal: a Drain waiter shares the same cond and must
	// not swallow the wakeup meant for an idle worker.
	p.cond.Broadcast()
	p.mu.Unlock()

	return fut
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for !p.closed && (p.paused || p.queue.Len() == 0) {
			p.cond.Wait()
		}
		if p.closed && p.queue.Len() == 0 {
			p.mu.Unlock()
			return
		}
		qt := heap.Pop(&p.queue).(*queuedTask)
		p.active++
		poolQueued.WithLabelValues(p.name).Set(float64(p.queue.Len()))
		poolActive.WithLabelValues(p.name).Set(float64(p.active))
		p.mu.Unlock()

		res := p.execute(qt, id)

		p.mu.Lock()
		p.active--
		if res.Err != nil {
			p.failed++
		} else {
			p.completed++
		}
		poolActive.WithLabelValues(p.name).Set(float64(p.active))
		p.cond.Broadcast()
		p.mu.Unlock()

		if res.Err != nil {
			poolFailedTotal.WithLabelValues(p.name).Inc()
		} else {
			poolCompletedTotal.WithLabelValues(p.name).Inc()
		}
	}
}

func (p *Pool) execute(qt *queuedTask, workerID int) Result {
	start := time.Now()
	res := Result{TaskID: qt.task.ID}

	if err := qt.ctx.Err(); err != nil {
		res.Err = err
	} else {
		res.Value, res.Err = invoke(qt.fn, qt.ctx)
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		p.logger.Warn().
			Err(res.Err).
			Int("worker_id", workerID).
			Str("task_id", qt.task.ID).
			Dur("duration", res.Duration).
			Msg("Task failed")
	}

	qt.fut.resolve(res)
	return res
}

// invoke runs fn, converting a panic into an error so a bad executor cannot
// kill its worker.
func invoke(fn Executor, ctx context.Context) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workerpool: executor panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Drain blocks until no tasks are queued or active, or ctx is cancelled.
// A paused pool with queued tasks does not drain until resumed.
func (p *Pool) Drain(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.cond.Broadcast()
		case <-stop:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.queue.Len() > 0 || p.active > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("workerpool: drain cancelled: %w", err)
		}
		p.cond.Wait()
	}
	return nil
}

// Pause stops dequeuing new tasks. Already-running tasks finish normally.
func (p *Pool) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.logger.Info().Msg("Pool paused")
}

// Resume restarts dequeuing.
func (p *Pool) Resume() {
	p.mu.Lock()
	p.paused = false
	p.cond.Broadcast()
	p.mu.Unlock()
	p.logger.Info().Msg("Pool resumed")
}

// Status returns a snapshot of the pool state.
func (p *Pool) Status() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		ConcurrencyLimit: p.limit,
		Active:           p.active,
		Queued:           p.queue.Len(),
		Completed:        p.completed,
		Failed:           p.failed,
		Paused:           p.paused,
	}
}

// Close stops accepting tasks, lets queued and active work finish, and
// waits for the workers to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.paused = false
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debug().Msg("Worker pool closed")
}
