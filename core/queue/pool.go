package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gate/core/logger"
)

// Task is a unit of work executed by a Pool.
type Task interface {
	// Run executes the task. ctx is cancelled when the pool is force-stopped.
	Run(ctx context.Context)

	// Abandon is called at most once, instead of or while Run executes,
	// when a forced shutdown gives up on the task.
	Abandon(err error)
}

type taskFunc struct {
	run     func(context.Context)
	abandon func(error)
}

func (t taskFunc) Run(ctx context.Context) { t.run(ctx) }

func (t taskFunc) Abandon(err error) {
	if t.abandon != nil {
		t.abandon(err)
	}
}

// NewTask adapts a pair of functions to Task. abandon may be nil.
func NewTask(run func(context.Context), abandon func(error)) Task {
	return taskFunc{run: run, abandon: abandon}
}

const (
	jobQueued int32 = iota
	jobRunning
	jobDone
	jobAbandoned
)

type job struct {
	task  Task
	state atomic.Int32
}

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	id      uuid.UUID
	name    string
	jobs    chan *job
	workers int
	wg      sync.WaitGroup

	// mu guards closed and pending. Submit holds it while enqueueing so a
	// job is always tracked before a worker can finish it.
	mu      sync.Mutex
	closed  bool
	pending map[*job]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce    sync.Once
	shutdownErr     error
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// Observability metrics
	submitted atomic.Int64
	completed atomic.Int64
	abandoned atomic.Int64
	panicked  atomic.Int64
	active    atomic.Int32
}

// PoolStats provides observability metrics for monitoring and debugging
type PoolStats struct {
	Submitted int64 // Tasks accepted by Submit
	Completed int64 // Tasks whose Run returned
	Abandoned int64 // Tasks given up on by a forced shutdown
	Panicked  int64 // Tasks whose Run panicked (also counted as completed)
	Active    int32 // Tasks currently running
	Queued    int   // Tasks waiting for a worker
	Workers   int
	IsClosed  bool
}

// NewPool creates a pool and starts its workers.
func NewPool(opts ...PoolOption) *Pool {
	options := &poolOptions{
		name:            "pool",
		workers:         4,
		queueSize:       256,
		shutdownTimeout: 5 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		id:              uuid.New(),
		name:            options.name,
		jobs:            make(chan *job, options.queueSize),
		workers:         options.workers,
		pending:         make(map[*job]struct{}),
		ctx:             ctx,
		cancel:          cancel,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
	}

	p.wg.Add(p.workers)
	for range p.workers {
		go p.work()
	}

	p.logger.Debug("pool started",
		logger.Component(p.name),
		logger.ID("pool_id", p.id.String()),
		slog.Int("workers", p.workers),
		slog.Int("queue_size", cap(p.jobs)))

	return p
}

// NewPoolFromConfig creates a Pool from configuration.
// Additional options can override config values.
func NewPoolFromConfig(cfg Config, opts ...PoolOption) *Pool {
	allOpts := append([]PoolOption{
		WithWorkers(cfg.Workers),
		WithQueueSize(cfg.QueueSize),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)

	return NewPool(allOpts...)
}

// Submit enqueues task without blocking.
// It returns ErrQueueFull when every queue slot is taken and ErrPoolClosed
// once Shutdown has been called.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	j := &job{task: task}
	select {
	case p.jobs <- j:
		p.pending[j] = struct{}{}
		p.submitted.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits up to grace for queued and running
// tasks to finish. When grace elapses, the pool context is cancelled and every
// unfinished task is abandoned; the returned *ShutdownError reports how many.
// Later calls return the result of the first one.
func (p *Pool) Shutdown(grace time.Duration) error {
	p.shutdownOnce.Do(func() {
		p.shutdownErr = p.shutdown(grace)
	})
	return p.shutdownErr
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// The returned function blocks until ctx is cancelled and then shuts the pool
// down with the configured timeout.
func (p *Pool) Run(ctx context.Context) func() error {
	return func() error {
		<-ctx.Done()
		_ = p.Shutdown(p.shutdownTimeout) // Abandonment is already logged
		return nil
	}
}

// Stats returns current pool statistics for observability and monitoring.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	return PoolStats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Abandoned: p.abandoned.Load(),
		Panicked:  p.panicked.Load(),
		Active:    p.active.Load(),
		Queued:    len(p.jobs),
		Workers:   p.workers,
		IsClosed:  closed,
	}
}

// Healthcheck reports whether the pool accepts work.
func (p *Pool) Healthcheck(ctx context.Context) error {
	stats := p.Stats()

	if stats.IsClosed {
		return fmt.Errorf("%w: %w", ErrHealthcheckFailed, ErrPoolClosed)
	}

	if cap(p.jobs) > 0 && stats.Queued >= cap(p.jobs) {
		return fmt.Errorf("%w: %w: %d tasks queued", ErrHealthcheckFailed, ErrPoolOverloaded, stats.Queued)
	}

	return nil
}

func (p *Pool) work() {
	defer p.wg.Done()

	for j := range p.jobs {
		// A forced shutdown may have abandoned the job while it sat in the queue
		if !j.state.CompareAndSwap(jobQueued, jobRunning) {
			continue
		}

		p.execute(j)

		if j.state.CompareAndSwap(jobRunning, jobDone) {
			p.completed.Add(1)
		}
		p.untrack(j)
	}
}

func (p *Pool) execute(j *job) {
	p.active.Add(1)
	defer p.active.Add(-1)

	// Panic recovery keeps the worker alive; tasks report their own failures
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error("task panicked",
				logger.Component(p.name),
				logger.ID("pool_id", p.id.String()),
				logger.Panic(r))
		}
	}()

	j.task.Run(p.ctx)
}

func (p *Pool) untrack(j *job) {
	p.mu.Lock()
	delete(p.pending, j)
	p.mu.Unlock()
}

func (p *Pool) shutdown(grace time.Duration) error {
	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("pool stopping, waiting for tasks to complete",
		logger.Component(p.name),
		logger.ID("pool_id", p.id.String()),
		logger.Timeout(grace))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("pool stopped cleanly",
			logger.Component(p.name),
			logger.ID("pool_id", p.id.String()))
		return nil
	case <-timer.C:
	}

	p.mu.Lock()
	unfinished := slices.Collect(maps.Keys(p.pending))
	p.mu.Unlock()

	// Mark everything abandoned before cancelling, so tasks that return on
	// cancellation are not mistaken for completed ones
	abandoned := 0
	for _, j := range unfinished {
		if p.abandon(j) {
			abandoned++
		}
	}

	p.cancel()

	if abandoned == 0 {
		// Only idle workers were still exiting
		return nil
	}

	p.logger.Warn("pool shutdown timeout exceeded, tasks abandoned",
		logger.Component(p.name),
		logger.ID("pool_id", p.id.String()),
		logger.Timeout(grace),
		logger.Count("abandoned", abandoned))

	return &ShutdownError{Timeout: grace, Abandoned: abandoned}
}

func (p *Pool) abandon(j *job) bool {
	if !j.state.CompareAndSwap(jobQueued, jobAbandoned) &&
		!j.state.CompareAndSwap(jobRunning, jobAbandoned) {
		return false
	}

	p.abandoned.Add(1)
	p.untrack(j)

	func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("task abandon hook panicked",
					logger.Component(p.name),
					logger.Panic(r))
			}
		}()
		j.task.Abandon(ErrTaskAbandoned)
	}()

	return true
}

// DetachedContext returns a context that keeps parent's values, ignores its
// cancellation and is cancelled when stop is done. Tasks use it to run
// submitter-scoped work under the pool's lifetime.
func DetachedContext(parent, stop context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	release := context.AfterFunc(stop, cancel)

	return ctx, func() {
		release()
		cancel()
	}
}
