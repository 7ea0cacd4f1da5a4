package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrNotRunning is returned by Submit before Start or after Stop.
var ErrNotRunning = errors.New("jobs: pool not running")

const maxBackoff = 30 * time.Second

// Task is one unit of work. Attempt counts executions so far.
type Task[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler runs a task. A non-nil error schedules a retry.
type Handler[T any] func(ctx context.Context, task Task[T]) error

// FailureHandler receives tasks that ran out of retries or were cut short by
// shutdown.
type FailureHandler[T any] func(task Task[T], err error)

// Options sizes a pool.
type Options[T any] struct {
	Workers int
	Buffer  int
	// MaxRetries is the number of executions allowed after the first failure.
	MaxRetries int
	// Backoff is the first retry delay; it doubles per attempt up to 30s.
	Backoff   time.Duration
	OnFailure FailureHandler[T]
	Logger    *zap.Logger
}

// Pool runs tasks of one payload type on a fixed set of goroutines. Retries
// happen inside the worker that picked the task up.
type Pool[T any] struct {
	name    string
	handle  Handler[T]
	opts    Options[T]
	logger  *zap.Logger
	tasks   chan Task[T]
	busy    atomic.Int64
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool applies defaults: one worker, a buffer of four tasks per worker
// and a one second backoff.
func NewPool[T any](name string, handle Handler[T], opts Options[T]) *Pool[T] {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = opts.Workers * 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool[T]{
		name:   name,
		handle: handle,
		opts:   opts,
		logger: logger.With(zap.String("pool", name)),
		tasks:  make(chan Task[T], opts.Buffer),
	}
}

// Start launches the workers. Later calls are no-ops.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 1; i <= p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.opts.Workers))
}

// Stop cancels running tasks and waits for the workers. Buffered tasks that
// never started are dropped.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Submit queues a task, blocking while the buffer is full.
func (p *Pool[T]) Submit(ctx context.Context, task Task[T]) error {
	p.mu.RLock()
	running, poolCtx := p.running, p.ctx
	p.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}
	select {
	case p.tasks <- task:
		return nil
	case <-poolCtx.Done():
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Busy reports how many tasks are executing right now.
func (p *Pool[T]) Busy() int {
	return int(p.busy.Load())
}

func (p *Pool[T]) work(worker int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			p.busy.Add(1)
			p.run(worker, task)
			p.busy.Add(-1)
		}
	}
}

func (p *Pool[T]) run(worker int, task Task[T]) {
	delay := p.opts.Backoff
	for {
		task.Attempt++
		start := time.Now()
		err := p.handle(p.ctx, task)
		if err == nil {
			p.logger.Debug("task done", zap.String("task_id", task.ID), zap.Int("worker", worker), zap.Duration("took", time.Since(start)))
			return
		}
		if task.Attempt > p.opts.MaxRetries {
			p.logger.Error("task failed", zap.String("task_id", task.ID), zap.Int("attempts", task.Attempt), zap.Error(err))
			p.fail(task, err)
			return
		}

		p.logger.Warn("task failed, retrying", zap.String("task_id", task.ID), zap.Int("attempt", task.Attempt), zap.Duration("retry_in", delay), zap.Error(err))
		timer := time.NewTimer(delay)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			p.fail(task, p.ctx.Err())
			return
		case <-timer.C:
		}
		if delay *= 2; delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

func (p *Pool[T]) fail(task Task[T], err error) {
	if p.opts.OnFailure != nil {
		p.opts.OnFailure(task, err)
	}
}
