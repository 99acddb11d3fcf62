package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/metrics"
	"github.com/akolanti/docqa/pkg/logger_i"
)

var ErrPoolStopped = errors.New("worker pool stopped")

type Options struct {
	MinWorkers  int64
	MaxWorkers  int64
	IdleTimeout time.Duration
	Buffer      int
}

// Pool runs CPU bound pipeline work (extraction, chunking, local embedding) on a
// bounded, elastic set of goroutines. Workers above the minimum retire when idle.
type Pool struct {
	tasks              chan task
	dispatcherChannel  chan struct{}
	stopWorkerChannel  chan struct{}
	workerWaitGroup    sync.WaitGroup
	currentWorkerCount int64
	minWorkerCount     int64
	maxWorkerCount     int64
	idleTimeout        time.Duration
	stopOnce           sync.Once
	logger             *logger_i.Logger
}

func NewPool(opts Options) *Pool {
	if opts.MinWorkers <= 0 {
		opts.MinWorkers = config.MinWorkerCount
	}
	if opts.MaxWorkers < opts.MinWorkers {
		opts.MaxWorkers = max(config.MaxWorkerCount, opts.MinWorkers)
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = config.IdleWorkerTimeout
	}
	if opts.Buffer <= 0 {
		opts.Buffer = config.TaskBufferLimit
	}

	p := &Pool{
		tasks:             make(chan task, opts.Buffer),
		dispatcherChannel: make(chan struct{}, 1),
		stopWorkerChannel: make(chan struct{}),
		minWorkerCount:    opts.MinWorkers,
		maxWorkerCount:    opts.MaxWorkers,
		idleTimeout:       opts.IdleTimeout,
		logger:            logger_i.NewLogger("WorkerPool"),
	}
	p.logger.Info("Initializing worker pool", "min", opts.MinWorkers, "max", opts.MaxWorkers)
	for i := int64(0); i < p.minWorkerCount; i++ {
		p.createWorker()
	}
	go p.dispatcher()
	return p
}

// Submit queues fn and blocks until it has run or ctx is done. A task whose context
// expires while queued is dropped without running.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case <-p.stopWorkerChannel:
		return ErrPoolStopped
	default:
	}

	select {
	case p.tasks <- t:
		metrics.IncrementTasksInQueue()
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopWorkerChannel:
		return ErrPoolStopped
	}

	// wake the dispatcher, one pending signal is enough
	select {
	case p.dispatcherChannel <- struct{}{}:
	default:
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopWorkerChannel:
		// a worker may have picked it up just before stopping
		select {
		case err := <-t.done:
			return err
		default:
			return ErrPoolStopped
		}
	}
}

func (p *Pool) WorkerCount() int64 {
	return atomic.LoadInt64(&p.currentWorkerCount)
}

// Stop retires every worker and waits for running tasks to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopWorkerChannel)
	})
	p.workerWaitGroup.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *Pool) dispatcher() {
	p.logger.Debug("Dispatcher started")
	for {
		select {
		case <-p.stopWorkerChannel:
			return
		case <-p.dispatcherChannel:
			metrics.StartDispatcherSignalCount()
			if len(p.tasks) > 0 && atomic.LoadInt64(&p.currentWorkerCount) < p.maxWorkerCount {
				p.logger.Debug("Creating new worker", "workerCount", atomic.LoadInt64(&p.currentWorkerCount))
				p.createWorker()
			}
		}
	}
}

func (p *Pool) createWorker() {
	p.workerWaitGroup.Add(1)
	atomic.AddInt64(&p.currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go p.worker()
}

func (p *Pool) worker() {
	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case t := <-p.tasks:
			metrics.DecrementTasksInQueue()
			p.execute(t)
			if len(p.tasks) > 0 {
				select {
				case p.dispatcherChannel <- struct{}{}:
				default:
				}
			}
			idle.Reset(p.idleTimeout)

		case <-p.stopWorkerChannel:
			atomic.AddInt64(&p.currentWorkerCount, -1)
			p.removeWorker("Stop worker signal received")
			return

		case <-idle.C:
			if p.tryRetire() {
				p.removeWorker("Idle worker timeout")
				return
			}
			idle.Reset(p.idleTimeout)
		}
	}
}

// tryRetire lowers the count only while it stays at or above the minimum.
func (p *Pool) tryRetire() bool {
	for {
		n := atomic.LoadInt64(&p.currentWorkerCount)
		if n <= p.minWorkerCount {
			return false
		}
		if atomic.CompareAndSwapInt64(&p.currentWorkerCount, n, n-1) {
			return true
		}
	}
}

// removeWorker expects the worker count to be lowered already.
func (p *Pool) removeWorker(reason string) {
	metrics.DecrementActiveWorkerCount()
	p.logger.Debug("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&p.currentWorkerCount))
	p.workerWaitGroup.Done()
}

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func (p *Pool) execute(t task) {
	if err := t.ctx.Err(); err != nil {
		t.done <- err
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "panic", r)
			t.done <- fmt.Errorf("task panicked: %v", r)
		}
	}()
	t.done <- t.fn(t.ctx)
}
