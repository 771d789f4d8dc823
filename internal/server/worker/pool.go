// Package worker runs queued tasks on a fixed number of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/modzart/internal/logging"
	"github.com/dmitrijs2005/modzart/internal/server/metrics"
	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull = errors.New("queue is full")
	ErrClosed    = errors.New("queue is closed")
)

// Pool is a bounded in-memory queue drained by a fixed set of workers.
// Enqueue never blocks. Tasks still queued when Run stops are handed to the
// handler with the cancelled context so it can release them.
type Pool[T any] struct {
	workers int
	tasks   chan T
	log     logging.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

// New creates a pool with the given worker count and queue capacity.
// Non-positive values fall back to one worker and an unbuffered queue
// respectively.
func New[T any](workers, size int, log logging.Logger, m *metrics.Metrics) *Pool[T] {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	return &Pool[T]{
		workers: workers,
		tasks:   make(chan T, size),
		log:     log,
		metrics: m,
	}
}

// Enqueue adds a task or fails with ErrQueueFull or ErrClosed.
func (p *Pool[T]) Enqueue(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- task:
		p.metrics.QueueDepth(len(p.tasks))
		return nil
	default:
		return ErrQueueFull
	}
}

// Len is the number of tasks waiting for a worker.
func (p *Pool[T]) Len() int { return len(p.tasks) }

// Run starts the workers and blocks until ctx is done. It then closes the
// queue and drains what is left.
func (p *Pool[T]) Run(ctx context.Context, handle func(context.Context, T)) error {
	p.log.Info(ctx, "workers started", "workers", p.workers, "capacity", cap(p.tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case task := <-p.tasks:
					p.metrics.QueueDepth(len(p.tasks))
					p.handle(gctx, id, handle, task)
				}
			}
		})
	}
	err := g.Wait()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	drained := 0
	for done := false; !done; {
		select {
		case task := <-p.tasks:
			p.handle(ctx, -1, handle, task)
			drained++
		default:
			done = true
		}
	}
	p.metrics.QueueDepth(0)
	p.log.Info(ctx, "workers stopped", "drained", drained)
	return err
}

func (p *Pool[T]) handle(ctx context.Context, id int, handle func(context.Context, T), task T) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error(ctx, "task panicked", "worker", id, "panic", fmt.Sprint(r))
		}
	}()
	handle(ctx, task)
}
