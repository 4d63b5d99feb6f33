package engine

import (
	"context"
	"sync"
)

// workerPool is a fixed-size goroutine pool with a bounded input queue.
type workerPool[J any] struct {
	queue   chan J
	process func(ctx context.Context, j J)
	wg      sync.WaitGroup
	once    sync.Once
}

// newWorkerPool creates and starts a pool with n goroutines and queue capacity depth.
func newWorkerPool[J any](ctx context.Context, n, depth int, fn func(context.Context, J)) *workerPool[J] {
	p := &workerPool[J]{
		queue:   make(chan J, depth),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *workerPool[J]) run(ctx context.Context) {
	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues a job without blocking (returns false if full).
func (p *workerPool[J]) Submit(j J) bool {
	select {
	case p.queue <- j:
		return true
	default:
		return false
	}
}

// Drain closes the queue and waits for all workers to finish. Safe to call more than once.
func (p *workerPool[J]) Drain() {
	p.once.Do(func() { close(p.queue) })
	p.wg.Wait()
}

// QueueLen returns how many jobs are currently queued.
func (p *workerPool[J]) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *workerPool[J]) QueueCap() int {
	return cap(p.queue)
}
