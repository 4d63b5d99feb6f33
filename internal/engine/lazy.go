package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/metrics"
)

// loadJob is one in-flight run of a node's LazyLoadFactory. The factory sees
// copies of the node's name and value, never the tree.
type loadJob[T any] struct {
	node   hierarchy.NodeID
	name   string
	value  T
	fn     hierarchy.LazyLoadFactory[T]
	ctx    context.Context
	cancel context.CancelFunc
}

// loadResult is either one emission or, with done set, the end of a job.
type loadResult[T any] struct {
	job   *loadJob[T]
	specs []hierarchy.Spec[T]
	done  bool
	err   error
}

func (e *Engine[T]) startLoad(n *hierarchy.Node[T]) error {
	if _, inFlight := e.loads[n.ID()]; inFlight {
		return nil
	}
	if e.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(e.ctx)
	job := &loadJob[T]{
		node:   n.ID(),
		name:   n.Name,
		value:  n.Value,
		fn:     n.LazyLoad,
		ctx:    ctx,
		cancel: cancel,
	}
	if !e.pool.Submit(job) {
		cancel()
		metrics.LazyLoads.WithLabelValues("dropped").Inc()
		return fmt.Errorf("lazy load node %d (capacity %d): %w", n.ID(), e.pool.QueueCap(), ErrQueueFull)
	}
	e.loads[n.ID()] = job
	metrics.LazyLoads.WithLabelValues("started").Inc()
	return nil
}

// runLoad executes on a pool worker.
func (e *Engine[T]) runLoad(_ context.Context, job *loadJob[T]) {
	send := func(r loadResult[T]) {
		select {
		case e.results <- r:
		case <-job.ctx.Done():
		}
	}
	err := job.fn(job.ctx, job.name, job.value, func(specs []hierarchy.Spec[T]) {
		send(loadResult[T]{job: job, specs: specs})
	})
	send(loadResult[T]{job: job, done: true, err: err})
}

// Loading reports whether a lazy load is in flight for id.
func (e *Engine[T]) Loading(id hierarchy.NodeID) bool {
	_, ok := e.loads[id]
	return ok
}

// PendingLoads returns the number of lazy loads in flight.
func (e *Engine[T]) PendingLoads() int { return len(e.loads) }

// LoadQueueUtilization returns queue used / capacity (0 to 1).
func (e *Engine[T]) LoadQueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// ApplyPending applies every lazy-load result already received without
// blocking and returns how many emissions replaced children.
func (e *Engine[T]) ApplyPending() (int, error) {
	var (
		applied int
		errs    []error
	)
	for {
		select {
		case r := <-e.results:
			ok, err := e.apply(r)
			if ok {
				applied++
			}
			if err != nil {
				errs = append(errs, err)
			}
		default:
			return applied, errors.Join(errs...)
		}
	}
}

// AwaitLoad applies lazy-load results as they arrive until no load is in
// flight or ctx is done. A factory that keeps emitting without returning
// holds AwaitLoad until ctx ends.
func (e *Engine[T]) AwaitLoad(ctx context.Context) error {
	var errs []error
	for len(e.loads) > 0 {
		select {
		case r := <-e.results:
			if _, err := e.apply(r); err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	if _, err := e.ApplyPending(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// apply runs on the owner goroutine. Results of jobs that are no longer
// current (node released, engine closed) are discarded.
func (e *Engine[T]) apply(r loadResult[T]) (bool, error) {
	if cur, ok := e.loads[r.job.node]; !ok || cur != r.job {
		metrics.LazyLoads.WithLabelValues("stale").Inc()
		return false, nil
	}
	if r.done {
		delete(e.loads, r.job.node)
		r.job.cancel()
		if r.err != nil {
			metrics.LazyLoads.WithLabelValues("failed").Inc()
			e.log.Warn("lazy load failed", "node", r.job.node, "name", r.job.name, "err", r.err)
			return false, fmt.Errorf("lazy load node %d: %w", r.job.node, r.err)
		}
		return false, nil
	}

	ids, err := e.tree.BuildChildren(r.job.node, r.specs)
	if err != nil {
		return false, fmt.Errorf("lazy load node %d: %w", r.job.node, err)
	}
	metrics.LazyLoads.WithLabelValues("applied").Inc()
	e.log.Debug("lazy load applied", "node", r.job.node, "children", len(ids))

	ev := event.New(event.LoadChildren, r.job.node)
	ev.Children = ids
	e.emit(ev)
	e.reconcile()
	return true, nil
}
