package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/hierselect/internal/config"
	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/metrics"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule"
	"github.com/gyaneshwarpardhi/hierselect/internal/selection"
)

var (
	ErrDisabled       = errors.New("node is disabled")
	ErrNotCollapsible = errors.New("node cannot be expanded")
	ErrNotSelectable  = errors.New("node cannot be selected")
	ErrQueueFull      = errors.New("lazy load queue full")
	ErrClosed         = errors.New("engine closed")
)

// Result is the outcome of one trigger.
type Result struct {
	Event    event.Type
	Node     hierarchy.NodeID
	Selected []hierarchy.NodeID // SelectedNodes(root) after every rule ran
	Duration time.Duration
	Errors   []error // rule failures; at most one unless FailOpen is set
}

// Err joins the rule failures of the trigger.
func (r *Result) Err() error { return errors.Join(r.Errors...) }

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Conf   config.EngineConf
	Logger *slog.Logger
	Bus    *selection.Bus
}

// Engine owns a tree and fans lifecycle events out to registered rules.
//
// Every method must be called from the goroutine that owns the tree. Lazy
// loads run on a worker pool but their results are only applied by
// ApplyPending or AwaitLoad, on the owner goroutine.
type Engine[T any] struct {
	tree     *hierarchy.Tree[T]
	registry *rule.Registry[T]
	conf     config.EngineConf
	log      *slog.Logger
	bus      *selection.Bus

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	pool    *workerPool[*loadJob[T]]
	results chan loadResult[T]
	loads   map[hierarchy.NodeID]*loadJob[T]

	subs      map[hierarchy.NodeID]*nodeSubs
	busErrs   []error
	listeners []func(*event.NodeEvent)
}

// New creates an Engine over tree and starts the lazy-load workers.
func New[T any](ctx context.Context, tree *hierarchy.Tree[T], reg *rule.Registry[T], opts Options) *Engine[T] {
	conf := opts.Conf
	conf.ApplyDefaults()
	e := &Engine[T]{
		tree:     tree,
		registry: reg,
		conf:     conf,
		log:      opts.Logger,
		bus:      opts.Bus,
		results:  make(chan loadResult[T], conf.LoadQueueDepth),
		loads:    make(map[hierarchy.NodeID]*loadJob[T]),
		subs:     make(map[hierarchy.NodeID]*nodeSubs),
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.pool = newWorkerPool(e.ctx, conf.LoaderWorkers, conf.LoadQueueDepth, e.runLoad)
	tree.OnRelease(e.released)
	e.reconcile()
	return e
}

// Tree returns the engine's tree.
func (e *Engine[T]) Tree() *hierarchy.Tree[T] { return e.tree }

// OnNodeEvent registers fn for every outbound node event.
func (e *Engine[T]) OnNodeEvent(fn func(*event.NodeEvent)) {
	e.listeners = append(e.listeners, fn)
}

// Selected returns the currently selected nodes in pre-order.
func (e *Engine[T]) Selected() []hierarchy.NodeID {
	return hierarchy.SelectedNodes(e.tree, e.tree.Root())
}

// Load dispatches event.Load.
func (e *Engine[T]) Load() (*Result, error) {
	return e.dispatch(event.Load, hierarchy.NoNode)
}

// ToggleCollapse flips Open on id and dispatches event.Collapse. When the
// node ends up open with a lazy-load factory, no children and no load in
// flight, a load is started.
func (e *Engine[T]) ToggleCollapse(id hierarchy.NodeID) (*Result, error) {
	n, err := e.tree.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !n.Kind().Expandable() {
		return nil, fmt.Errorf("toggle %d (%s): %w", id, n.Kind(), ErrNotCollapsible)
	}
	if n.Disabled {
		return nil, fmt.Errorf("toggle %d: %w", id, ErrDisabled)
	}
	n.Open = !n.Open
	res, err := e.dispatch(event.Collapse, id)
	if err != nil {
		return res, err
	}
	if n = e.tree.Node(id); n != nil && n.Open && n.LazyLoad != nil && n.NumChildren() == 0 {
		if err := e.startLoad(n); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ToggleSelect flips Selected on id and dispatches event.Select.
func (e *Engine[T]) ToggleSelect(id hierarchy.NodeID) (*Result, error) {
	n, err := e.tree.Lookup(id)
	if err != nil {
		return nil, err
	}
	return e.SetSelected(id, !n.Selected)
}

// SetSelected sets Selected on id and dispatches event.Select.
func (e *Engine[T]) SetSelected(id hierarchy.NodeID, selected bool) (*Result, error) {
	n, err := e.tree.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !n.Kind().Selectable() {
		return nil, fmt.Errorf("select %d (%s): %w", id, n.Kind(), ErrNotSelectable)
	}
	if n.Disabled {
		return nil, fmt.Errorf("select %d: %w", id, ErrDisabled)
	}
	n.Selected = selected
	return e.dispatch(event.Select, id)
}

// AddAll emits an event.AddAll node event for id.
func (e *Engine[T]) AddAll(id hierarchy.NodeID) (*event.NodeEvent, error) {
	return e.affordance(id, event.AddAll)
}

// RemoveAll emits an event.RemoveAll node event for id.
func (e *Engine[T]) RemoveAll(id hierarchy.NodeID) (*event.NodeEvent, error) {
	return e.affordance(id, event.RemoveAll)
}

func (e *Engine[T]) affordance(id hierarchy.NodeID, typ event.NodeEventType) (*event.NodeEvent, error) {
	n, err := e.tree.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !n.Kind().Expandable() {
		return nil, fmt.Errorf("%s %d (%s): %w", typ, id, n.Kind(), ErrNotCollapsible)
	}
	ev := event.New(typ, id)
	e.emit(ev)
	return ev, nil
}

// Close cancels every lazy load, stops the workers and drops bus subscriptions.
func (e *Engine[T]) Close() {
	if e.closed {
		return
	}
	e.closed = true
	for id, job := range e.loads {
		job.cancel()
		delete(e.loads, id)
		metrics.LazyLoads.WithLabelValues("cancelled").Inc()
	}
	e.cancel()
	e.pool.Drain()
	for id, s := range e.subs {
		s.stop()
		delete(e.subs, id)
	}
}

// dispatch runs every rule for typ in registration order. Unless FailOpen is
// set, the first failing rule ends the dispatch and its error is returned.
func (e *Engine[T]) dispatch(typ event.Type, node hierarchy.NodeID) (*Result, error) {
	start := time.Now()
	res := &Result{Event: typ, Node: node}
	metrics.EventsDispatched.WithLabelValues(string(typ)).Inc()

	var failed error
	for _, rl := range e.registry.Rules() {
		err := rl.Callback(e.tree, node, typ)
		if err == nil {
			metrics.RuleCallbacks.WithLabelValues(rl.Name(), "ok").Inc()
			continue
		}
		metrics.RuleCallbacks.WithLabelValues(rl.Name(), "error").Inc()
		err = fmt.Errorf("rule %s on %s: %w", rl.Name(), typ, err)
		res.Errors = append(res.Errors, err)
		if !e.conf.FailOpen {
			failed = err
			break
		}
		e.log.Warn("rule failed", "rule", rl.Name(), "event", typ, "node", node, "err", err)
	}

	res.Duration = time.Since(start)
	res.Selected = e.Selected()
	metrics.DispatchDuration.Observe(res.Duration.Seconds())
	metrics.SelectedNodes.Set(float64(len(res.Selected)))
	e.reconcile()

	if typ == event.Select && failed == nil {
		ev := event.New(event.SelectNodes, node)
		for _, id := range res.Selected {
			ev.Selections = append(ev.Selections, event.Selection{Node: id, Selected: true})
		}
		e.emit(ev)
	}
	return res, failed
}

func (e *Engine[T]) emit(ev *event.NodeEvent) {
	for _, fn := range e.listeners {
		fn(ev)
	}
}

// released drops everything the engine holds for a node the tree let go of.
func (e *Engine[T]) released(id hierarchy.NodeID) {
	if job, ok := e.loads[id]; ok {
		job.cancel()
		delete(e.loads, id)
		metrics.LazyLoads.WithLabelValues("cancelled").Inc()
	}
	if s, ok := e.subs[id]; ok {
		s.stop()
		delete(e.subs, id)
	}
}
