// Package cyclical drives a collapsible-selection tree from a flat dataset in
// which one value may be reachable from several parents, cycles included.
//
// The dataset is the source of truth. Nodes are materialized on demand, and
// the Selected flag of every materialized node is derived from the manager's
// selected values.
package cyclical

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/metrics"
)

// Name is the rule name a Manager registers under.
const Name = "cyclical_data_manager"

// ErrNotLoaded is returned by operations that need the tree seen on event.Load.
var ErrNotLoaded = errors.New("cyclical data manager: tree not loaded")

// Record is one entry of the flat dataset.
type Record[T comparable] struct {
	Value        T
	Name         string
	ParentValues []T
	ChildValues  []T
}

// Option configures a Manager.
type Option[T comparable] func(*Manager[T])

// WithFirstLevel seeds the root's children on load, in order. Values missing
// from the dataset are skipped.
func WithFirstLevel[T comparable](values ...T) Option[T] {
	return func(m *Manager[T]) { m.firstLevel = slices.Clone(values) }
}

// WithSelected sets the initially selected values.
func WithSelected[T comparable](values ...T) Option[T] {
	return func(m *Manager[T]) {
		for _, v := range values {
			m.add(v)
		}
	}
}

// WithSelectDescendants controls whether selecting a value also selects
// everything reachable through its child values. Defaults to true.
func WithSelectDescendants[T comparable](on bool) Option[T] {
	return func(m *Manager[T]) { m.selectDescendants = on }
}

// WithNewNodeConfig sets the checkbox presentation of every materialized node.
func WithNewNodeConfig[T comparable](cb hierarchy.Checkbox) Option[T] {
	return func(m *Manager[T]) { m.newNode = cb }
}

// WithLogger sets the logger used for dataset inconsistencies.
func WithLogger[T comparable](l *slog.Logger) Option[T] {
	return func(m *Manager[T]) { m.log = l }
}

// DefaultNewNodeConfig is the checkbox presentation used when none is configured.
func DefaultNewNodeConfig() hierarchy.Checkbox {
	cb := hierarchy.DefaultCheckbox()
	cb.SelectedLabel = "Deselect all"
	cb.UnselectedLabel = "Select all"
	return cb
}

// Manager is a rule that materializes and selects nodes from a dataset.
// It is not safe for concurrent use; it runs on the goroutine dispatching events.
type Manager[T comparable] struct {
	records []Record[T]
	index   map[T]int

	firstLevel        []T
	selected          []T
	selectedSet       map[T]struct{}
	selectDescendants bool
	newNode           hierarchy.Checkbox

	// filter holds matches and their ancestors; nil while no filter is active.
	filter map[T]struct{}

	tree *hierarchy.Tree[T]
	log  *slog.Logger
}

// New creates a Manager over records.
func New[T comparable](records []Record[T], opts ...Option[T]) *Manager[T] {
	m := &Manager[T]{
		records:           records,
		index:             make(map[T]int, len(records)),
		selectedSet:       make(map[T]struct{}),
		selectDescendants: true,
		newNode:           DefaultNewNodeConfig(),
		log:               slog.Default(),
	}
	for i, r := range records {
		if _, dup := m.index[r.Value]; !dup {
			m.index[r.Value] = i
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager[T]) Name() string { return Name }

// Callback handles the three lifecycle events:
//   - Load materializes the first level under the root.
//   - Collapse rebuilds the children of a node that is now open from its child
//     values; closing a node keeps its children.
//   - Select adds or removes the node's value (and, with descendant selection,
//     every value reachable from it) and re-derives Selected across the tree.
func (m *Manager[T]) Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error {
	switch typ {
	case event.Load:
		specs := make([]hierarchy.Spec[T], 0, len(m.firstLevel))
		for _, v := range m.firstLevel {
			if rec, ok := m.record(v); ok {
				specs = append(specs, m.spec(rec))
			}
		}
		if _, err := t.BuildChildren(t.Root(), specs); err != nil {
			return err
		}
		m.tree = t
	case event.Collapse:
		n, err := t.Lookup(node)
		if err != nil {
			return err
		}
		if !n.Open {
			return nil
		}
		specs := make([]hierarchy.Spec[T], 0, len(n.ChildValues))
		for _, v := range n.ChildValues {
			if rec, ok := m.record(v); ok {
				specs = append(specs, m.spec(rec))
			}
		}
		if _, err := t.BuildChildren(node, specs); err != nil {
			return err
		}
	case event.Select:
		n, err := t.Lookup(node)
		if err != nil {
			return err
		}
		m.selectValue(n.Value, n.ChildValues, n.Selected, make(map[T]struct{}))
		m.synchronize(t)
	}
	return nil
}

// SelectedValues returns the selected values in the order they were selected.
func (m *Manager[T]) SelectedValues() []T {
	return slices.Clone(m.selected)
}

// IsSelected reports whether v is currently selected.
func (m *Manager[T]) IsSelected(v T) bool {
	_, ok := m.selectedSet[v]
	return ok
}

// Loaded reports whether the manager has seen a Load event.
func (m *Manager[T]) Loaded() bool { return m.tree != nil }

// FilterActive reports whether a non-empty filter is applied.
func (m *Manager[T]) FilterActive() bool { return m.filter != nil }

// Record returns the dataset record for v.
func (m *Manager[T]) Record(v T) (Record[T], bool) { return m.record(v) }

// FilterHierarchy filters against the whole dataset, not only materialized
// nodes. Every match and every ancestor of a match stays visible, and
// ancestors are opened and materialized along each path. An empty c.Value
// resets the first level instead.
func (m *Manager[T]) FilterHierarchy(c hierarchy.Criteria) error {
	if m.tree == nil {
		return ErrNotLoaded
	}
	if c.Value == "" {
		return m.reset()
	}

	matches := make(map[T]struct{})
	ancestors := make(map[T]struct{})
	for _, r := range m.records {
		if hierarchy.HasMatch(any(r.Value), c) {
			matches[r.Value] = struct{}{}
			m.ancestors(r.ParentValues, ancestors)
		}
	}
	metrics.FilterMatches.Observe(float64(len(matches)))

	m.filter = make(map[T]struct{}, len(matches)+len(ancestors))
	for v := range matches {
		m.filter[v] = struct{}{}
	}
	for v := range ancestors {
		m.filter[v] = struct{}{}
	}
	return m.filterNodes(m.tree.Root(), matches, ancestors, nil)
}

// filterNodes walks materialized children of id. traversed holds the values
// on the current path, so a value met again below itself is not re-expanded.
func (m *Manager[T]) filterNodes(id hierarchy.NodeID, matches, ancestors map[T]struct{}, traversed []T) error {
	for _, c := range m.tree.Children(id) {
		n := m.tree.Node(c)
		_, isAncestor := ancestors[n.Value]
		_, isMatch := matches[n.Value]
		n.Hidden = !isAncestor && !isMatch
		n.Open = isAncestor && !slices.Contains(traversed, n.Value)
		if !n.Open {
			continue
		}
		if _, err := m.tree.BuildChildren(c, m.datasetChildren(n.ChildValues)); err != nil {
			return err
		}
		path := append(slices.Clone(traversed), n.Value)
		if err := m.filterNodes(c, matches, ancestors, path); err != nil {
			return err
		}
	}
	return nil
}

// reset only touches the first level: it un-hides and closes those nodes and
// drops everything materialized below them.
func (m *Manager[T]) reset() error {
	m.filter = nil
	for _, c := range m.tree.Children(m.tree.Root()) {
		n := m.tree.Node(c)
		n.Hidden = false
		n.Open = false
		if err := m.tree.ClearChildren(c); err != nil {
			return fmt.Errorf("reset %v: %w", n.Value, err)
		}
	}
	return nil
}

// ancestors adds the transitive parents of parents to seen.
func (m *Manager[T]) ancestors(parents []T, seen map[T]struct{}) {
	for _, p := range parents {
		rec, ok := m.record(p)
		if !ok {
			continue
		}
		if _, done := seen[p]; done {
			continue
		}
		seen[p] = struct{}{}
		m.ancestors(rec.ParentValues, seen)
	}
}

func (m *Manager[T]) selectValue(v T, children []T, on bool, visited map[T]struct{}) {
	if _, done := visited[v]; done {
		return
	}
	visited[v] = struct{}{}

	switch {
	case on && !m.IsSelected(v):
		m.add(v)
	case !on && m.IsSelected(v):
		delete(m.selectedSet, v)
		m.selected = slices.DeleteFunc(m.selected, func(s T) bool { return s == v })
	default:
		return
	}
	if !m.selectDescendants {
		return
	}
	for _, cv := range children {
		if rec, ok := m.record(cv); ok {
			m.selectValue(rec.Value, rec.ChildValues, on, visited)
		}
	}
}

func (m *Manager[T]) add(v T) {
	if _, ok := m.selectedSet[v]; ok {
		return
	}
	m.selectedSet[v] = struct{}{}
	m.selected = append(m.selected, v)
}

func (m *Manager[T]) synchronize(t *hierarchy.Tree[T]) {
	t.Walk(t.Root(), func(n *hierarchy.Node[T]) bool {
		_, n.Selected = m.selectedSet[n.Value]
		return true
	})
}

// datasetChildren builds specs for the records listed in childValues, in dataset order.
func (m *Manager[T]) datasetChildren(childValues []T) []hierarchy.Spec[T] {
	var specs []hierarchy.Spec[T]
	for _, r := range m.records {
		if slices.Contains(childValues, r.Value) {
			specs = append(specs, m.spec(r))
		}
	}
	return specs
}

func (m *Manager[T]) record(v T) (Record[T], bool) {
	i, ok := m.index[v]
	if !ok {
		m.log.Debug("dataset record missing", "value", v)
		return Record[T]{}, false
	}
	return m.records[i], true
}

func (m *Manager[T]) spec(r Record[T]) hierarchy.Spec[T] {
	_, selected := m.selectedSet[r.Value]
	hidden := false
	if m.filter != nil {
		_, keep := m.filter[r.Value]
		hidden = !keep
	}
	return hierarchy.Spec[T]{
		Kind:         hierarchy.KindCollapsibleSelection,
		Name:         r.Name,
		Value:        r.Value,
		Selected:     selected,
		Hidden:       hidden,
		ChildValues:  r.ChildValues,
		ParentValues: r.ParentValues,
		Checkbox:     m.newNode,
	}
}
