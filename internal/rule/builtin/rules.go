package builtin

import (
	"reflect"

	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
)

// CollapseSiblingsOnOpen closes every collapsible sibling of a toggled node.
type CollapseSiblingsOnOpen[T any] struct{}

func (CollapseSiblingsOnOpen[T]) Name() string { return NameCollapseSiblingsOnOpen }

func (CollapseSiblingsOnOpen[T]) Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error {
	if typ != event.Collapse {
		return nil
	}
	for _, id := range t.Children(t.Parent(node)) {
		sib := t.Node(id)
		if id != node && sib.Kind().Collapsible() {
			sib.Open = false
		}
	}
	return nil
}

// Disable1stLevelOnSelection disables every first-level node without a
// selection once any first-level node has one.
type Disable1stLevelOnSelection[T any] struct{}

func (Disable1stLevelOnSelection[T]) Name() string { return NameDisable1stLevelOnSelection }

func (Disable1stLevelOnSelection[T]) Callback(t *hierarchy.Tree[T], _ hierarchy.NodeID, typ event.Type) error {
	if typ != event.Select {
		return nil
	}
	firstLevel := t.Children(t.Root())
	with := make(map[hierarchy.NodeID]bool, len(firstLevel))
	for _, id := range firstLevel {
		if hierarchy.HasSelectedChild(t, id) {
			with[id] = true
		}
	}
	for _, id := range firstLevel {
		t.Node(id).Disabled = len(with) > 0 && !with[id]
	}
	return nil
}

// DefaultLimit is the selection cap of a HierarchySelectLimit built without one.
const DefaultLimit = 255

// HierarchySelectLimit disables every unselected node once Limit nodes are selected.
type HierarchySelectLimit[T any] struct {
	Limit    int
	exceeded bool
}

// NewHierarchySelectLimit returns a limit rule; limit <= 0 selects DefaultLimit.
func NewHierarchySelectLimit[T any](limit int) *HierarchySelectLimit[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &HierarchySelectLimit[T]{Limit: limit}
}

func (*HierarchySelectLimit[T]) Name() string { return NameHierarchySelectLimit }

func (r *HierarchySelectLimit[T]) Callback(t *hierarchy.Tree[T], _ hierarchy.NodeID, typ event.Type) error {
	if typ != event.Select && typ != event.Load {
		return nil
	}
	r.exceeded = len(hierarchy.SelectedNodes(t, t.Root())) >= r.Limit
	t.Walk(t.Root(), func(n *hierarchy.Node[T]) bool {
		if n.Kind().Selectable() && n.Selected {
			n.Disabled = false
		} else {
			n.Disabled = r.exceeded
		}
		return true
	})
	return nil
}

// LimitExceeded reports whether the last evaluation reached the limit.
func (r *HierarchySelectLimit[T]) LimitExceeded() bool { return r.exceeded }

// SingleSelectionOnly deselects every node whose value differs from the one just selected.
type SingleSelectionOnly[T any] struct{}

func (SingleSelectionOnly[T]) Name() string { return NameSingleSelectionOnly }

func (SingleSelectionOnly[T]) Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error {
	if typ != event.Select {
		return nil
	}
	picked, err := t.Lookup(node)
	if err != nil {
		return err
	}
	deselect := func(n *hierarchy.Node[T]) {
		if n.Kind().Selectable() && !reflect.DeepEqual(n.Value, picked.Value) {
			n.Selected = false
		}
	}
	deselect(t.Node(t.Root()))
	t.Walk(t.Root(), func(n *hierarchy.Node[T]) bool {
		deselect(n)
		return true
	})
	return nil
}

// SelectAllChildren copies a select-all header's state onto its direct selectable children.
type SelectAllChildren[T any] struct{}

func (SelectAllChildren[T]) Name() string { return NameSelectAllChildren }

func (SelectAllChildren[T]) Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error {
	header := t.Node(node)
	if typ != event.Select || header == nil || header.Kind() != hierarchy.KindSelectAll {
		return nil
	}
	for _, id := range header.Children() {
		if child := t.Node(id); child.Kind().Selectable() {
			child.Selected = header.Selected
		}
	}
	return nil
}

// SelectOnAllChildrenSelected keeps a select-all header selected exactly when
// all of its children are. Children that cannot be selected count as unselected.
type SelectOnAllChildrenSelected[T any] struct{}

func (SelectOnAllChildrenSelected[T]) Name() string { return NameSelectOnAllChildrenSelected }

func (SelectOnAllChildrenSelected[T]) Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error {
	n := t.Node(node)
	if typ != event.Select || n == nil || !n.Kind().Selectable() {
		return nil
	}
	header := t.Node(n.Parent())
	if header == nil || header.Kind() != hierarchy.KindSelectAll {
		return nil
	}
	all := true
	for _, id := range header.Children() {
		if c := t.Node(id); !c.Kind().Selectable() || !c.Selected {
			all = false
			break
		}
	}
	header.Selected = all
	return nil
}

// SelectAllDescendants cascades a select-all header's state down its whole
// subtree. Each node takes its parent's current state, so a non-selectable
// node stops the cascade below it.
type SelectAllDescendants[T any] struct{}

func (SelectAllDescendants[T]) Name() string { return NameSelectAllDescendants }

func (SelectAllDescendants[T]) Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error {
	header := t.Node(node)
	if typ != event.Select || header == nil || header.Kind() != hierarchy.KindSelectAll {
		return nil
	}
	cascade(t, header)
	return nil
}

func cascade[T any](t *hierarchy.Tree[T], parent *hierarchy.Node[T]) {
	for _, id := range parent.Children() {
		child := t.Node(id)
		if child.Kind().Selectable() && parent.Kind().Selectable() {
			child.Selected = parent.Selected
		}
		cascade(t, child)
	}
}
