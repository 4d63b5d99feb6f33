package hierarchy

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownNode is returned for IDs that were never allocated or were released.
	ErrUnknownNode = errors.New("unknown node")
	// ErrAttached is returned when a node that already has a parent is attached elsewhere.
	ErrAttached = errors.New("node already attached to another parent")
	// ErrCycle is returned when attaching a node below itself.
	ErrCycle = errors.New("node cannot be attached below itself")
)

// Tree is an arena of nodes. Children and parent links are NodeIDs, so the
// tree owns every node and no node holds a reference to another.
//
// IDs are never reused: once a subtree is released, its IDs stay invalid.
// A Tree is not safe for concurrent use.
type Tree[T any] struct {
	nodes     []*Node[T] // id to node, nil once released
	live      int
	root      NodeID
	onRelease []func(NodeID)
}

// NewTree builds a tree whose root is described by spec.
func NewTree[T any](spec Spec[T]) *Tree[T] {
	t := &Tree[T]{}
	t.root = t.Build(spec)
	return t
}

// Root returns the root node ID.
func (t *Tree[T]) Root() NodeID { return t.root }

// Len returns the number of live nodes, root included.
func (t *Tree[T]) Len() int { return t.live }

// Node returns the node for id, or nil if id is unknown or released.
func (t *Tree[T]) Node(id NodeID) *Node[T] {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Lookup is Node with an error for unknown IDs.
func (t *Tree[T]) Lookup(id NodeID) (*Node[T], error) {
	n := t.Node(id)
	if n == nil {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	return n, nil
}

// Parent returns the parent of id, or NoNode.
func (t *Tree[T]) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.parent
	}
	return NoNode
}

// Children returns a copy of the ordered child IDs of id.
func (t *Tree[T]) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return slices.Clone(n.children)
	}
	return nil
}

// OnRelease registers fn to be called for every node ID the tree releases.
func (t *Tree[T]) OnRelease(fn func(NodeID)) {
	t.onRelease = append(t.onRelease, fn)
}

// Build materializes spec as a detached subtree and returns the ID of its top node.
// Every child built here has its parent link set before Build returns.
func (t *Tree[T]) Build(spec Spec[T]) NodeID {
	id := t.alloc(&spec)
	n := t.nodes[id]
	for i := range spec.Children {
		child := t.Build(spec.Children[i])
		t.nodes[child].parent = id
		n.children = append(n.children, child)
	}
	return id
}

// BuildChildren materializes specs and makes them the children of parent,
// replacing (and releasing) whatever children it had.
func (t *Tree[T]) BuildChildren(parent NodeID, specs []Spec[T]) ([]NodeID, error) {
	if _, err := t.Lookup(parent); err != nil {
		return nil, err
	}
	ids := make([]NodeID, 0, len(specs))
	for i := range specs {
		ids = append(ids, t.Build(specs[i]))
	}
	if err := t.SetChildren(parent, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Append attaches child as the last child of parent.
func (t *Tree[T]) Append(parent, child NodeID) error {
	p, err := t.Lookup(parent)
	if err != nil {
		return err
	}
	if err := t.checkAttach(parent, child); err != nil {
		return err
	}
	if t.nodes[child].parent == parent {
		return nil
	}
	t.nodes[child].parent = parent
	p.children = append(p.children, child)
	return nil
}

// SetChildren replaces the children of parent with ids, in order. Former
// children absent from ids are released together with their subtrees.
func (t *Tree[T]) SetChildren(parent NodeID, ids []NodeID) error {
	p, err := t.Lookup(parent)
	if err != nil {
		return err
	}
	seen := make(map[NodeID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("node %d listed twice: %w", id, ErrAttached)
		}
		seen[id] = struct{}{}
		if err := t.checkAttach(parent, id); err != nil {
			return err
		}
	}
	old := p.children
	p.children = slices.Clone(ids)
	for _, id := range ids {
		t.nodes[id].parent = parent
	}
	for _, id := range old {
		if _, kept := seen[id]; !kept {
			t.nodes[id].parent = NoNode
			t.release(id)
		}
	}
	return nil
}

// ClearChildren releases every child subtree of id.
func (t *Tree[T]) ClearChildren(id NodeID) error {
	return t.SetChildren(id, nil)
}

// Remove detaches id from its parent and releases its subtree. The root cannot be removed.
func (t *Tree[T]) Remove(id NodeID) error {
	n, err := t.Lookup(id)
	if err != nil {
		return err
	}
	if id == t.root {
		return fmt.Errorf("remove root: %w", ErrCycle)
	}
	if p := t.Node(n.parent); p != nil {
		p.children = slices.DeleteFunc(p.children, func(c NodeID) bool { return c == id })
	}
	n.parent = NoNode
	t.release(id)
	return nil
}

// Walk visits the descendants of id in depth-first pre-order, children in
// order. Returning false from fn skips that node's subtree.
func (t *Tree[T]) Walk(id NodeID, fn func(*Node[T]) bool) {
	n := t.Node(id)
	if n == nil {
		return
	}
	for _, c := range n.children {
		child := t.nodes[c]
		if fn(child) {
			t.Walk(c, fn)
		}
	}
}

// Ancestors returns the parent chain of id, nearest first.
func (t *Tree[T]) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := t.Parent(id); p != NoNode; p = t.Parent(p) {
		out = append(out, p)
	}
	return out
}

func (t *Tree[T]) alloc(spec *Spec[T]) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, spec.node(id))
	t.live++
	return id
}

func (t *Tree[T]) checkAttach(parent, child NodeID) error {
	c, err := t.Lookup(child)
	if err != nil {
		return err
	}
	if child == t.root {
		return fmt.Errorf("node %d is the root: %w", child, ErrCycle)
	}
	for a := parent; a != NoNode; a = t.Parent(a) {
		if a == child {
			return fmt.Errorf("node %d under %d: %w", child, parent, ErrCycle)
		}
	}
	if c.parent != NoNode && c.parent != parent {
		return fmt.Errorf("node %d (parent %d): %w", child, c.parent, ErrAttached)
	}
	return nil
}

// release frees id and its subtree, children first.
func (t *Tree[T]) release(id NodeID) {
	n := t.Node(id)
	if n == nil {
		return
	}
	for _, c := range n.children {
		t.release(c)
	}
	n.children = nil
	t.nodes[id] = nil
	t.live--
	for _, fn := range t.onRelease {
		fn(id)
	}
}
