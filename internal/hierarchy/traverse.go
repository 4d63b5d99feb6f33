package hierarchy

// HasSelectedChild reports whether id is a selected selection-capable node
// or has such a descendant. It stops at the first hit.
func HasSelectedChild[T any](t *Tree[T], id NodeID) bool {
	n := t.Node(id)
	if n == nil {
		return false
	}
	if n.kind.Selectable() && n.Selected {
		return true
	}
	for _, c := range n.children {
		if HasSelectedChild(t, c) {
			return true
		}
	}
	return false
}

// SelectedNodes collects every selected selection-capable descendant of root
// in pre-order. Select-all headers and root itself are never included.
func SelectedNodes[T any](t *Tree[T], root NodeID) []NodeID {
	return FindNodes(t, root, func(n *Node[T]) bool {
		return n.kind.Selectable() && n.kind != KindSelectAll && n.Selected
	})
}

// FindNodes collects the descendants of root satisfying pred, in pre-order.
func FindNodes[T any](t *Tree[T], root NodeID, pred func(*Node[T]) bool) []NodeID {
	var found []NodeID
	t.Walk(root, func(n *Node[T]) bool {
		if pred(n) {
			found = append(found, n.id)
		}
		return true
	})
	return found
}

// FilterHierarchy hides every descendant of root whose value does not match c
// and shows every one that does, un-hiding and opening the ancestors of each
// match. An empty c.Value resets the hierarchy instead.
func FilterHierarchy[T any](t *Tree[T], root NodeID, c Criteria) {
	if c.Value == "" {
		ResetHierarchy(t, root)
		return
	}
	t.Walk(root, func(n *Node[T]) bool {
		if HasMatch(any(n.Value), c) {
			n.Hidden = false
			showAncestors(t, n.parent)
		} else {
			n.Hidden = true
		}
		return true
	})
}

// ResetHierarchy un-hides every descendant of root and closes the collapsible
// ones. Selection is left alone.
func ResetHierarchy[T any](t *Tree[T], root NodeID) {
	t.Walk(root, func(n *Node[T]) bool {
		if n.kind.Collapsible() {
			n.Open = false
		}
		n.Hidden = false
		return true
	})
}

// showAncestors walks the whole parent chain, not only up to the filter root.
func showAncestors[T any](t *Tree[T], id NodeID) {
	for n := t.Node(id); n != nil; n = t.Node(n.parent) {
		if n.kind.Collapsible() {
			n.Open = true
		}
		n.Hidden = false
	}
}
