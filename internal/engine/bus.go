package engine

import (
	"errors"

	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/selection"
)

type nodeSubs struct {
	search func()
	sel    func()
}

func (s *nodeSubs) stop() {
	if s.search != nil {
		s.search()
		s.search = nil
	}
	if s.sel != nil {
		s.sel()
		s.sel = nil
	}
}

// Search publishes c on the bus. Every searchable node updates Hidden.
func (e *Engine[T]) Search(c hierarchy.Criteria) {
	if e.bus != nil {
		e.bus.PublishSearch(c)
	}
}

// Notify publishes cmd on the bus. Every addressed node takes the new
// selection state and a Select event is dispatched for it; disabled nodes
// are not skipped. The returned error joins the failures of those dispatches.
func (e *Engine[T]) Notify(cmd selection.Command) error {
	if e.bus == nil {
		return nil
	}
	e.busErrs = nil
	e.bus.PublishSelect(cmd)
	err := errors.Join(e.busErrs...)
	e.busErrs = nil
	return err
}

// reconcile keeps exactly one search and one select subscription per node that opted in.
func (e *Engine[T]) reconcile() {
	if e.bus == nil || e.closed {
		return
	}
	visit := func(n *hierarchy.Node[T]) bool {
		id := n.ID()
		s := e.subs[id]
		if s == nil {
			s = &nodeSubs{}
		}
		wantSearch := n.Kind().Selectable() && n.Searchable
		wantSel := n.Kind().Selectable() && n.NotifySelection

		switch {
		case wantSearch && s.search == nil:
			s.search = e.bus.SubscribeSearch(func(c hierarchy.Criteria) { e.onSearch(id, c) })
		case !wantSearch && s.search != nil:
			s.search()
			s.search = nil
		}
		switch {
		case wantSel && s.sel == nil:
			s.sel = e.bus.SubscribeSelect(func(cmd selection.Command) { e.onSelect(id, cmd) })
		case !wantSel && s.sel != nil:
			s.sel()
			s.sel = nil
		}

		if s.search == nil && s.sel == nil {
			delete(e.subs, id)
		} else {
			e.subs[id] = s
		}
		return true
	}
	visit(e.tree.Node(e.tree.Root()))
	e.tree.Walk(e.tree.Root(), visit)
}

func (e *Engine[T]) onSearch(id hierarchy.NodeID, c hierarchy.Criteria) {
	if n := e.tree.Node(id); n != nil {
		n.Hidden = selection.Hidden(any(n.Value), c)
	}
}

func (e *Engine[T]) onSelect(id hierarchy.NodeID, cmd selection.Command) {
	n := e.tree.Node(id)
	if n == nil {
		return
	}
	selected, ok := cmd.Apply(any(n.Value))
	if !ok {
		return
	}
	n.Selected = selected
	if _, err := e.dispatch(event.Select, id); err != nil {
		e.log.Warn("select broadcast dispatch failed", "node", id, "err", err)
		e.busErrs = append(e.busErrs, err)
	}
}
