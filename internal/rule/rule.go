// Package rule defines the behavior-rule contract the engine fans lifecycle
// events out to, and the ordered registry rules are composed in.
package rule

import (
	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
)

// Rule reacts to a lifecycle event by reading or mutating the tree in place.
// node is the affected node, or hierarchy.NoNode for event.Load.
type Rule[T any] interface {
	Name() string
	Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error
}

// Func adapts a plain function into a Rule.
type Func[T any] struct {
	RuleName string
	Fn       func(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error
}

func (f Func[T]) Name() string { return f.RuleName }

func (f Func[T]) Callback(t *hierarchy.Tree[T], node hierarchy.NodeID, typ event.Type) error {
	return f.Fn(t, node, typ)
}
