package api

import (
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/hierselect/internal/engine"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
)

// NodeView is the JSON form of one node.
type NodeView struct {
	ID       hierarchy.NodeID `json:"id"`
	Kind     hierarchy.Kind   `json:"kind"`
	Name     string           `json:"name,omitempty"`
	Value    any              `json:"value,omitempty"`
	Open     bool             `json:"open,omitempty"`
	Selected bool             `json:"selected,omitempty"`
	Disabled bool             `json:"disabled,omitempty"`
	Hidden   bool             `json:"hidden,omitempty"`
	Loading  bool             `json:"loading,omitempty"`
	Children []*NodeView      `json:"children,omitempty"`
}

// Snapshot is an immutable copy of an engine's tree, taken on the goroutine
// that owns it so HTTP handlers never touch the live tree.
type Snapshot struct {
	Source               string             `json:"source"`
	Rules                []string           `json:"rules"`
	Root                 *NodeView          `json:"root"`
	Selected             []hierarchy.NodeID `json:"selected"`
	PendingLoads         int                `json:"pending_loads"`
	LoadQueueUtilization float64            `json:"load_queue_utilization"`
	TakenAt              time.Time          `json:"taken_at"`
}

// Take copies e's tree. It must run on the engine's owner goroutine.
func Take[T any](source string, rules []string, e *engine.Engine[T]) *Snapshot {
	t := e.Tree()
	var view func(id hierarchy.NodeID) *NodeView
	view = func(id hierarchy.NodeID) *NodeView {
		n := t.Node(id)
		v := &NodeView{
			ID:       id,
			Kind:     n.Kind(),
			Name:     n.Name,
			Value:    any(n.Value),
			Open:     n.Open,
			Selected: n.Selected,
			Disabled: n.Disabled,
			Hidden:   n.Hidden,
			Loading:  e.Loading(id),
		}
		for _, c := range n.Children() {
			v.Children = append(v.Children, view(c))
		}
		return v
	}
	return &Snapshot{
		Source:               source,
		Rules:                rules,
		Root:                 view(t.Root()),
		Selected:             e.Selected(),
		PendingLoads:         e.PendingLoads(),
		LoadQueueUtilization: e.LoadQueueUtilization(),
		TakenAt:              time.Now(),
	}
}

// State holds the latest published snapshot.
type State struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Publish replaces the current snapshot.
func (s *State) Publish(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// Current returns the latest snapshot, or nil before the first Publish.
func (s *State) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
