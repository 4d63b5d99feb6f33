package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
)

// Type is a lifecycle event dispatched to rules.
type Type string

const (
	Load     Type = "load"     // tree first populated; no affected node
	Collapse Type = "collapse" // Open toggled, in either direction
	Select   Type = "select"   // Selected toggled
)

// NodeEventType classifies outbound events a host renderer reacts to.
type NodeEventType string

const (
	AddAll       NodeEventType = "add_all"
	RemoveAll    NodeEventType = "remove_all"
	LoadChildren NodeEventType = "load_children"
	SelectNodes  NodeEventType = "select"
)

// Selection is one node's selection state at the time an event was emitted.
type Selection struct {
	Node     hierarchy.NodeID `json:"node"`
	Selected bool             `json:"selected"`
}

// NodeEvent is the outbound model emitted after a trigger or an applied lazy load.
type NodeEvent struct {
	ID         string             `json:"id"`
	Type       NodeEventType      `json:"type"`
	Node       hierarchy.NodeID   `json:"node"`
	Children   []hierarchy.NodeID `json:"children,omitempty"`
	Selections []Selection        `json:"selections,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// New stamps a NodeEvent with a fresh ID and the current time.
func New(typ NodeEventType, node hierarchy.NodeID) *NodeEvent {
	return &NodeEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Node:       node,
		OccurredAt: time.Now(),
	}
}
