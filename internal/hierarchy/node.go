package hierarchy

import (
	"context"
	"slices"
)

// NodeID addresses a node inside its Tree.
type NodeID int

// NoNode is the absent node, e.g. the parent of a root or the subject of a LOAD event.
const NoNode NodeID = -1

// LazyLoadFactory produces the children of a collapsible node on first expansion.
// It runs off the tree's goroutine: it receives a copy of the node's name and
// value, never the tree, and reports child sequences through emit. Each call to
// emit replaces the node's children. The factory should return once ctx is done.
type LazyLoadFactory[T any] func(ctx context.Context, name string, value T, emit func([]Spec[T])) error

// Checkbox holds checkbox presentation metadata of collapsible-selection nodes.
// It is carried for renderers and never evaluated by the engine.
type Checkbox struct {
	SelectedLabel          string `yaml:"selected_label"`
	UnselectedLabel        string `yaml:"unselected_label"`
	ShowLabelOnHover       bool   `yaml:"show_label_on_hover"`
	ShowLabelIfHasChildren bool   `yaml:"show_label_if_has_children"`
	FullRowSelect          bool   `yaml:"full_row_select"`
	FullRowToggle          bool   `yaml:"full_row_toggle"`
	HideSelect             bool   `yaml:"hide_select"`
}

// DefaultCheckbox mirrors the presentation defaults of a fresh collapsible-selection node.
func DefaultCheckbox() Checkbox {
	return Checkbox{ShowLabelOnHover: true, ShowLabelIfHasChildren: true}
}

// Node is one element of a hierarchy tree.
//
// Shared fields apply to every kind. Kind-specific fields are ignored by all
// algorithms unless the node's Kind has the matching capability. The zero
// value of T stands for an absent value.
type Node[T any] struct {
	id       NodeID
	kind     Kind
	parent   NodeID
	children []NodeID

	Name     string
	Value    T
	Disabled bool
	Hidden   bool
	Dropzone string
	Tooltip  string
	Required bool

	// Collapsible, collapsible-selection and select-all.
	Open      bool
	AddAll    bool
	RemoveAll bool
	LazyLoad  LazyLoadFactory[T]

	// Selection-capable kinds.
	Selected        bool
	Searchable      bool
	NotifySelection bool

	// Collapsible-selection. Edges of a value graph before the
	// corresponding nodes are materialized.
	ChildValues  []T
	ParentValues []T
	Checkbox     Checkbox
}

func (n *Node[T]) ID() NodeID     { return n.id }
func (n *Node[T]) Kind() Kind     { return n.kind }
func (n *Node[T]) Parent() NodeID { return n.parent }

// Children returns a copy of the node's ordered child IDs.
func (n *Node[T]) Children() []NodeID { return slices.Clone(n.children) }

// NumChildren returns the number of materialized children.
func (n *Node[T]) NumChildren() int { return len(n.children) }

// HasChildren reports whether the node has materialized children or
// known child values that could be materialized.
func (n *Node[T]) HasChildren() bool {
	return len(n.children) > 0 || len(n.ChildValues) > 0
}

// CheckboxLabel returns the label matching the node's selection state.
func (n *Node[T]) CheckboxLabel() string {
	if n.Selected {
		return n.Checkbox.SelectedLabel
	}
	return n.Checkbox.UnselectedLabel
}

// Spec is a declarative node description. Tree.Build turns it into nodes.
type Spec[T any] struct {
	Kind     Kind
	Name     string
	Value    T
	Disabled bool
	Hidden   bool
	Dropzone string
	Tooltip  string
	Required bool

	Open      bool
	AddAll    bool
	RemoveAll bool
	LazyLoad  LazyLoadFactory[T]

	Selected        bool
	Searchable      bool
	NotifySelection bool

	ChildValues  []T
	ParentValues []T
	Checkbox     Checkbox

	Children []Spec[T]
}

func (s *Spec[T]) node(id NodeID) *Node[T] {
	kind := s.Kind
	if kind == "" {
		kind = KindPlain
	}
	return &Node[T]{
		id:              id,
		kind:            kind,
		parent:          NoNode,
		Name:            s.Name,
		Value:           s.Value,
		Disabled:        s.Disabled,
		Hidden:          s.Hidden,
		Dropzone:        s.Dropzone,
		Tooltip:         s.Tooltip,
		Required:        s.Required,
		Open:            s.Open,
		AddAll:          s.AddAll,
		RemoveAll:       s.RemoveAll,
		LazyLoad:        s.LazyLoad,
		Selected:        s.Selected,
		Searchable:      s.Searchable,
		NotifySelection: s.NotifySelection,
		ChildValues:     slices.Clone(s.ChildValues),
		ParentValues:    slices.Clone(s.ParentValues),
		Checkbox:        s.Checkbox,
	}
}
