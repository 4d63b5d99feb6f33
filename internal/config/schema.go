package config

import (
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/builtin"
	"github.com/gyaneshwarpardhi/hierselect/internal/selection"
)

const (
	DefaultLoaderWorkers  = 4
	DefaultLoadQueueDepth = 64
)

// Document is the top-level YAML structure.
type Document struct {
	Version string      `yaml:"version"`
	Engine  EngineConf  `yaml:"engine"`
	Rules   []RuleDef   `yaml:"rules"`
	Tree    *NodeDef    `yaml:"tree,omitempty"`    // static tree
	Dataset *DatasetDef `yaml:"dataset,omitempty"` // cyclical dataset, exclusive with Tree
	Steps   []Step      `yaml:"steps"`
}

// EngineConf holds dispatch and lazy-load settings.
type EngineConf struct {
	FailOpen       bool `yaml:"fail_open"` // log rule failures and keep dispatching
	LoaderWorkers  int  `yaml:"loader_workers"`
	LoadQueueDepth int  `yaml:"load_queue_depth"`
}

// ApplyDefaults fills zero values.
func (c *EngineConf) ApplyDefaults() {
	if c.LoaderWorkers <= 0 {
		c.LoaderWorkers = DefaultLoaderWorkers
	}
	if c.LoadQueueDepth <= 0 {
		c.LoadQueueDepth = DefaultLoadQueueDepth
	}
}

// RuleDef names a built-in rule and its parameters. Rules run in list order.
type RuleDef struct {
	Name           string `yaml:"name"`
	builtin.Params `yaml:",inline"`
}

// NodeDef describes one node of a static tree.
type NodeDef struct {
	Kind     string `yaml:"kind"` // empty = plain
	Name     string `yaml:"name"`
	Value    any    `yaml:"value"`
	Disabled bool   `yaml:"disabled"`
	Hidden   bool   `yaml:"hidden"`
	Dropzone string `yaml:"dropzone"`
	Tooltip  string `yaml:"tooltip"`
	Required bool   `yaml:"required"`

	Open      bool `yaml:"open"`
	AddAll    bool `yaml:"add_all"`
	RemoveAll bool `yaml:"remove_all"`

	Selected        bool `yaml:"selected"`
	Searchable      bool `yaml:"searchable"`
	NotifySelection bool `yaml:"notify_selection"`

	ChildValues  []any               `yaml:"child_values"`
	ParentValues []any               `yaml:"parent_values"`
	Checkbox     *hierarchy.Checkbox `yaml:"checkbox"`

	Children []NodeDef `yaml:"children"`
	// LazyChildren are produced by a lazy-load factory on first expansion
	// instead of being built up front.
	LazyChildren []NodeDef `yaml:"lazy_children"`
}

// DatasetDef describes a flat, possibly cyclical dataset.
type DatasetDef struct {
	SelectDescendants *bool               `yaml:"select_descendants"` // nil = true
	FirstLevel        []string            `yaml:"first_level"`
	Selected          []string            `yaml:"selected"`
	NewNode           *hierarchy.Checkbox `yaml:"new_node"`
	Records           []RecordDef         `yaml:"records"`
}

// RecordDef is one dataset entry.
type RecordDef struct {
	Value    string   `yaml:"value"`
	Name     string   `yaml:"name"` // defaults to Value
	Parents  []string `yaml:"parents"`
	Children []string `yaml:"children"`
}

// Step is one scripted trigger. Exactly one field is set. Node paths are
// slash-separated names or values, resolved from the root.
type Step struct {
	Open      string              `yaml:"open,omitempty"`
	Select    string              `yaml:"select,omitempty"`
	Deselect  string              `yaml:"deselect,omitempty"`
	AddAll    string              `yaml:"add_all,omitempty"`
	RemoveAll string              `yaml:"remove_all,omitempty"`
	Filter    *hierarchy.Criteria `yaml:"filter,omitempty"`
	Search    *hierarchy.Criteria `yaml:"search,omitempty"`
	Notify    *selection.Command  `yaml:"notify,omitempty"`
}
