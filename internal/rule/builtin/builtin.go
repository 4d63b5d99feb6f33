// Package builtin holds the stock behavior rules and a name-based factory
// used by configuration.
package builtin

import (
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/hierselect/internal/rule"
)

const (
	NameCollapseSiblingsOnOpen      = "collapse_siblings_on_open"
	NameDisable1stLevelOnSelection  = "disable_first_level_on_selection"
	NameHierarchySelectLimit        = "hierarchy_select_limit"
	NameSingleSelectionOnly         = "single_selection_only"
	NameSelectAllChildren           = "select_all_children"
	NameSelectOnAllChildrenSelected = "select_on_all_children_selected"
	NameSelectAllDescendants        = "select_all_descendants"
)

// Params carries the optional parameters a configured rule may take.
type Params struct {
	Limit int `yaml:"limit"`
}

type factory[T any] func(Params) rule.Rule[T]

func factories[T any]() map[string]factory[T] {
	return map[string]factory[T]{
		NameCollapseSiblingsOnOpen:      func(Params) rule.Rule[T] { return CollapseSiblingsOnOpen[T]{} },
		NameDisable1stLevelOnSelection:  func(Params) rule.Rule[T] { return Disable1stLevelOnSelection[T]{} },
		NameHierarchySelectLimit:        func(p Params) rule.Rule[T] { return NewHierarchySelectLimit[T](p.Limit) },
		NameSingleSelectionOnly:         func(Params) rule.Rule[T] { return SingleSelectionOnly[T]{} },
		NameSelectAllChildren:           func(Params) rule.Rule[T] { return SelectAllChildren[T]{} },
		NameSelectOnAllChildrenSelected: func(Params) rule.Rule[T] { return SelectOnAllChildrenSelected[T]{} },
		NameSelectAllDescendants:        func(Params) rule.Rule[T] { return SelectAllDescendants[T]{} },
	}
}

// New builds the built-in rule registered under name.
func New[T any](name string, p Params) (rule.Rule[T], error) {
	f, ok := factories[T]()[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in rule %q", name)
	}
	return f(p), nil
}

// Known reports whether name is a built-in rule.
func Known(name string) bool {
	_, ok := factories[struct{}]()[name]
	return ok
}

// Names lists every built-in rule name, sorted.
func Names() []string {
	fs := factories[struct{}]()
	out := make([]string, 0, len(fs))
	for k := range fs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
