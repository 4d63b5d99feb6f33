package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/builtin"
	"github.com/gyaneshwarpardhi/hierselect/internal/selection"
)

// Validate checks the document for:
//   - Unknown or duplicate rules and misplaced rule parameters
//   - Exactly one of tree/dataset
//   - Unknown node kinds and lazy children on nodes that cannot expand
//   - Missing or duplicate dataset values and dangling references
//   - Steps with zero or several actions
func Validate(doc *Document) error {
	if doc.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if doc.Engine.LoaderWorkers < 0 || doc.Engine.LoadQueueDepth < 0 {
		errs = append(errs, "engine: loader_workers and load_queue_depth must not be negative")
	}

	seen := make(map[string]int)
	for i, r := range doc.Rules {
		switch {
		case r.Name == "":
			errs = append(errs, fmt.Sprintf("rules[%d]: name is required", i))
			continue
		case !builtin.Known(r.Name):
			errs = append(errs, fmt.Sprintf("rules[%d]: unknown rule %q (known: %s)", i, r.Name, strings.Join(builtin.Names(), ", ")))
		}
		if prev, ok := seen[r.Name]; ok {
			errs = append(errs, fmt.Sprintf("rules[%d]: duplicate rule %q (first at rules[%d])", i, r.Name, prev))
		} else {
			seen[r.Name] = i
		}
		if r.Limit != 0 && r.Name != builtin.NameHierarchySelectLimit {
			errs = append(errs, fmt.Sprintf("rules[%d]: limit only applies to %s", i, builtin.NameHierarchySelectLimit))
		}
		if r.Limit < 0 {
			errs = append(errs, fmt.Sprintf("rules[%d]: limit must not be negative", i))
		}
	}

	switch {
	case doc.Tree != nil && doc.Dataset != nil:
		errs = append(errs, "only one of tree/dataset may be set")
	case doc.Tree == nil && doc.Dataset == nil:
		errs = append(errs, "one of tree/dataset must be set")
	case doc.Tree != nil:
		validateNode(*doc.Tree, "tree", &errs)
	case doc.Dataset != nil:
		validateDataset(doc.Dataset, &errs)
	}

	for i, s := range doc.Steps {
		validateStep(s, fmt.Sprintf("steps[%d]", i), &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateNode(n NodeDef, loc string, errs *[]string) {
	kind, err := hierarchy.ParseKind(n.Kind)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", loc, err))
	}
	if len(n.LazyChildren) > 0 {
		if err == nil && !kind.Expandable() {
			*errs = append(*errs, fmt.Sprintf("%s: lazy_children require an expandable kind, got %s", loc, kind))
		}
		if len(n.Children) > 0 {
			*errs = append(*errs, fmt.Sprintf("%s: only one of children/lazy_children may be set", loc))
		}
	}
	if kind == hierarchy.KindTitle && len(n.Children)+len(n.LazyChildren) > 0 {
		*errs = append(*errs, fmt.Sprintf("%s: title nodes cannot have children", loc))
	}
	for j, c := range n.Children {
		validateNode(c, fmt.Sprintf("%s.children[%d]", loc, j), errs)
	}
	for j, c := range n.LazyChildren {
		validateNode(c, fmt.Sprintf("%s.lazy_children[%d]", loc, j), errs)
	}
}

func validateDataset(ds *DatasetDef, errs *[]string) {
	values := make(map[string]int, len(ds.Records))
	for i, r := range ds.Records {
		if r.Value == "" {
			*errs = append(*errs, fmt.Sprintf("dataset.records[%d]: value is required", i))
			continue
		}
		if prev, ok := values[r.Value]; ok {
			*errs = append(*errs, fmt.Sprintf("dataset.records[%d]: duplicate value %q (first at records[%d])", i, r.Value, prev))
			continue
		}
		values[r.Value] = i
	}
	if len(ds.FirstLevel) == 0 {
		*errs = append(*errs, "dataset: first_level must not be empty")
	}
	check := func(field string, refs []string) {
		for _, v := range refs {
			if _, ok := values[v]; !ok {
				*errs = append(*errs, fmt.Sprintf("dataset.%s: unknown value %q", field, v))
			}
		}
	}
	check("first_level", ds.FirstLevel)
	check("selected", ds.Selected)
	for _, r := range ds.Records {
		check(fmt.Sprintf("records[%s].parents", r.Value), r.Parents)
		check(fmt.Sprintf("records[%s].children", r.Value), r.Children)
	}
}

func validateStep(s Step, loc string, errs *[]string) {
	set := 0
	for _, v := range []string{s.Open, s.Select, s.Deselect, s.AddAll, s.RemoveAll} {
		if v != "" {
			set++
		}
	}
	if s.Filter != nil {
		set++
	}
	if s.Search != nil {
		set++
	}
	if s.Notify != nil {
		set++
		if _, err := selection.ParseCommandType(string(s.Notify.Type)); err != nil {
			*errs = append(*errs, fmt.Sprintf("%s.notify: %v", loc, err))
		}
		if s.Notify.Field == "" {
			*errs = append(*errs, fmt.Sprintf("%s.notify: field is required", loc))
		}
	}
	if set != 1 {
		*errs = append(*errs, fmt.Sprintf("%s: exactly one action must be set, got %d", loc, set))
	}
}
