package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/builtin"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/cyclical"
)

// DatasetRootName names the synthetic root a dataset tree hangs under.
const DatasetRootName = "root"

// Setup is everything a document describes, ready to hand to an engine.
type Setup struct {
	Tree     *hierarchy.Tree[any]
	Registry *rule.Registry[any]
	Manager  *cyclical.Manager[any] // nil unless the document has a dataset
}

// Build validates doc and turns it into a Setup. With a dataset, the
// cyclical manager runs before every configured rule.
func Build(doc *Document, logger *slog.Logger) (*Setup, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Setup{Registry: rule.NewRegistry[any]()}
	if doc.Dataset != nil {
		s.Manager = BuildManager(doc.Dataset, logger)
		s.Registry.Register(s.Manager)
		s.Tree = hierarchy.NewTree(hierarchy.Spec[any]{Name: DatasetRootName})
	} else {
		spec, err := BuildSpec(*doc.Tree)
		if err != nil {
			return nil, err
		}
		s.Tree = hierarchy.NewTree(spec)
	}

	for _, def := range doc.Rules {
		rl, err := builtin.New[any](def.Name, def.Params)
		if err != nil {
			return nil, err
		}
		s.Registry.Register(rl)
	}
	logger.Debug("configuration built", "rules", s.Registry.Names(), "nodes", s.Tree.Len(), "dataset", s.Manager != nil)
	return s, nil
}

// BuildSpec converts a node definition into a tree spec. A node with
// lazy_children gets a factory that emits them once, on first expansion.
func BuildSpec(def NodeDef) (hierarchy.Spec[any], error) {
	kind, err := hierarchy.ParseKind(def.Kind)
	if err != nil {
		return hierarchy.Spec[any]{}, fmt.Errorf("node %q: %w", def.Name, err)
	}
	spec := hierarchy.Spec[any]{
		Kind:            kind,
		Name:            def.Name,
		Value:           def.Value,
		Disabled:        def.Disabled,
		Hidden:          def.Hidden,
		Dropzone:        def.Dropzone,
		Tooltip:         def.Tooltip,
		Required:        def.Required,
		Open:            def.Open,
		AddAll:          def.AddAll,
		RemoveAll:       def.RemoveAll,
		Selected:        def.Selected,
		Searchable:      def.Searchable,
		NotifySelection: def.NotifySelection,
		ChildValues:     def.ChildValues,
		ParentValues:    def.ParentValues,
		Checkbox:        hierarchy.DefaultCheckbox(),
	}
	if def.Checkbox != nil {
		spec.Checkbox = *def.Checkbox
	}
	for _, c := range def.Children {
		cs, err := BuildSpec(c)
		if err != nil {
			return hierarchy.Spec[any]{}, err
		}
		spec.Children = append(spec.Children, cs)
	}
	if len(def.LazyChildren) > 0 {
		lazy := make([]hierarchy.Spec[any], 0, len(def.LazyChildren))
		for _, c := range def.LazyChildren {
			cs, err := BuildSpec(c)
			if err != nil {
				return hierarchy.Spec[any]{}, err
			}
			lazy = append(lazy, cs)
		}
		spec.LazyLoad = staticFactory(lazy)
	}
	return spec, nil
}

func staticFactory(specs []hierarchy.Spec[any]) hierarchy.LazyLoadFactory[any] {
	return func(ctx context.Context, _ string, _ any, emit func([]hierarchy.Spec[any])) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(specs)
		return nil
	}
}

// BuildManager converts a dataset definition into a cyclical manager.
func BuildManager(ds *DatasetDef, logger *slog.Logger) *cyclical.Manager[any] {
	records := make([]cyclical.Record[any], 0, len(ds.Records))
	for _, r := range ds.Records {
		name := r.Name
		if name == "" {
			name = r.Value
		}
		records = append(records, cyclical.Record[any]{
			Value:        r.Value,
			Name:         name,
			ParentValues: toAny(r.Parents),
			ChildValues:  toAny(r.Children),
		})
	}

	opts := []cyclical.Option[any]{
		cyclical.WithFirstLevel(toAny(ds.FirstLevel)...),
		cyclical.WithSelected(toAny(ds.Selected)...),
		cyclical.WithLogger[any](logger),
	}
	if ds.SelectDescendants != nil {
		opts = append(opts, cyclical.WithSelectDescendants[any](*ds.SelectDescendants))
	}
	if ds.NewNode != nil {
		opts = append(opts, cyclical.WithNewNodeConfig[any](*ds.NewNode))
	}
	return cyclical.New(records, opts...)
}

func toAny(ss []string) []any {
	if len(ss) == 0 {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
