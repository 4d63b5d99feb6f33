package engine_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/hierselect/internal/config"
	"github.com/gyaneshwarpardhi/hierselect/internal/engine"
	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/builtin"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/cyclical"
	"github.com/gyaneshwarpardhi/hierselect/internal/selection"
)

type item struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type spec = hierarchy.Spec[item]

var errBoom = errors.New("boom")

func newEngine(t *testing.T, root spec, opts engine.Options, rules ...rule.Rule[item]) *engine.Engine[item] {
	t.Helper()
	e := engine.New(context.Background(), hierarchy.NewTree(root), rule.NewRegistry(rules...), opts)
	t.Cleanup(e.Close)
	return e
}

func childID(e *engine.Engine[item], path ...int) hierarchy.NodeID {
	id := e.Tree().Root()
	for _, i := range path {
		id = e.Tree().Children(id)[i]
	}
	return id
}

func names(e *engine.Engine[item], ids []hierarchy.NodeID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.Tree().Node(id).Name)
	}
	return out
}

func recorder(name string, calls *[]string, err error) rule.Rule[item] {
	return rule.Func[item]{RuleName: name, Fn: func(_ *hierarchy.Tree[item], _ hierarchy.NodeID, typ event.Type) error {
		*calls = append(*calls, name+":"+string(typ))
		return err
	}}
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDispatch_Order(t *testing.T) {
	var calls []string
	e := newEngine(t, spec{Name: "root", Children: []spec{{Kind: hierarchy.KindSelection, Name: "a"}}}, engine.Options{},
		recorder("first", &calls, nil), recorder("second", &calls, nil))

	res, err := e.Load()
	if err != nil {
		t.Fatal(err)
	}
	if res.Event != event.Load || res.Node != hierarchy.NoNode {
		t.Errorf("result = %+v", res)
	}
	if _, err := e.ToggleSelect(childID(e, 0)); err != nil {
		t.Fatal(err)
	}
	want := []string{"first:load", "second:load", "first:select", "second:select"}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestDispatch_FailFast(t *testing.T) {
	var calls []string
	var events []*event.NodeEvent
	e := newEngine(t, spec{Children: []spec{{Kind: hierarchy.KindSelection, Name: "a"}}}, engine.Options{},
		recorder("bad", &calls, errBoom), recorder("good", &calls, nil))
	e.OnNodeEvent(func(ev *event.NodeEvent) { events = append(events, ev) })

	res, err := e.SetSelected(childID(e, 0), true)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(res.Errors) != 1 || !slices.Equal(calls, []string{"bad:select"}) {
		t.Errorf("errors = %v, calls = %v", res.Errors, calls)
	}
	if len(events) != 0 {
		t.Errorf("failed select emitted %d node events", len(events))
	}
}

func TestDispatch_FailOpen(t *testing.T) {
	var calls []string
	var events []*event.NodeEvent
	e := newEngine(t, spec{Children: []spec{{Kind: hierarchy.KindSelection, Name: "a"}}},
		engine.Options{Conf: config.EngineConf{FailOpen: true}},
		recorder("bad", &calls, errBoom), recorder("good", &calls, nil))
	e.OnNodeEvent(func(ev *event.NodeEvent) { events = append(events, ev) })

	res, err := e.SetSelected(childID(e, 0), true)
	if err != nil {
		t.Fatalf("fail-open returned %v", err)
	}
	if !errors.Is(res.Err(), errBoom) {
		t.Errorf("res.Err() = %v", res.Err())
	}
	if !slices.Equal(calls, []string{"bad:select", "good:select"}) {
		t.Errorf("calls = %v", calls)
	}
	if len(events) != 1 || events[0].Type != event.SelectNodes {
		t.Errorf("events = %+v", events)
	}
}

func TestTriggers_Errors(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{
		{Kind: hierarchy.KindPlain, Name: "plain"},
		{Kind: hierarchy.KindSelection, Name: "off", Disabled: true},
		{Kind: hierarchy.KindCollapsible, Name: "folder", Disabled: true},
		{Kind: hierarchy.KindTitle, Name: "title"},
	}}, engine.Options{})

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"select plain", func() error { _, err := e.SetSelected(childID(e, 0), true); return err }, engine.ErrNotSelectable},
		{"select disabled", func() error { _, err := e.ToggleSelect(childID(e, 1)); return err }, engine.ErrDisabled},
		{"collapse selection", func() error { _, err := e.ToggleCollapse(childID(e, 1)); return err }, engine.ErrNotCollapsible},
		{"collapse disabled", func() error { _, err := e.ToggleCollapse(childID(e, 2)); return err }, engine.ErrDisabled},
		{"add all on title", func() error { _, err := e.AddAll(childID(e, 3)); return err }, engine.ErrNotCollapsible},
		{"unknown node", func() error { _, err := e.ToggleSelect(99); return err }, hierarchy.ErrUnknownNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if e.Tree().Node(childID(e, 1)).Selected || e.Tree().Node(childID(e, 2)).Open {
		t.Error("rejected trigger mutated the node")
	}
}

func TestSelectNodesEvent(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{
		{Kind: hierarchy.KindSelection, Name: "a"},
		{Kind: hierarchy.KindSelection, Name: "b", Selected: true},
	}}, engine.Options{})
	var got *event.NodeEvent
	e.OnNodeEvent(func(ev *event.NodeEvent) { got = ev })

	res, err := e.ToggleSelect(childID(e, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names(e, res.Selected), []string{"a", "b"}) {
		t.Errorf("selected = %v", names(e, res.Selected))
	}
	if got == nil || got.Type != event.SelectNodes || got.Node != childID(e, 0) || got.ID == "" {
		t.Fatalf("event = %+v", got)
	}
	want := []event.Selection{{Node: childID(e, 0), Selected: true}, {Node: childID(e, 1), Selected: true}}
	if !slices.Equal(got.Selections, want) {
		t.Errorf("selections = %+v", got.Selections)
	}
}

func TestAddAllRemoveAll(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{{Kind: hierarchy.KindSelectAll, Name: "all", AddAll: true, RemoveAll: true}}}, engine.Options{})
	var seen []event.NodeEventType
	e.OnNodeEvent(func(ev *event.NodeEvent) { seen = append(seen, ev.Type) })

	ev, err := e.AddAll(childID(e, 0))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != event.AddAll || ev.Node != childID(e, 0) {
		t.Errorf("event = %+v", ev)
	}
	if _, err := e.RemoveAll(childID(e, 0)); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(seen, []event.NodeEventType{event.AddAll, event.RemoveAll}) {
		t.Errorf("seen = %v", seen)
	}
}

func TestSelectLimit(t *testing.T) {
	limit := builtin.NewHierarchySelectLimit[item](2)
	e := newEngine(t, spec{Children: []spec{
		{Kind: hierarchy.KindSelection, Name: "a"},
		{Kind: hierarchy.KindSelection, Name: "b"},
		{Kind: hierarchy.KindSelection, Name: "c"},
	}}, engine.Options{}, limit)

	if _, err := e.SetSelected(childID(e, 0), true); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetSelected(childID(e, 1), true); err != nil {
		t.Fatal(err)
	}
	if !limit.LimitExceeded() || !e.Tree().Node(childID(e, 2)).Disabled {
		t.Fatal("limit not enforced")
	}
	if _, err := e.SetSelected(childID(e, 2), true); !errors.Is(err, engine.ErrDisabled) {
		t.Errorf("err = %v, want disabled", err)
	}
	if _, err := e.ToggleSelect(childID(e, 1)); err != nil {
		t.Fatal(err)
	}
	if e.Tree().Node(childID(e, 2)).Disabled {
		t.Error("c still disabled below the limit")
	}
}

func TestSingleSelection(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{
		{Kind: hierarchy.KindSelection, Name: "a", Value: item{ID: "1"}},
		{Kind: hierarchy.KindSelection, Name: "b", Value: item{ID: "2"}},
	}}, engine.Options{}, builtin.SingleSelectionOnly[item]{})

	_, _ = e.SetSelected(childID(e, 0), true)
	res, err := e.SetSelected(childID(e, 1), true)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names(e, res.Selected), []string{"b"}) {
		t.Errorf("selected = %v", names(e, res.Selected))
	}
}

func lazy(children ...spec) hierarchy.LazyLoadFactory[item] {
	return func(ctx context.Context, _ string, _ item, emit func([]spec)) error {
		emit(children)
		return nil
	}
}

func TestLazyLoad(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{{
		Kind:     hierarchy.KindCollapsible,
		Name:     "folder",
		LazyLoad: lazy(spec{Name: "x"}, spec{Name: "y"}),
	}}}, engine.Options{})
	var loaded *event.NodeEvent
	e.OnNodeEvent(func(ev *event.NodeEvent) {
		if ev.Type == event.LoadChildren {
			loaded = ev
		}
	})
	folder := childID(e, 0)

	if _, err := e.ToggleCollapse(folder); err != nil {
		t.Fatal(err)
	}
	if !e.Loading(folder) || e.PendingLoads() != 1 {
		t.Fatal("load not started")
	}
	if err := e.AwaitLoad(awaitCtx(t)); err != nil {
		t.Fatal(err)
	}
	kids := e.Tree().Children(folder)
	if !slices.Equal(names(e, kids), []string{"x", "y"}) {
		t.Errorf("children = %v", names(e, kids))
	}
	if loaded == nil || loaded.Node != folder || !slices.Equal(loaded.Children, kids) {
		t.Errorf("load event = %+v", loaded)
	}
	if e.Loading(folder) {
		t.Error("load still in flight")
	}

	// Reopening a node that has children does not reload it.
	_, _ = e.ToggleCollapse(folder)
	_, _ = e.ToggleCollapse(folder)
	if e.PendingLoads() != 0 {
		t.Error("reopen started a load")
	}
}

func TestLazyLoad_ReplacesOnEachEmission(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{{
		Kind: hierarchy.KindCollapsibleSelection,
		Name: "folder",
		LazyLoad: func(ctx context.Context, name string, _ item, emit func([]spec)) error {
			emit([]spec{{Name: name + "-first"}})
			emit([]spec{{Name: name + "-a"}, {Name: name + "-b"}})
			return nil
		},
	}}}, engine.Options{})
	folder := childID(e, 0)
	if _, err := e.ToggleCollapse(folder); err != nil {
		t.Fatal(err)
	}
	if err := e.AwaitLoad(awaitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if got := names(e, e.Tree().Children(folder)); !slices.Equal(got, []string{"folder-a", "folder-b"}) {
		t.Errorf("children = %v", got)
	}
	if e.Tree().Len() != 4 {
		t.Errorf("Len = %d, want 4 (first emission released)", e.Tree().Len())
	}
}

func TestLazyLoad_Failure(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{{
		Kind: hierarchy.KindCollapsible,
		LazyLoad: func(context.Context, string, item, func([]spec)) error {
			return errBoom
		},
	}}}, engine.Options{})
	if _, err := e.ToggleCollapse(childID(e, 0)); err != nil {
		t.Fatal(err)
	}
	if err := e.AwaitLoad(awaitCtx(t)); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want boom", err)
	}
	if e.PendingLoads() != 0 || e.Tree().Node(childID(e, 0)).NumChildren() != 0 {
		t.Error("failed load left state behind")
	}
}

func TestLazyLoad_CancelledOnRelease(t *testing.T) {
	started := make(chan struct{})
	exited := make(chan error, 1)
	e := newEngine(t, spec{Children: []spec{{
		Kind: hierarchy.KindCollapsible,
		LazyLoad: func(ctx context.Context, _ string, _ item, _ func([]spec)) error {
			close(started)
			<-ctx.Done()
			exited <- ctx.Err()
			return ctx.Err()
		},
	}}}, engine.Options{})
	folder := childID(e, 0)
	if _, err := e.ToggleCollapse(folder); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := e.Tree().Remove(folder); err != nil {
		t.Fatal(err)
	}
	if e.Loading(folder) || e.PendingLoads() != 0 {
		t.Error("release kept the load")
	}
	select {
	case err := <-exited:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("factory ctx err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("factory not cancelled")
	}
	if _, err := e.ApplyPending(); err != nil {
		t.Errorf("stale result surfaced: %v", err)
	}
}

func TestLazyLoad_QueueFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 3)
	factory := func(ctx context.Context, name string, _ item, emit func([]spec)) error {
		started <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
		emit([]spec{{Name: name + "-child"}})
		return nil
	}
	e := newEngine(t, spec{Children: []spec{
		{Kind: hierarchy.KindCollapsible, Name: "x", LazyLoad: factory},
		{Kind: hierarchy.KindCollapsible, Name: "y", LazyLoad: factory},
		{Kind: hierarchy.KindCollapsible, Name: "z", LazyLoad: factory},
	}}, engine.Options{Conf: config.EngineConf{LoaderWorkers: 1, LoadQueueDepth: 1}})

	if _, err := e.ToggleCollapse(childID(e, 0)); err != nil {
		t.Fatal(err)
	}
	<-started
	if _, err := e.ToggleCollapse(childID(e, 1)); err != nil {
		t.Fatal(err)
	}
	if u := e.LoadQueueUtilization(); u != 1 {
		t.Errorf("utilization = %v, want 1", u)
	}
	if _, err := e.ToggleCollapse(childID(e, 2)); !errors.Is(err, engine.ErrQueueFull) {
		t.Fatalf("err = %v, want queue full", err)
	}
	if e.Loading(childID(e, 2)) {
		t.Error("dropped load tracked as in flight")
	}

	close(block)
	if err := e.AwaitLoad(awaitCtx(t)); err != nil {
		t.Fatal(err)
	}
	for i, want := range []int{1, 1, 0} {
		if got := e.Tree().Node(childID(e, i)).NumChildren(); got != want {
			t.Errorf("node %d children = %d, want %d", i, got, want)
		}
	}
}

func TestBus_SearchAndNotify(t *testing.T) {
	bus := selection.NewBus()
	e := newEngine(t, spec{Children: []spec{
		{Kind: hierarchy.KindSelection, Name: "apple", Value: item{ID: "1", Label: "Apple"}, Searchable: true, NotifySelection: true},
		{Kind: hierarchy.KindSelection, Name: "banana", Value: item{ID: "2", Label: "Banana"}, Searchable: true, NotifySelection: true, Disabled: true},
		{Kind: hierarchy.KindPlain, Name: "plain", Value: item{ID: "2"}, Searchable: true, NotifySelection: true},
	}}, engine.Options{Bus: bus})

	if s, n := bus.Subscribers(); s != 2 || n != 2 {
		t.Fatalf("subscribers = %d/%d, want 2/2", s, n)
	}

	e.Search(hierarchy.Criteria{Field: "label", Value: "APP"})
	if e.Tree().Node(childID(e, 0)).Hidden || !e.Tree().Node(childID(e, 1)).Hidden {
		t.Error("search visibility wrong")
	}
	if e.Tree().Node(childID(e, 2)).Hidden {
		t.Error("non-selectable node reacted to search")
	}

	var events int
	e.OnNodeEvent(func(ev *event.NodeEvent) {
		if ev.Type == event.SelectNodes {
			events++
		}
	})
	if err := e.Notify(selection.Command{Type: selection.Select, Field: "id", Value: "2"}); err != nil {
		t.Fatal(err)
	}
	if !e.Tree().Node(childID(e, 1)).Selected {
		t.Error("disabled node not selected by broadcast")
	}
	if e.Tree().Node(childID(e, 0)).Selected || e.Tree().Node(childID(e, 2)).Selected {
		t.Error("unaddressed node selected")
	}
	if events != 1 {
		t.Errorf("select events = %d, want 1", events)
	}

	if err := e.Notify(selection.Command{Type: "BOGUS", Field: "id", Value: "2"}); err != nil {
		t.Fatal(err)
	}
	if !e.Tree().Node(childID(e, 1)).Selected {
		t.Error("unknown command type deselected the node")
	}
	if events != 1 {
		t.Errorf("select events after unknown command = %d, want 1", events)
	}

	if err := e.Tree().Remove(childID(e, 0)); err != nil {
		t.Fatal(err)
	}
	if s, n := bus.Subscribers(); s != 1 || n != 1 {
		t.Errorf("after remove subscribers = %d/%d, want 1/1", s, n)
	}
	e.Close()
	if s, n := bus.Subscribers(); s != 0 || n != 0 {
		t.Errorf("after close subscribers = %d/%d", s, n)
	}
}

func TestBus_NotifyJoinsRuleErrors(t *testing.T) {
	var calls []string
	bus := selection.NewBus()
	e := newEngine(t, spec{Children: []spec{
		{Kind: hierarchy.KindSelection, Value: item{ID: "1"}, NotifySelection: true},
	}}, engine.Options{Bus: bus}, recorder("bad", &calls, errBoom))

	err := e.Notify(selection.Command{Type: selection.Deselect, Field: "id", Value: "1"})
	if !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want boom", err)
	}
	if err := e.Notify(selection.Command{Type: selection.Select, Field: "id", Value: "9"}); err != nil {
		t.Errorf("unaddressed notify = %v", err)
	}
}

func TestBus_LazyChildrenSubscribe(t *testing.T) {
	bus := selection.NewBus()
	e := newEngine(t, spec{Children: []spec{{
		Kind:     hierarchy.KindCollapsible,
		LazyLoad: lazy(spec{Kind: hierarchy.KindSelection, Value: item{Label: "kiwi"}, Searchable: true}),
	}}}, engine.Options{Bus: bus})
	if s, _ := bus.Subscribers(); s != 0 {
		t.Fatalf("search subscribers = %d before load", s)
	}
	if _, err := e.ToggleCollapse(childID(e, 0)); err != nil {
		t.Fatal(err)
	}
	if err := e.AwaitLoad(awaitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if s, _ := bus.Subscribers(); s != 1 {
		t.Errorf("search subscribers = %d after load, want 1", s)
	}
	e.Search(hierarchy.Criteria{Field: "label", Value: "plum"})
	if !e.Tree().Node(childID(e, 0, 0)).Hidden {
		t.Error("loaded child ignored search")
	}
}

func TestClose(t *testing.T) {
	e := newEngine(t, spec{Children: []spec{{Kind: hierarchy.KindCollapsible, LazyLoad: lazy()}}}, engine.Options{})
	e.Close()
	e.Close()
	if _, err := e.ToggleCollapse(childID(e, 0)); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("err = %v, want closed", err)
	}
}

func TestCyclicalManager(t *testing.T) {
	m := cyclical.New([]cyclical.Record[string]{
		{Value: "a", Name: "a", ChildValues: []string{"b"}},
		{Value: "b", Name: "b", ParentValues: []string{"a"}, ChildValues: []string{"c"}},
		{Value: "c", Name: "c", ParentValues: []string{"b"}, ChildValues: []string{"a"}},
	}, cyclical.WithFirstLevel("a"))
	tree := hierarchy.NewTree(hierarchy.Spec[string]{Name: "root"})
	e := engine.New(context.Background(), tree, rule.NewRegistry[string](m, builtin.CollapseSiblingsOnOpen[string]{}), engine.Options{})
	t.Cleanup(e.Close)

	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}
	a := tree.Children(tree.Root())[0]
	if _, err := e.ToggleCollapse(a); err != nil {
		t.Fatal(err)
	}
	b := tree.Children(a)[0]
	if tree.Node(b).Name != "b" {
		t.Fatalf("child of a = %q", tree.Node(b).Name)
	}

	res, err := e.SetSelected(a, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.SelectedValues(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("selected values = %v", got)
	}
	if !slices.Equal(res.Selected, []hierarchy.NodeID{a, b}) {
		t.Errorf("selected nodes = %v", res.Selected)
	}

	if _, err := e.ToggleSelect(b); err != nil {
		t.Fatal(err)
	}
	// a is reachable from b through c, so it goes too.
	if got := m.SelectedValues(); len(got) != 0 {
		t.Errorf("after deselect b = %v, want none", got)
	}
}
