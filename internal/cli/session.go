package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/hierselect/internal/api"
	"github.com/gyaneshwarpardhi/hierselect/internal/config"
	"github.com/gyaneshwarpardhi/hierselect/internal/engine"
	"github.com/gyaneshwarpardhi/hierselect/internal/event"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
	"github.com/gyaneshwarpardhi/hierselect/internal/selection"
)

const defaultLoadTimeout = 10 * time.Second

// session is one engine built from one document.
type session struct {
	source string
	setup  *config.Setup
	eng    *engine.Engine[any]
	log    *slog.Logger

	loadTimeout time.Duration
}

// newSession builds the document's tree and rules and dispatches Load.
func newSession(ctx context.Context, source string, doc *config.Document, logger *slog.Logger) (*session, error) {
	setup, err := config.Build(doc, logger)
	if err != nil {
		return nil, err
	}
	eng := engine.New(ctx, setup.Tree, setup.Registry, engine.Options{
		Conf:   doc.Engine,
		Logger: logger,
		Bus:    selection.NewBus(),
	})
	eng.OnNodeEvent(func(ev *event.NodeEvent) {
		logger.Debug("node event", "id", ev.ID, "type", ev.Type, "node", ev.Node, "children", len(ev.Children), "selections", len(ev.Selections))
	})

	s := &session{source: source, setup: setup, eng: eng, log: logger, loadTimeout: defaultLoadTimeout}
	res, err := eng.Load()
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	s.report("load", res)
	return s, nil
}

func (s *session) close() { s.eng.Close() }

// run executes steps in order. after, if set, is called once each step succeeds.
func (s *session) run(ctx context.Context, steps []config.Step, after func(i int, st config.Step)) error {
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.step(ctx, st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, describe(st), err)
		}
		if after != nil {
			after(i, st)
		}
	}
	return nil
}

func (s *session) step(ctx context.Context, st config.Step) error {
	switch {
	case st.Open != "":
		id, err := s.resolve(st.Open)
		if err != nil {
			return err
		}
		if n := s.eng.Tree().Node(id); !n.Open {
			res, err := s.eng.ToggleCollapse(id)
			if err != nil {
				return err
			}
			s.report("open", res)
		}
		lctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()
		return s.eng.AwaitLoad(lctx)
	case st.Select != "", st.Deselect != "":
		path, on := st.Select, true
		if path == "" {
			path, on = st.Deselect, false
		}
		id, err := s.resolve(path)
		if err != nil {
			return err
		}
		res, err := s.eng.SetSelected(id, on)
		if err != nil {
			return err
		}
		s.report("select", res)
	case st.AddAll != "", st.RemoveAll != "":
		path, fn := st.AddAll, s.eng.AddAll
		if path == "" {
			path, fn = st.RemoveAll, s.eng.RemoveAll
		}
		id, err := s.resolve(path)
		if err != nil {
			return err
		}
		ev, err := fn(id)
		if err != nil {
			return err
		}
		s.log.Info("affordance", "event", ev.Type, "node", path)
	case st.Filter != nil:
		if s.setup.Manager != nil {
			return s.setup.Manager.FilterHierarchy(*st.Filter)
		}
		t := s.eng.Tree()
		hierarchy.FilterHierarchy(t, t.Root(), *st.Filter)
	case st.Search != nil:
		s.eng.Search(*st.Search)
	case st.Notify != nil:
		return s.eng.Notify(*st.Notify)
	default:
		return fmt.Errorf("empty step")
	}
	return nil
}

// report logs rule failures a fail-open dispatch swallowed.
func (s *session) report(trigger string, res *engine.Result) {
	if res == nil {
		return
	}
	if err := res.Err(); err != nil {
		s.log.Warn("rules failed", "trigger", trigger, "node", res.Node, "err", err)
	}
	s.log.Debug("dispatched", "trigger", trigger, "node", res.Node, "selected", len(res.Selected), "dur", res.Duration)
}

// resolve walks a slash-separated path of names or values from the root.
func (s *session) resolve(path string) (hierarchy.NodeID, error) {
	t := s.eng.Tree()
	id := t.Root()
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		next := hierarchy.NoNode
		for _, c := range t.Children(id) {
			n := t.Node(c)
			if n.Name == seg || (n.Value != nil && fmt.Sprint(n.Value) == seg) {
				next = c
				break
			}
		}
		if next == hierarchy.NoNode {
			return hierarchy.NoNode, fmt.Errorf("resolve %q: no child %q", path, seg)
		}
		id = next
	}
	return id, nil
}

func (s *session) snapshot() *api.Snapshot {
	return api.Take(s.source, s.setup.Registry.Names(), s.eng)
}

func describe(st config.Step) string {
	switch {
	case st.Open != "":
		return "open " + st.Open
	case st.Select != "":
		return "select " + st.Select
	case st.Deselect != "":
		return "deselect " + st.Deselect
	case st.AddAll != "":
		return "add_all " + st.AddAll
	case st.RemoveAll != "":
		return "remove_all " + st.RemoveAll
	case st.Filter != nil:
		return fmt.Sprintf("filter %s=%q", st.Filter.Field, st.Filter.Value)
	case st.Search != nil:
		return fmt.Sprintf("search %s=%q", st.Search.Field, st.Search.Value)
	case st.Notify != nil:
		return fmt.Sprintf("notify %s %s=%q", st.Notify.Type, st.Notify.Field, st.Notify.Value)
	}
	return "empty"
}
