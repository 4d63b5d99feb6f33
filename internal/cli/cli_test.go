package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/hierselect/internal/api"
	"github.com/gyaneshwarpardhi/hierselect/internal/cli"
	"github.com/gyaneshwarpardhi/hierselect/internal/rule/builtin"
)

const fruitDoc = `
version: "1"
rules:
  - name: single_selection_only
tree:
  name: root
  children:
    - kind: collapsible
      name: fruit
      children:
        - {kind: selection, name: apple, value: {id: a1, label: Apple}, searchable: true, notify_selection: true}
        - {kind: selection, name: pear, value: {id: p1, label: Pear}, searchable: true, notify_selection: true}
    - kind: collapsible
      name: later
      lazy_children:
        - {kind: selection, name: plum, value: {id: u1, label: Plum}}
steps:
  - open: fruit
  - select: fruit/apple
  - notify: {type: SELECT, field: id, value: p1}
  - open: later
  - search: {field: label, value: pea}
`

const datasetDoc = `
version: "1"
dataset:
  first_level: [node1]
  records:
    - {value: node1, children: [node2]}
    - {value: node2, parents: [node1], children: [node3]}
    - {value: node3, parents: [node2]}
steps:
  - open: node1
  - select: node1/node2
  - filter: {value: node3}
`

func writeDoc(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hierselect.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := cli.New(&out, io.Discard).RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRules(t *testing.T) {
	out, err := run(t, "rules")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Fields(out); strings.Join(got, ",") != strings.Join(builtin.Names(), ",") {
		t.Errorf("rules = %v", got)
	}
}

func TestShow(t *testing.T) {
	out, err := run(t, "show", "-c", writeDoc(t, fruitDoc))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"root", "fruit", "[collapsible]", "apple", "pear", "later", "selected: \n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "plum") {
		t.Errorf("lazy child printed before load:\n%s", out)
	}
}

func TestShow_MissingConfig(t *testing.T) {
	if _, err := run(t, "show", "-c", filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error")
	}
}

func TestReplay(t *testing.T) {
	out, err := run(t, "replay", "-c", writeDoc(t, fruitDoc))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"pear", "plum", "open", "selected: pear\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "apple") {
		t.Errorf("hidden node printed:\n%s", out)
	}

	all, err := run(t, "replay", "--all", "-c", writeDoc(t, fruitDoc))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(all, "apple") || !strings.Contains(all, "hidden") {
		t.Errorf("--all output:\n%s", all)
	}
}

func TestReplay_Each(t *testing.T) {
	out, err := run(t, "replay", "--each", "-c", writeDoc(t, fruitDoc))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# 1: open fruit", "# 2: select fruit/apple", `# 5: search label="pea"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if n := strings.Count(out, "selected: "); n != 5 {
		t.Errorf("printed %d trees, want 5", n)
	}
}

func TestReplay_JSON(t *testing.T) {
	out, err := run(t, "replay", "--json", "-c", writeDoc(t, fruitDoc))
	if err != nil {
		t.Fatal(err)
	}
	var snap api.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(snap.Selected) != 1 || len(snap.Rules) != 1 || snap.Rules[0] != builtin.NameSingleSelectionOnly {
		t.Errorf("snapshot = %+v", snap)
	}
	later := snap.Root.Children[1]
	if len(later.Children) != 1 || later.Children[0].Name != "plum" {
		t.Errorf("later = %+v", later)
	}
}

func TestReplay_Dataset(t *testing.T) {
	out, err := run(t, "replay", "-c", writeDoc(t, datasetDoc))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"node1 [collapsible_selection]  open", "node3", "selected: node2, node3\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReplay_SampleDocument(t *testing.T) {
	out, err := run(t, "replay", "-c", filepath.Join("..", "..", "hierselect.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"all fruit [select_all]  open", "leek", "selected: apple, pear\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReplay_BadStep(t *testing.T) {
	doc := strings.Replace(fruitDoc, "select: fruit/apple", "select: fruit/nope", 1)
	_, err := run(t, "replay", "-c", writeDoc(t, doc))
	if err == nil || !strings.Contains(err.Error(), `no child "nope"`) || !strings.Contains(err.Error(), "step 2") {
		t.Errorf("err = %v", err)
	}
}

func TestReplay_Invalid(t *testing.T) {
	_, err := run(t, "replay", "-c", writeDoc(t, "version: \"1\"\n"))
	if err == nil || !strings.Contains(err.Error(), "one of tree/dataset") {
		t.Errorf("err = %v", err)
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestWatch(t *testing.T) {
	path := writeDoc(t, fruitDoc)
	var out syncBuffer
	root := cli.New(&out, io.Discard).RootCommand()
	root.SetArgs([]string{"watch", "-c", path})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for !strings.Contains(out.String(), want) {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %q:\n%s", want, out.String())
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
	waitFor("selected: pear")

	if err := os.WriteFile(path, []byte(strings.ReplaceAll(fruitDoc, "pear", "mango")), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor("selected: mango")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
