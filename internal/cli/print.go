package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/gyaneshwarpardhi/hierselect/internal/engine"
	"github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"
)

// printTree writes the tree as an indented outline, one node per line:
//
//	name [kind] = value  flags
//
// Hidden subtrees are skipped unless all is set.
func printTree[T any](w io.Writer, e *engine.Engine[T], all bool) error {
	t := e.Tree()
	var b strings.Builder
	b.WriteString(nodeLine(e, t.Node(t.Root())))
	b.WriteByte('\n')

	var walk func(id hierarchy.NodeID, prefix string)
	walk = func(id hierarchy.NodeID, prefix string) {
		var kids []hierarchy.NodeID
		for _, c := range t.Children(id) {
			if all || !t.Node(c).Hidden {
				kids = append(kids, c)
			}
		}
		for i, c := range kids {
			branch, next := "├── ", "│   "
			if i == len(kids)-1 {
				branch, next = "└── ", "    "
			}
			b.WriteString(styleBranch.Render(prefix + branch))
			b.WriteString(nodeLine(e, t.Node(c)))
			b.WriteByte('\n')
			walk(c, prefix+next)
		}
	}
	walk(t.Root(), "")

	_, err := io.WriteString(w, b.String())
	return err
}

func nodeLine[T any](e *engine.Engine[T], n *hierarchy.Node[T]) string {
	name := n.Name
	if name == "" {
		name = "(unnamed)"
	}
	parts := []string{name}
	if n.Kind() != hierarchy.KindPlain {
		parts = append(parts, styleKind.Render("["+string(n.Kind())+"]"))
	}
	if v := any(n.Value); v != nil && fmt.Sprint(v) != "" && fmt.Sprint(v) != n.Name {
		parts = append(parts, "= "+fmt.Sprint(v))
	}

	var flags []string
	if n.Open {
		flags = append(flags, "open")
	}
	if n.Selected {
		flags = append(flags, styleSelected.Render("selected"))
	}
	if n.Disabled {
		flags = append(flags, styleDisabled.Render("disabled"))
	}
	if n.Hidden {
		flags = append(flags, styleHidden.Render("hidden"))
	}
	if e.Loading(n.ID()) {
		flags = append(flags, "loading")
	}
	if len(flags) > 0 {
		parts = append(parts, " "+strings.Join(flags, " "))
	}
	return strings.Join(parts, " ")
}
