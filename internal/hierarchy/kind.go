package hierarchy

import (
	"fmt"
	"strings"
)

// Kind discriminates the node variants of a hierarchy tree.
type Kind string

const (
	KindPlain                Kind = "plain"
	KindCollapsible          Kind = "collapsible"
	KindSelection            Kind = "selection"
	KindCollapsibleSelection Kind = "collapsible_selection"
	KindSelectAll            Kind = "select_all"
	KindTitle                Kind = "title"
)

var kinds = []Kind{
	KindPlain,
	KindCollapsible,
	KindSelection,
	KindCollapsibleSelection,
	KindSelectAll,
	KindTitle,
}

// ParseKind maps a config name to a Kind. The empty string is KindPlain.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindPlain, nil
	}
	for _, k := range kinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// Collapsible reports whether nodes of this kind take part in
// open/close semantics of the traversal utilities and rules.
func (k Kind) Collapsible() bool {
	return k == KindCollapsible || k == KindCollapsibleSelection
}

// Expandable reports whether a host may toggle Open on this kind.
// Select-all headers expand like collapsibles but are not Collapsible.
func (k Kind) Expandable() bool {
	return k.Collapsible() || k == KindSelectAll
}

// Selectable reports whether nodes of this kind carry a meaningful Selected flag.
func (k Kind) Selectable() bool {
	return k == KindSelection || k == KindCollapsibleSelection || k == KindSelectAll
}

// Terminal reports whether the kind is a non-interactive header.
func (k Kind) Terminal() bool { return k == KindTitle }
