package selection

import "github.com/gyaneshwarpardhi/hierselect/internal/hierarchy"

// Hidden is the visibility a searchable node takes for criteria c.
func Hidden(value any, c hierarchy.Criteria) bool {
	return !hierarchy.HasMatch(value, c)
}

// Apply reports the selection state cmd assigns to a node holding value.
// ok is false when cmd does not address the node or its Type is unknown.
func (cmd Command) Apply(value any) (selected, ok bool) {
	typ, err := ParseCommandType(string(cmd.Type))
	if err != nil || !hierarchy.FieldEquals(value, cmd.Field, cmd.Value) {
		return false, false
	}
	return typ == Select, true
}
