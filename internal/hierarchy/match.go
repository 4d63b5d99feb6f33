package hierarchy

import (
	"fmt"
	"reflect"
	"strings"
)

// Criteria is a case-insensitive substring filter against a field of a node value.
type Criteria struct {
	Field string `yaml:"field" json:"field"`
	Value string `yaml:"value" json:"value"`
}

// Resolver lets structured node values expose named fields to the matcher.
type Resolver interface {
	Resolve(path []string) (any, bool)
}

// HasMatch reports whether value matches c.
//
// A plain string matches when it contains c.Value. A structured value
// (map, struct, Resolver) matches when its c.Field resolves to a non-empty
// value whose string form contains c.Value. Anything else never matches.
// Comparison is case-insensitive.
func HasMatch(value any, c Criteria) bool {
	needle := strings.ToLower(c.Value)
	if s, ok := value.(string); ok {
		return strings.Contains(strings.ToLower(s), needle)
	}
	field, ok := FieldValue(value, c.Field)
	if !ok {
		return false
	}
	s := stringForm(field)
	if s == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), needle)
}

// FieldEquals reports whether value's field resolves to want, compared on string form.
func FieldEquals(value any, field, want string) bool {
	v, ok := FieldValue(value, field)
	if !ok {
		return false
	}
	return stringForm(v) == want
}

// FieldValue resolves a dot-separated field path in a structured value.
// Lookup failures of any kind return false.
func FieldValue(value any, field string) (any, bool) {
	if field == "" || value == nil {
		return nil, false
	}
	return resolve(value, strings.Split(field, "."))
}

func resolve(v any, path []string) (any, bool) {
	if len(path) == 0 {
		return v, true
	}
	switch m := v.(type) {
	case nil:
		return nil, false
	case Resolver:
		return m.Resolve(path)
	case map[string]any:
		return resolveMap(m, path)
	case map[string]string:
		s, ok := m[path[0]]
		if !ok || len(path) > 1 {
			return nil, false
		}
		return s, true
	}
	return resolveStruct(reflect.ValueOf(v), path)
}

func resolveMap(m map[string]any, path []string) (any, bool) {
	val, ok := m[path[0]]
	if !ok {
		return nil, false
	}
	return resolve(val, path[1:])
}

// resolveStruct matches an exported field by name or by its yaml/json tag, ignoring case.
func resolveStruct(rv reflect.Value, path []string) (any, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if strings.EqualFold(f.Name, path[0]) || tagName(f, "yaml") == path[0] || tagName(f, "json") == path[0] {
			return resolve(rv.Field(i).Interface(), path[1:])
		}
	}
	return nil, false
}

func tagName(f reflect.StructField, key string) string {
	name, _, _ := strings.Cut(f.Tag.Get(key), ",")
	return name
}

func stringForm(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
