package ir

import (
	"sort"

	"github.com/hanpama/gqlforge/internal/mustache"
)

// DynamicValue is a JSON-like value whose string leaves may be templates.
type DynamicValue struct {
	// Literal holds non-string scalars and literal-only strings.
	Literal  any
	Template *mustache.Template
	Object   []DynamicField
	List     []DynamicValue
	kind     dynamicKind
}

// DynamicField is one entry of an object DynamicValue. Entries are kept in
// key order.
type DynamicField struct {
	Key   string
	Value DynamicValue
}

type dynamicKind uint8

const (
	dynamicLiteral dynamicKind = iota
	dynamicTemplate
	dynamicObject
	dynamicList
)

// ParseDynamic converts a decoded configuration value into a DynamicValue,
// parsing every string leaf as a template.
func ParseDynamic(v any) (DynamicValue, error) {
	switch x := v.(type) {
	case string:
		t, err := mustache.Parse(x)
		if err != nil {
			return DynamicValue{}, err
		}
		if t.IsConst() {
			return DynamicValue{Literal: x}, nil
		}
		return DynamicValue{Template: &t, kind: dynamicTemplate}, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]DynamicField, 0, len(keys))
		for _, k := range keys {
			fv, err := ParseDynamic(x[k])
			if err != nil {
				return DynamicValue{}, err
			}
			fields = append(fields, DynamicField{Key: k, Value: fv})
		}
		return DynamicValue{Object: fields, kind: dynamicObject}, nil
	case []any:
		items := make([]DynamicValue, 0, len(x))
		for _, item := range x {
			iv, err := ParseDynamic(item)
			if err != nil {
				return DynamicValue{}, err
			}
			items = append(items, iv)
		}
		return DynamicValue{List: items, kind: dynamicList}, nil
	default:
		return DynamicValue{Literal: x}, nil
	}
}

// IsConst reports whether the value contains no templates.
func (d DynamicValue) IsConst() bool {
	switch d.kind {
	case dynamicTemplate:
		return false
	case dynamicObject:
		for _, f := range d.Object {
			if !f.Value.IsConst() {
				return false
			}
		}
	case dynamicList:
		for _, item := range d.List {
			if !item.IsConst() {
				return false
			}
		}
	}
	return true
}

// Render materializes the value against ctx. A template that is a single
// expression keeps the raw type of the value it points at; missing values
// render as null.
func (d DynamicValue) Render(ctx mustache.PathValue) any {
	switch d.kind {
	case dynamicTemplate:
		v, ok := d.Template.RenderValue(ctx)
		if !ok {
			return nil
		}
		return v
	case dynamicObject:
		out := make(map[string]any, len(d.Object))
		for _, f := range d.Object {
			out[f.Key] = f.Value.Render(ctx)
		}
		return out
	case dynamicList:
		out := make([]any, len(d.List))
		for i, item := range d.List {
			out[i] = item.Render(ctx)
		}
		return out
	default:
		return d.Literal
	}
}
