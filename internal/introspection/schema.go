// Package introspection adds __schema and __type to a Blueprint.
//
// The introspection result is computed once from the Blueprint and stored
// as constant resolver IR, so introspection queries run through the same
// planner, executor and synth as everything else. Named types are shared
// map values; a reference to a type anywhere in the tree is the same map,
// which keeps the recursive type graph finite.
package introspection

import (
	"sort"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/ir"
	"github.com/hanpama/gqlforge/internal/mustache"
)

// Extend returns a copy of bp with the introspection types added and the
// __schema and __type fields added to the query type.
func Extend(bp *blueprint.Blueprint) *blueprint.Blueprint {
	out := bp.WithTypes(metaTypes()...)

	types := make(map[string]map[string]any, len(out.Types))
	for name, t := range out.Types {
		types[name] = map[string]any{
			"kind":           string(t.Kind),
			"name":           t.Name,
			"description":    optional(t.Description),
			"specifiedByURL": nil,
			"ofType":         nil,
		}
	}
	for name, t := range out.Types {
		fillType(types[name], t, types)
	}

	byName := make(map[string]any, len(types))
	names := make([]string, 0, len(types))
	for name, v := range types {
		byName[name] = v
		names = append(names, name)
	}
	sort.Strings(names)
	all := make([]any, len(names))
	for i, name := range names {
		all[i] = types[name]
	}

	schema := map[string]any{
		"description":      nil,
		"types":            all,
		"queryType":        lookup(types, bp.Query),
		"mutationType":     lookup(types, bp.Mutation),
		"subscriptionType": nil,
		"directives":       directives(types),
	}

	query := out.Type(bp.Query)
	if query == nil {
		return out
	}
	fields := append(append([]*blueprint.FieldDefinition(nil), query.Fields...),
		&blueprint.FieldDefinition{
			Name:        "__schema",
			Description: "Access the current type schema of this server.",
			Type:        ref("__Schema!"),
			Resolver:    &ir.Const{Value: schema},
		},
		&blueprint.FieldDefinition{
			Name:        "__type",
			Description: "Request the type information of a single type.",
			Type:        ref("__Type"),
			Args: []*blueprint.InputValue{
				{Name: "name", Type: ref("String!")},
			},
			Resolver: &ir.Path{
				Child: &ir.Const{Value: byName},
				Path:  []mustache.Template{mustache.MustParse("{{.args.name}}")},
			},
		},
	)
	extended := blueprint.NewType(query.Name, query.Kind, fields...)
	extended.Description = query.Description
	return out.WithTypes(extended)
}

func fillType(v map[string]any, t *blueprint.Type, types map[string]map[string]any) {
	var fields, interfaces, enumValues, inputFields, oneOf any
	switch t.Kind {
	case blueprint.TypeKindObject:
		list := make([]any, 0, len(t.Fields))
		for _, f := range t.Fields {
			list = append(list, map[string]any{
				"name":              f.Name,
				"description":       optional(f.Description),
				"args":              inputValues(f.Args, types),
				"type":              typeRef(f.Type, types),
				"isDeprecated":      false,
				"deprecationReason": nil,
			})
		}
		fields, interfaces = list, []any{}
	case blueprint.TypeKindInputObject:
		list := make([]any, 0, len(t.Fields))
		for _, f := range t.Fields {
			list = append(list, inputValue(f.Name, f.Description, f.Type, f.Default, types))
		}
		inputFields, oneOf = list, false
	case blueprint.TypeKindEnum:
		list := make([]any, 0, len(t.EnumValues))
		for _, ev := range t.EnumValues {
			list = append(list, map[string]any{
				"name":              ev,
				"description":       nil,
				"isDeprecated":      false,
				"deprecationReason": nil,
			})
		}
		enumValues = list
	}
	v["fields"] = fields
	v["interfaces"] = interfaces
	v["possibleTypes"] = nil
	v["enumValues"] = enumValues
	v["inputFields"] = inputFields
	v["isOneOf"] = oneOf
}

// typeRef describes a possibly wrapped type. Named references resolve to
// the shared type value.
func typeRef(t *blueprint.TypeRef, types map[string]map[string]any) any {
	switch t.Kind {
	case blueprint.TypeRefKindNonNull, blueprint.TypeRefKindList:
		return map[string]any{
			"kind":           string(t.Kind),
			"name":           nil,
			"description":    nil,
			"specifiedByURL": nil,
			"fields":         nil,
			"interfaces":     nil,
			"possibleTypes":  nil,
			"enumValues":     nil,
			"inputFields":    nil,
			"isOneOf":        nil,
			"ofType":         typeRef(t.OfType, types),
		}
	}
	return lookup(types, t.Named)
}

func inputValues(args []*blueprint.InputValue, types map[string]map[string]any) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		out = append(out, inputValue(a.Name, a.Description, a.Type, a.DefaultValue, types))
	}
	return out
}

func inputValue(name, desc string, t *blueprint.TypeRef, def any, types map[string]map[string]any) map[string]any {
	var defaultValue any
	if def != nil {
		defaultValue = blueprint.ValueLiteral(def)
	}
	return map[string]any{
		"name":              name,
		"description":       optional(desc),
		"type":              typeRef(t, types),
		"defaultValue":      defaultValue,
		"isDeprecated":      false,
		"deprecationReason": nil,
	}
}

func directives(types map[string]map[string]any) []any {
	ifArg := func(desc string) []any {
		return inputValues([]*blueprint.InputValue{{Name: "if", Description: desc, Type: ref("Boolean!")}}, types)
	}
	locations := []any{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"}
	return []any{
		map[string]any{
			"name":         "include",
			"description":  "Directs the executor to include this field or fragment only when the `if` argument is true.",
			"isRepeatable": false,
			"locations":    locations,
			"args":         ifArg("Included when true."),
		},
		map[string]any{
			"name":         "skip",
			"description":  "Directs the executor to skip this field or fragment when the `if` argument is true.",
			"isRepeatable": false,
			"locations":    locations,
			"args":         ifArg("Skipped when true."),
		},
	}
}

// lookup keeps a missing type a true nil rather than a typed nil map.
func lookup(types map[string]map[string]any, name string) any {
	if v, ok := types[name]; ok {
		return v
	}
	return nil
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
