package jit

import (
	"fmt"
	"math"
	"strconv"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/language"
)

// CoerceVariables validates raw request variables against the plan's
// variable definitions, applying defaults.
func CoerceVariables(bp *blueprint.Blueprint, plan *OperationPlan, raw map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(plan.Variables))
	for _, def := range plan.Variables {
		name := def.Variable
		ref := typeRefFromAST(def.Type)
		val, ok := raw[name]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				dv, err := coerceValue(bp, astValueToGo(def.DefaultValue, nil), ref)
				if err != nil {
					return nil, gqlerror.ErrorPosf(def.Position, "Variable \"$%s\" has invalid default value: %v", name, err)
				}
				coerced[name] = dv
			case def.Type.NonNull:
				return nil, gqlerror.ErrorPosf(def.Position, "Variable \"$%s\" of required type \"%s\" was not provided.", name, def.Type.String())
			}
			continue
		}
		cv, err := coerceValue(bp, val, ref)
		if err != nil {
			return nil, gqlerror.ErrorPosf(def.Position, "Variable \"$%s\" got invalid value: %v", name, err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// ArgValues binds the field's arguments against coerced variables.
func (f *Field) ArgValues(bp *blueprint.Blueprint, vars map[string]any) (map[string]any, error) {
	if len(f.Args) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(f.Args))
	for _, a := range f.Args {
		if a.isLiteral {
			out[a.Name] = a.literal
			continue
		}
		if a.Value != nil {
			if a.Value.Kind == language.Variable {
				if v, ok := vars[a.Value.Raw]; ok {
					cv, err := coerceValue(bp, v, a.Type)
					if err != nil {
						return nil, fmt.Errorf("Argument %q has invalid value: %v", a.Name, err)
					}
					out[a.Name] = cv
					continue
				}
			} else {
				cv, err := coerceValue(bp, astValueToGo(a.Value, vars), a.Type)
				if err != nil {
					return nil, fmt.Errorf("Argument %q has invalid value: %v", a.Name, err)
				}
				out[a.Name] = cv
				continue
			}
		}
		switch {
		case a.HasDefault:
			out[a.Name] = a.Default
		case a.Type.IsNonNull():
			return nil, fmt.Errorf("Argument %q of required type %q was not provided.", a.Name, a.Type.String())
		}
	}
	return out, nil
}

// astValueToGo converts an AST value, substituting variables from vars.
// Variables that are absent resolve to nil.
func astValueToGo(value *language.Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		return vars[value.Raw]
	case language.IntValue:
		if iv, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
			return iv
		}
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(value.Children))
		for _, c := range value.Children {
			m[c.Name] = astValueToGo(c.Value, vars)
		}
		return m
	}
	return nil
}

func hasVariables(value *language.Value) bool {
	if value == nil {
		return false
	}
	if value.Kind == language.Variable {
		return true
	}
	for _, c := range value.Children {
		if hasVariables(c.Value) {
			return true
		}
	}
	return false
}

func typeRefFromAST(t *language.Type) *blueprint.TypeRef {
	if t == nil {
		return nil
	}
	var ref *blueprint.TypeRef
	if t.Elem != nil {
		ref = blueprint.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = blueprint.NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = blueprint.NonNullType(ref)
	}
	return ref
}

// coerceValue coerces an input value to the given type.
func coerceValue(bp *blueprint.Blueprint, value any, ref *blueprint.TypeRef) (any, error) {
	if ref.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("expected non-null value of type %s", ref.String())
		}
		return coerceValue(bp, value, ref.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if ref.Kind == blueprint.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			item, err := coerceValue(bp, value, ref.OfType)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := coerceValue(bp, item, ref.OfType)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}

	switch ref.Named {
	case "Int":
		return coerceInt(value)
	case "Float":
		return coerceFloat(value)
	case "String":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("String cannot represent a non string value: %v", value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %v", value)
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case int:
			return strconv.Itoa(v), nil
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatFloat(v, 'f', -1, 64), nil
			}
		}
		return nil, fmt.Errorf("ID cannot represent value: %v", value)
	}

	t := bp.Type(ref.Named)
	if t == nil {
		return nil, fmt.Errorf("unknown type %q", ref.Named)
	}
	switch t.Kind {
	case blueprint.TypeKindEnum:
		s, ok := value.(string)
		if !ok || !t.HasEnumValue(s) {
			return nil, fmt.Errorf("value %v does not exist in %q enum", value, t.Name)
		}
		return s, nil
	case blueprint.TypeKindInputObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected type %q to be an object", t.Name)
		}
		for k := range obj {
			if t.Field(k) == nil {
				return nil, fmt.Errorf("field %q is not defined by type %q", k, t.Name)
			}
		}
		out := make(map[string]any, len(t.Fields))
		for _, f := range t.Fields {
			fv, present := obj[f.Name]
			if !present {
				if f.Default != nil {
					out[f.Name] = f.Default
				} else if f.Type.IsNonNull() {
					return nil, fmt.Errorf("field %s.%s of required type %s was not provided", t.Name, f.Name, f.Type.String())
				}
				continue
			}
			cv, err := coerceValue(bp, fv, f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s.%s: %w", t.Name, f.Name, err)
			}
			out[f.Name] = cv
		}
		return out, nil
	}
	// Custom scalars pass through.
	return value, nil
}

func coerceInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", v)
		}
		return v, nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %v", v)
		}
		return int64(v), nil
	}
	return nil, fmt.Errorf("Int cannot represent non-integer value: %v", value)
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("Float cannot represent non numeric value: %v", value)
}
