package synth

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hanpama/gqlforge/internal/blueprint"
)

// Serialize coerces a resolved value to the output form of a scalar or
// enum type. Scalars other than the built-in ones pass through.
func Serialize(t *blueprint.Type, v any) (any, error) {
	if t.Kind == blueprint.TypeKindEnum {
		s, ok := v.(string)
		if !ok || !t.HasEnumValue(s) {
			return nil, fmt.Errorf("Enum \"%s\" cannot represent value: %s", t.Name, display(v))
		}
		return s, nil
	}
	switch t.Name {
	case "Int":
		return serializeInt(v)
	case "Float":
		return serializeFloat(v)
	case "String":
		return serializeString(v)
	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %s", display(v))
	case "ID":
		return serializeID(v)
	}
	return v, nil
}

func serializeInt(v any) (any, error) {
	var n float64
	switch x := v.(type) {
	case int:
		n = float64(x)
	case int32:
		return int64(x), nil
	case int64:
		n = float64(x)
	case float64:
		n = x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %s", display(v))
		}
		n = f
	case string:
		// protojson renders 64-bit integers as strings.
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent non-integer value: %s", display(v))
		}
		n = float64(i)
	default:
		return nil, fmt.Errorf("Int cannot represent non-integer value: %s", display(v))
	}
	if n != math.Trunc(n) {
		return nil, fmt.Errorf("Int cannot represent non-integer value: %s", display(v))
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %s", display(v))
	}
	return int64(n), nil
}

func serializeFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("Float cannot represent non numeric value: %s", display(v))
}

func serializeString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case json.Number:
		return x.String(), nil
	}
	return nil, fmt.Errorf("String cannot represent value: %s", display(v))
}

func serializeID(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
	case json.Number:
		return x.String(), nil
	}
	return nil, fmt.Errorf("ID cannot represent value: %s", display(v))
}

func display(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
