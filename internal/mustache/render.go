package mustache

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Encoding controls how list values are interpolated.
type Encoding int

const (
	// CommaSeparated joins list items with ",".
	CommaSeparated Encoding = iota
	// RepeatedKey emits one query parameter per item. Outside of query
	// parameters it falls back to CommaSeparated.
	RepeatedKey
)

// Render interpolates the template against ctx. Absent paths render empty.
func (t Template) Render(ctx PathString) string {
	switch len(t.Segments) {
	case 0:
		return ""
	case 1:
		s := t.Segments[0]
		if s.Expr == nil {
			return s.Literal
		}
		v, _ := ctx.PathString(s.Expr.Path)
		return v
	}
	var b strings.Builder
	for _, s := range t.Segments {
		if s.Expr == nil {
			b.WriteString(s.Literal)
			continue
		}
		if v, ok := ctx.PathString(s.Expr.Path); ok {
			b.WriteString(v)
		}
	}
	return b.String()
}

// RenderValue returns the raw value when the template is a single
// expression, and the rendered string otherwise.
func (t Template) RenderValue(ctx PathValue) (any, bool) {
	if len(t.Segments) == 1 && t.Segments[0].Expr != nil {
		return ctx.PathValue(t.Segments[0].Expr.Path)
	}
	return t.Render(WithEncoding(ctx, CommaSeparated)), true
}

type encoded struct {
	ctx PathValue
	enc Encoding
}

// WithEncoding adapts a raw value context to a string context.
func WithEncoding(ctx PathValue, enc Encoding) PathString {
	return encoded{ctx: ctx, enc: enc}
}

func (e encoded) PathString(path []string) (string, bool) {
	v, ok := e.ctx.PathValue(path)
	if !ok {
		return "", false
	}
	return Stringify(v, e.enc), true
}

// Stringify renders a JSON-like value in its canonical string form.
func Stringify(v any, enc Encoding) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = Stringify(item, enc)
		}
		return strings.Join(parts, ",")
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Lookup walks a JSON-like value along path. Numeric elements index lists.
func Lookup(v any, path []string) (any, bool) {
	cur := v
	for _, p := range path {
		switch x := cur.(type) {
		case map[string]any:
			next, ok := x[p]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(x) {
				return nil, false
			}
			cur = x[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
