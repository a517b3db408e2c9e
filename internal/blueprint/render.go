package blueprint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render prints the blueprint as SDL. Types are sorted by name and the
// built-in scalars are left out, so output is stable across runs.
func Render(b *Blueprint) string {
	if b == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("schema {\n  query: ")
	sb.WriteString(b.Query)
	sb.WriteString("\n")
	if b.Mutation != "" {
		sb.WriteString("  mutation: ")
		sb.WriteString(b.Mutation)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	names := make([]string, 0, len(b.Types))
	for name := range b.Types {
		if IsBuiltin(name) || strings.HasPrefix(name, "__") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := b.Types[name]
		renderDescription(&sb, t.Description, "")
		switch t.Kind {
		case TypeKindScalar:
			sb.WriteString("scalar " + t.Name + "\n\n")
		case TypeKindEnum:
			sb.WriteString("enum " + t.Name + " {\n")
			for _, v := range t.EnumValues {
				sb.WriteString("  " + v + "\n")
			}
			sb.WriteString("}\n\n")
		case TypeKindInputObject:
			sb.WriteString("input " + t.Name + " {\n")
			for _, f := range t.Fields {
				renderDescription(&sb, f.Description, "  ")
				sb.WriteString("  " + f.Name + ": " + f.Type.String())
				if f.Default != nil {
					sb.WriteString(" = " + ValueLiteral(f.Default))
				}
				sb.WriteString("\n")
			}
			sb.WriteString("}\n\n")
		case TypeKindObject:
			sb.WriteString("type " + t.Name + " {\n")
			for _, f := range t.Fields {
				renderField(&sb, f)
			}
			sb.WriteString("}\n\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func renderDescription(b *strings.Builder, desc, indent string) {
	if desc == "" {
		return
	}
	b.WriteString(indent + "\"\"\"\n")
	b.WriteString(indent + strings.ReplaceAll(desc, "\"", "\\\""))
	b.WriteString("\n" + indent + "\"\"\"\n")
}

func renderField(b *strings.Builder, f *FieldDefinition) {
	renderDescription(b, f.Description, "  ")
	b.WriteString("  ")
	b.WriteString(f.Name)
	if len(f.Args) > 0 {
		b.WriteString("(")
		for i, arg := range f.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.Name + ": " + arg.Type.String())
			if arg.DefaultValue != nil {
				b.WriteString(" = " + ValueLiteral(arg.DefaultValue))
			}
		}
		b.WriteString(")")
	}
	b.WriteString(": " + f.Type.String() + "\n")
}

// ValueLiteral writes a default value as a GraphQL literal.
func ValueLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = ValueLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := sortedKeys(v)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + ValueLiteral(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
