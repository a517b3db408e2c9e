package blueprint

import (
	"fmt"
	"strings"
)

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// TypeRef is a possibly wrapped reference to a named type.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef
	Named  string
}

func NamedType(name string) *TypeRef {
	return &TypeRef{Kind: TypeRefKindNamed, Named: name}
}

func ListType(of *TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeRefKindList, OfType: of}
}

func NonNullType(of *TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeRefKindNonNull, OfType: of}
}

func (t *TypeRef) IsNonNull() bool { return t != nil && t.Kind == TypeRefKindNonNull }

// IsList reports whether the outermost non-null-stripped layer is a list.
func (t *TypeRef) IsList() bool {
	return t.Nullable().Kind == TypeRefKindList
}

// Nullable strips a top-level non-null wrapper.
func (t *TypeRef) Nullable() *TypeRef {
	if t.IsNonNull() {
		return t.OfType
	}
	return t
}

// Name returns the innermost type name.
func (t *TypeRef) Name() string {
	cur := t
	for cur != nil && cur.Kind != TypeRefKindNamed {
		cur = cur.OfType
	}
	if cur == nil {
		return ""
	}
	return cur.Named
}

// Flatten reduces the reference to whether any list layer is present and
// the innermost name.
func (t *TypeRef) Flatten() (isList bool, name string) {
	for cur := t; cur != nil; cur = cur.OfType {
		switch cur.Kind {
		case TypeRefKindList:
			isList = true
		case TypeRefKindNamed:
			return isList, cur.Named
		}
	}
	return isList, ""
}

func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNamed:
		return t.Named
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	}
	return ""
}

// ParseTypeRef parses a GraphQL type expression such as "[Post!]!".
func ParseTypeRef(s string) (*TypeRef, error) {
	src := strings.TrimSpace(s)
	ref, rest, err := parseTypeRef(src)
	if err != nil {
		return nil, fmt.Errorf("invalid type %q: %w", s, err)
	}
	if rest != "" {
		return nil, fmt.Errorf("invalid type %q: unexpected %q", s, rest)
	}
	return ref, nil
}

func parseTypeRef(s string) (*TypeRef, string, error) {
	var ref *TypeRef
	switch {
	case s == "":
		return nil, "", fmt.Errorf("missing type name")
	case s[0] == '[':
		inner, rest, err := parseTypeRef(strings.TrimSpace(s[1:]))
		if err != nil {
			return nil, "", err
		}
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "]") {
			return nil, "", fmt.Errorf("missing ]")
		}
		ref, s = ListType(inner), strings.TrimSpace(rest[1:])
	default:
		i := 0
		for i < len(s) && isNameByte(s[i], i == 0) {
			i++
		}
		if i == 0 {
			return nil, "", fmt.Errorf("unexpected %q", s[:1])
		}
		ref, s = NamedType(s[:i]), strings.TrimSpace(s[i:])
	}
	if strings.HasPrefix(s, "!") {
		ref, s = NonNullType(ref), strings.TrimSpace(s[1:])
	}
	return ref, s, nil
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
