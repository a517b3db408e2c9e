// Package blueprint compiles configuration into the immutable schema the
// planner and executor run against. Every field carries the IR that
// resolves it; fields without IR read the property of the same name from
// their parent value.
package blueprint

import (
	"time"

	"github.com/hanpama/gqlforge/internal/ir"
)

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Blueprint is the compiled schema. It is not modified after Compile
// returns and may be shared by any number of concurrent requests.
type Blueprint struct {
	Query    string
	Mutation string
	Types    map[string]*Type
	Server   Server
	Upstream Upstream
}

type Server struct {
	QueryComplexity int
	QueryDepth      int
	PlanCacheSize   int
	Vars            map[string]string
	Timeout         time.Duration
	GraphiQL        bool
}

type Upstream struct {
	BaseURL        string
	AllowedHeaders []string
	Timeout        time.Duration
	CacheSize      int
}

type Type struct {
	Name        string
	Kind        TypeKind
	Description string
	Fields      []*FieldDefinition
	EnumValues  []string
	fieldIndex  map[string]int
}

type FieldDefinition struct {
	Name        string
	Description string
	Type        *TypeRef
	Args        []*InputValue
	Default     any
	Resolver    ir.IR
}

type InputValue struct {
	Name         string
	Description  string
	Type         *TypeRef
	DefaultValue any
}

// Type returns the named type, or nil.
func (b *Blueprint) Type(name string) *Type {
	return b.Types[name]
}

// Field looks a field up by type and field name.
func (b *Blueprint) Field(typeName, fieldName string) *FieldDefinition {
	t := b.Types[typeName]
	if t == nil {
		return nil
	}
	return t.Field(fieldName)
}

// Field returns the field with the given name, or nil.
func (t *Type) Field(name string) *FieldDefinition {
	if t.fieldIndex == nil {
		for _, f := range t.Fields {
			if f.Name == name {
				return f
			}
		}
		return nil
	}
	i, ok := t.fieldIndex[name]
	if !ok {
		return nil
	}
	return t.Fields[i]
}

func (t *Type) index() {
	t.fieldIndex = make(map[string]int, len(t.Fields))
	for i, f := range t.Fields {
		t.fieldIndex[f.Name] = i
	}
}

// IsLeaf reports whether values of the type are serialized directly.
func (t *Type) IsLeaf() bool {
	return t.Kind == TypeKindScalar || t.Kind == TypeKindEnum
}

// HasEnumValue reports whether v is a member of an enum type.
func (t *Type) HasEnumValue(v string) bool {
	for _, ev := range t.EnumValues {
		if ev == v {
			return true
		}
	}
	return false
}

// Arg returns the argument definition with the given name, or nil.
func (f *FieldDefinition) Arg(name string) *InputValue {
	for _, a := range f.Args {
		if a.Name == name {
			return a
		}
	}
	return nil
}
