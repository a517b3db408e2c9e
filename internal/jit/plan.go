// Package jit compiles a query document against a Blueprint into an
// OperationPlan: a tree of fields, each bound to the resolver IR of its
// definition, ready for the executor.
//
// A plan never captures variable values. Arguments that reference
// variables and @skip/@include conditions on variables are kept symbolic
// and resolved per execution, so one plan serves every request with the
// same document and operation name.
package jit

import (
	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/ir"
	"github.com/hanpama/gqlforge/internal/language"
)

// FieldID identifies a field within one plan. IDs follow pre-order.
type FieldID int

type OperationPlan struct {
	Operation language.Operation
	Name      string
	RootType  string
	Variables language.VariableDefinitionList
	Root      []*Field
	fields    []*Field
}

// Fields returns every field of the plan in pre-order.
func (p *OperationPlan) Fields() []*Field {
	return p.fields
}

// Field returns the field with the given ID.
func (p *OperationPlan) Field(id FieldID) *Field {
	if int(id) < 0 || int(id) >= len(p.fields) {
		return nil
	}
	return p.fields[id]
}

// IsMutation reports whether the plan executes a mutation.
func (p *OperationPlan) IsMutation() bool {
	return p.Operation == language.Mutation
}

type Field struct {
	ID         FieldID
	Name       string
	Alias      string
	ParentType string
	Type       *blueprint.TypeRef
	Args       []Arg
	// When lists alternative sets of conditions; the field is included when
	// all conditions of any one set hold. Empty means always included.
	When     [][]Condition
	Resolver ir.IR
	Children []*Field
	Pos      *language.Position
	typename bool
}

// IsTypename reports whether the field is the __typename meta field.
func (f *Field) IsTypename() bool { return f.typename }

// TypeName returns the name of the field's innermost type.
func (f *Field) TypeName() string { return f.Type.Name() }

// Included evaluates the field's @skip/@include conditions.
func (f *Field) Included(vars map[string]any) bool {
	if len(f.When) == 0 {
		return true
	}
	for _, set := range f.When {
		ok := true
		for _, c := range set {
			if !c.Holds(vars) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Condition is a @skip or @include directive whose argument is a variable.
type Condition struct {
	Variable string
	Include  bool
}

func (c Condition) Holds(vars map[string]any) bool {
	b, _ := vars[c.Variable].(bool)
	if c.Include {
		return b
	}
	return !b
}

// Arg is an argument binding. Value is nil when the query omits the
// argument and the definition default applies.
type Arg struct {
	Name       string
	Type       *blueprint.TypeRef
	Value      *language.Value
	Default    any
	HasDefault bool
	literal    any
	isLiteral  bool
}
