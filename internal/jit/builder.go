package jit

import (
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/language"
)

// Builder turns query documents into plans for one Blueprint.
type Builder struct {
	bp    *blueprint.Blueprint
	rules []Rule
}

// NewBuilder returns a Builder that runs rules, in order, against every
// plan it builds.
func NewBuilder(bp *blueprint.Blueprint, rules ...Rule) *Builder {
	return &Builder{bp: bp, rules: rules}
}

// Build plans the selected operation of doc. No plan is returned when the
// document is invalid for the Blueprint or a rule rejects it.
func (b *Builder) Build(doc *language.QueryDocument, operationName string) (*OperationPlan, error) {
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, err
	}
	root, err := b.rootType(op)
	if err != nil {
		return nil, err
	}
	if err := b.checkVariables(op.VariableDefinitions); err != nil {
		return nil, err
	}

	st := &buildState{
		bp:       b.bp,
		doc:      doc,
		declared: make(map[string]*language.VariableDefinition, len(op.VariableDefinitions)),
	}
	for _, v := range op.VariableDefinitions {
		st.declared[v.Variable] = v
	}

	grouped := newFieldGroups()
	if err := st.collect(root, op.SelectionSet, nil, nil, grouped); err != nil {
		return nil, err
	}
	plan := &OperationPlan{
		Operation: op.Operation,
		Name:      op.Name,
		RootType:  root.Name,
		Variables: op.VariableDefinitions,
	}
	st.plan = plan
	for _, g := range grouped.groups {
		f, err := st.buildField(root, g)
		if err != nil {
			return nil, err
		}
		plan.Root = append(plan.Root, f)
	}

	for _, rule := range b.rules {
		if err := rule.Validate(plan); err != nil {
			return nil, ruleError(err)
		}
	}
	return plan, nil
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name == "" {
		switch len(doc.Operations) {
		case 0:
			return nil, gqlerror.Errorf("Must provide an operation.")
		case 1:
			return doc.Operations[0], nil
		}
		return nil, gqlerror.Errorf("Must provide operation name if query contains multiple operations.")
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return nil, gqlerror.Errorf("Unknown operation named \"%s\".", name)
	}
	return op, nil
}

func (b *Builder) rootType(op *language.OperationDefinition) (*blueprint.Type, error) {
	var name string
	switch op.Operation {
	case language.Query, "":
		name = b.bp.Query
	case language.Mutation:
		if b.bp.Mutation == "" {
			return nil, gqlerror.ErrorPosf(op.Position, "Schema is not configured for mutations.")
		}
		name = b.bp.Mutation
	default:
		return nil, gqlerror.ErrorPosf(op.Position, "Subscriptions are not supported.")
	}
	t := b.bp.Type(name)
	if t == nil {
		return nil, gqlerror.ErrorPosf(op.Position, "Schema does not define the %s type \"%s\".", op.Operation, name)
	}
	return t, nil
}

func (b *Builder) checkVariables(defs language.VariableDefinitionList) error {
	seen := make(map[string]bool, len(defs))
	for _, v := range defs {
		if seen[v.Variable] {
			return gqlerror.ErrorPosf(v.Position, "There can be only one variable named \"$%s\".", v.Variable)
		}
		seen[v.Variable] = true
		name := v.Type.Name()
		t := b.bp.Type(name)
		if t == nil {
			return gqlerror.ErrorPosf(v.Position, "Unknown type \"%s\".", name)
		}
		if !t.IsLeaf() && t.Kind != blueprint.TypeKindInputObject {
			return gqlerror.ErrorPosf(v.Position, "Variable \"$%s\" cannot be non-input type \"%s\".", v.Variable, v.Type.String())
		}
	}
	return nil
}

type buildState struct {
	bp       *blueprint.Blueprint
	doc      *language.QueryDocument
	declared map[string]*language.VariableDefinition
	plan     *OperationPlan
}

// occurrence is one appearance of a field in the document. Fields with the
// same response name are merged from all their occurrences.
type occurrence struct {
	field *language.Field
	when  []Condition
	via   []string
}

type fieldGroup struct {
	responseName string
	occurrences  []occurrence
}

// fieldGroups preserves the order in which response names first appear.
type fieldGroups struct {
	groups []*fieldGroup
	index  map[string]*fieldGroup
}

func newFieldGroups() *fieldGroups {
	return &fieldGroups{index: make(map[string]*fieldGroup)}
}

func (g *fieldGroups) add(responseName string, occ occurrence) {
	if grp, ok := g.index[responseName]; ok {
		grp.occurrences = append(grp.occurrences, occ)
		return
	}
	grp := &fieldGroup{responseName: responseName, occurrences: []occurrence{occ}}
	g.index[responseName] = grp
	g.groups = append(g.groups, grp)
}

// collect flattens a selection set into field groups, splicing fragments
// in place. when carries the conditions accumulated on the way down; via
// carries the chain of fragments being expanded.
func (st *buildState) collect(parent *blueprint.Type, set language.SelectionSet, when []Condition, via []string, out *fieldGroups) error {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *language.Field:
			conds, skip, err := st.conditions(sel.Directives, when)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			name := sel.Alias
			if name == "" {
				name = sel.Name
			}
			out.add(name, occurrence{field: sel, when: conds, via: via})

		case *language.InlineFragment:
			conds, skip, err := st.conditions(sel.Directives, when)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			if err := st.checkTypeCondition(parent, sel.TypeCondition, "", sel.Position); err != nil {
				return err
			}
			if err := st.collect(parent, sel.SelectionSet, conds, via, out); err != nil {
				return err
			}

		case *language.FragmentSpread:
			conds, skip, err := st.conditions(sel.Directives, when)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			for _, name := range via {
				if name == sel.Name {
					return gqlerror.ErrorPosf(sel.Position, "Cannot spread fragment \"%s\" within itself.", sel.Name)
				}
			}
			def := st.doc.Fragments.ForName(sel.Name)
			if def == nil {
				return gqlerror.ErrorPosf(sel.Position, "Unknown fragment \"%s\".", sel.Name)
			}
			if err := st.checkTypeCondition(parent, def.TypeCondition, sel.Name, sel.Position); err != nil {
				return err
			}
			conds, skip, err = st.conditions(def.Directives, conds)
			if err != nil {
				return err
			}
			if skip {
				continue
			}
			chain := append(append([]string(nil), via...), sel.Name)
			if err := st.collect(parent, def.SelectionSet, conds, chain, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *buildState) checkTypeCondition(parent *blueprint.Type, cond, fragment string, pos *language.Position) error {
	if cond == "" || cond == parent.Name {
		return nil
	}
	if st.bp.Type(cond) == nil {
		return gqlerror.ErrorPosf(pos, "Unknown type \"%s\".", cond)
	}
	if fragment != "" {
		return gqlerror.ErrorPosf(pos, "Fragment \"%s\" cannot be spread here as objects of type \"%s\" can never be of type \"%s\".", fragment, parent.Name, cond)
	}
	return gqlerror.ErrorPosf(pos, "Fragment cannot be spread here as objects of type \"%s\" can never be of type \"%s\".", parent.Name, cond)
}

// conditions evaluates @skip and @include. Literal arguments are decided
// here; variable arguments are appended to when as Conditions.
func (st *buildState) conditions(dirs language.DirectiveList, when []Condition) ([]Condition, bool, error) {
	out := when
	copied := false
	for _, d := range dirs {
		var include bool
		switch d.Name {
		case "skip":
		case "include":
			include = true
		default:
			return nil, false, gqlerror.ErrorPosf(d.Position, "Unknown directive \"@%s\".", d.Name)
		}
		arg := d.Arguments.ForName("if")
		if arg == nil || arg.Value == nil {
			return nil, false, gqlerror.ErrorPosf(d.Position, "Directive \"@%s\" argument \"if\" of type \"Boolean!\" is required, but it was not provided.", d.Name)
		}
		switch arg.Value.Kind {
		case language.BooleanValue:
			if (arg.Value.Raw == "true") != include {
				return nil, true, nil
			}
		case language.Variable:
			if err := st.checkUsage(arg.Value, blueprint.NonNullType(blueprint.NamedType("Boolean")), false); err != nil {
				return nil, false, err
			}
			if !copied {
				out = append([]Condition(nil), when...)
				copied = true
			}
			out = append(out, Condition{Variable: arg.Value.Raw, Include: include})
		default:
			return nil, false, gqlerror.ErrorPosf(arg.Value.Position, "Boolean cannot represent a non boolean value: %s", arg.Value.String())
		}
	}
	return out, false, nil
}

func (st *buildState) checkDeclared(v *language.Value) error {
	if _, ok := st.declared[v.Raw]; !ok {
		return gqlerror.ErrorPosf(v.Position, "Variable \"$%s\" is not defined.", v.Raw)
	}
	return nil
}

// checkUsage verifies that every variable in value is declared with a type
// accepted where it appears. A nullable variable may fill a non-null
// position when either the variable or the position has a default.
func (st *buildState) checkUsage(value *language.Value, expected *blueprint.TypeRef, locationDefault bool) error {
	if value == nil || expected == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		if err := st.checkDeclared(value); err != nil {
			return err
		}
		def := st.declared[value.Raw]
		varType := typeRefFromAST(def.Type)
		want := expected
		if expected.IsNonNull() && !varType.IsNonNull() && (def.DefaultValue != nil || locationDefault) {
			want = expected.OfType
		}
		if !fitsType(varType, want) {
			return gqlerror.ErrorPosf(value.Position, "Variable \"$%s\" of type \"%s\" used in position expecting type \"%s\".", value.Raw, varType.String(), expected.String())
		}
	case language.ListValue:
		item := expected
		if expected.IsList() {
			item = expected.Nullable().OfType
		}
		for _, c := range value.Children {
			if err := st.checkUsage(c.Value, item, false); err != nil {
				return err
			}
		}
	case language.ObjectValue:
		t := st.bp.Type(expected.Name())
		if t == nil || t.Kind != blueprint.TypeKindInputObject {
			return nil
		}
		for _, c := range value.Children {
			fd := t.Field(c.Name)
			if fd == nil {
				continue
			}
			if err := st.checkUsage(c.Value, fd.Type, fd.Default != nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// fitsType reports whether a value of type v is accepted where want is
// expected.
func fitsType(v, want *blueprint.TypeRef) bool {
	if want.IsNonNull() {
		return v.IsNonNull() && fitsType(v.OfType, want.OfType)
	}
	if v.IsNonNull() {
		return fitsType(v.OfType, want)
	}
	if want.Kind == blueprint.TypeRefKindList {
		return v.Kind == blueprint.TypeRefKindList && fitsType(v.OfType, want.OfType)
	}
	return v.Kind == blueprint.TypeRefKindNamed && v.Named == want.Named
}

func (st *buildState) buildField(parent *blueprint.Type, g *fieldGroup) (*Field, error) {
	first := g.occurrences[0].field
	for _, occ := range g.occurrences[1:] {
		if occ.field.Name != first.Name {
			return nil, gqlerror.ErrorPosf(occ.field.Position, "Fields \"%s\" conflict because \"%s\" and \"%s\" are different fields.", g.responseName, first.Name, occ.field.Name)
		}
		if !sameArguments(first.Arguments, occ.field.Arguments) {
			return nil, gqlerror.ErrorPosf(occ.field.Position, "Fields \"%s\" conflict because they have differing arguments. Use different aliases on the fields to fetch both if this was intentional.", g.responseName)
		}
	}

	f := &Field{
		ID:         FieldID(len(st.plan.fields)),
		Name:       first.Name,
		Alias:      g.responseName,
		ParentType: parent.Name,
		Pos:        first.Position,
		When:       mergeWhen(g.occurrences),
	}
	st.plan.fields = append(st.plan.fields, f)

	if first.Name == "__typename" {
		f.typename = true
		f.Type = blueprint.NonNullType(blueprint.NamedType("String"))
		return f, nil
	}

	def := parent.Field(first.Name)
	if def == nil {
		return nil, gqlerror.ErrorPosf(first.Position, "Cannot query field \"%s\" on type \"%s\".", first.Name, parent.Name)
	}
	f.Type = def.Type
	f.Resolver = def.Resolver

	args, err := st.bindArgs(parent, def, first)
	if err != nil {
		return nil, err
	}
	f.Args = args

	fieldType := st.bp.Type(def.Type.Name())
	hasSelection := false
	for _, occ := range g.occurrences {
		if len(occ.field.SelectionSet) > 0 {
			hasSelection = true
			break
		}
	}
	if fieldType.IsLeaf() {
		if hasSelection {
			return nil, gqlerror.ErrorPosf(first.Position, "Field \"%s\" must not have a selection since type \"%s\" has no subfields.", first.Name, def.Type.String())
		}
		return f, nil
	}
	if !hasSelection {
		return nil, gqlerror.ErrorPosf(first.Position, "Field \"%s\" of type \"%s\" must have a selection of subfields. Did you mean \"%s { ... }\"?", first.Name, def.Type.String(), first.Name)
	}

	children := newFieldGroups()
	for _, occ := range g.occurrences {
		if err := st.collect(fieldType, occ.field.SelectionSet, occ.when, occ.via, children); err != nil {
			return nil, err
		}
	}
	for _, cg := range children.groups {
		child, err := st.buildField(fieldType, cg)
		if err != nil {
			return nil, err
		}
		f.Children = append(f.Children, child)
	}
	return f, nil
}

func sameArguments(a, b language.ArgumentList) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		y := b.ForName(x.Name)
		if y == nil || x.Value.String() != y.Value.String() {
			return false
		}
	}
	return true
}

// mergeWhen joins the conditions of every occurrence. A single
// unconditional occurrence makes the field unconditional.
func mergeWhen(occs []occurrence) [][]Condition {
	var out [][]Condition
	for _, occ := range occs {
		if len(occ.when) == 0 {
			return nil
		}
		out = append(out, occ.when)
	}
	return out
}

func (st *buildState) bindArgs(parent *blueprint.Type, def *blueprint.FieldDefinition, field *language.Field) ([]Arg, error) {
	for _, a := range field.Arguments {
		iv := def.Arg(a.Name)
		if iv == nil {
			return nil, gqlerror.ErrorPosf(a.Position, "Unknown argument \"%s\" on field \"%s.%s\".", a.Name, parent.Name, def.Name)
		}
		if err := st.checkUsage(a.Value, iv.Type, iv.DefaultValue != nil); err != nil {
			return nil, err
		}
	}

	args := make([]Arg, 0, len(def.Args))
	for _, iv := range def.Args {
		arg := Arg{Name: iv.Name, Type: iv.Type}
		if iv.DefaultValue != nil {
			arg.HasDefault = true
			arg.Default = iv.DefaultValue
			if v, err := coerceValue(st.bp, iv.DefaultValue, iv.Type); err == nil {
				arg.Default = v
			}
		}
		provided := field.Arguments.ForName(iv.Name)
		if provided == nil {
			if iv.Type.IsNonNull() && !arg.HasDefault {
				return nil, gqlerror.ErrorPosf(field.Position, "Field \"%s\" argument \"%s\" of type \"%s\" is required, but it was not provided.", def.Name, iv.Name, iv.Type.String())
			}
			args = append(args, arg)
			continue
		}
		arg.Value = provided.Value
		if !hasVariables(provided.Value) {
			v, err := coerceValue(st.bp, astValueToGo(provided.Value, nil), iv.Type)
			if err != nil {
				return nil, gqlerror.ErrorPosf(provided.Position, "Argument \"%s\" has invalid value %s: %v", iv.Name, provided.Value.String(), err)
			}
			arg.literal = v
			arg.isLiteral = true
		}
		args = append(args, arg)
	}
	return args, nil
}
