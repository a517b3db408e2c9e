package blueprint

import (
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/mustache"
)

// MethodResolver finds gRPC method descriptors by full name
// ("package.Service.Method").
type MethodResolver interface {
	FindMethod(fullName string) (protoreflect.MethodDescriptor, error)
}

// ExtensionCatalog reports which in-process extensions exist.
type ExtensionCatalog interface {
	Has(name string) bool
}

type Option func(*compiler)

// WithEnv sets the environment used to render {{.env.*}} in settings that
// are resolved at compile time. Defaults to the process environment.
func WithEnv(env config.Env) Option {
	return func(c *compiler) { c.reader.Env = env }
}

func WithMethods(r MethodResolver) Option {
	return func(c *compiler) { c.methods = r }
}

func WithExtensions(cat ExtensionCatalog) Option {
	return func(c *compiler) { c.extensions = cat }
}

type compiler struct {
	cfg        *config.Config
	reader     config.ReaderContext
	methods    MethodResolver
	extensions ExtensionCatalog
	baseURL    string
	types      map[string]*Type
	violations ValidationError

	// args of the field whose resolvers are being folded
	args []*InputValue
}

// Compile turns cfg into a Blueprint. It reports every problem it finds as
// a single ValidationError rather than stopping at the first one.
func Compile(cfg *config.Config, opts ...Option) (*Blueprint, error) {
	c := &compiler{
		cfg:    cfg,
		reader: config.ReaderContext{Vars: cfg.Server.Vars, Env: config.OSEnv{}},
		types:  make(map[string]*Type, len(cfg.Types)+len(builtinScalars)),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, t := range builtinScalars {
		c.types[t.Name] = t
	}

	c.baseURL = c.renderSetting(cfg.Upstream.BaseURL, "upstream", "baseURL")
	c.declareTypes()
	for _, name := range cfg.TypeNames() {
		c.compileType(name, cfg.Types[name])
	}

	bp := &Blueprint{
		Query:    cfg.Schema.Query,
		Mutation: cfg.Schema.Mutation,
		Types:    c.types,
		Server: Server{
			QueryComplexity: cfg.Server.QueryComplexity,
			QueryDepth:      cfg.Server.QueryDepth,
			PlanCacheSize:   cfg.Server.PlanCacheSize,
			Vars:            cfg.Server.Vars,
			Timeout:         cfg.Server.Timeout,
			GraphiQL:        cfg.Server.GraphiQL,
		},
		Upstream: Upstream{
			BaseURL:        c.baseURL,
			AllowedHeaders: cfg.Upstream.AllowedHeaders,
			Timeout:        cfg.Upstream.Timeout,
			CacheSize:      cfg.Upstream.CacheSize,
		},
	}
	if bp.Query == "" {
		bp.Query = "Query"
	}
	c.checkRoot(bp.Query, "query")
	if bp.Mutation != "" {
		c.checkRoot(bp.Mutation, "mutation")
	}

	if len(c.violations) > 0 {
		return nil, c.violations
	}
	for _, t := range bp.Types {
		if !t.IsLeaf() {
			t.index()
		}
	}
	return bp, nil
}

func (c *compiler) addViolation(v *Violation) {
	c.violations = append(c.violations, v)
}

func (c *compiler) renderSetting(raw string, trace ...string) string {
	if raw == "" {
		return ""
	}
	t, err := mustache.Parse(raw)
	if err != nil {
		c.addViolation(violationf(trace, "%v", err))
		return ""
	}
	return t.Render(c.reader)
}

func (c *compiler) declareTypes() {
	for _, name := range c.cfg.TypeNames() {
		ct := c.cfg.Types[name]
		if IsBuiltin(name) {
			c.addViolation(violationf([]string{name}, "type %q redefines a built-in scalar", name))
			continue
		}
		if strings.HasPrefix(name, "__") {
			c.addViolation(violationf([]string{name}, "type name %q cannot start with '__' (reserved prefix)", name))
			continue
		}
		t := &Type{Name: name, Description: ct.Description}
		switch ct.Kind {
		case "", config.KindObject:
			t.Kind = TypeKindObject
		case config.KindInput:
			t.Kind = TypeKindInputObject
		case config.KindEnum:
			t.Kind = TypeKindEnum
			t.EnumValues = append([]string(nil), ct.Values...)
			if len(t.EnumValues) == 0 {
				c.addViolation(violationf([]string{name}, "enum %s has no values", name))
			}
		case config.KindScalar:
			t.Kind = TypeKindScalar
		default:
			c.addViolation(violationf([]string{name}, "unknown type kind %q", ct.Kind))
			continue
		}
		c.types[name] = t
	}
}

func (c *compiler) compileType(name string, ct *config.Type) {
	t := c.types[name]
	if t == nil || t.IsLeaf() {
		return
	}
	if len(ct.Fields) == 0 {
		c.addViolation(violationf([]string{name}, "type %s must define at least one field", name))
		return
	}
	for _, fname := range ct.FieldNames() {
		if strings.HasPrefix(fname, "__") {
			c.addViolation(violationf([]string{name, fname}, "field name %q cannot start with '__' (reserved prefix)", fname))
			continue
		}
		if def := c.compileField(t, fname, ct.Fields[fname]); def != nil {
			t.Fields = append(t.Fields, def)
		}
	}
}

func (c *compiler) compileField(parent *Type, name string, cf *config.Field) *FieldDefinition {
	trace := []string{parent.Name, name}
	ref := c.typeRef(cf.Type, trace)
	if ref == nil {
		return nil
	}
	def := &FieldDefinition{Name: name, Description: cf.Description, Type: ref, Default: cf.Default}

	if parent.Kind == TypeKindInputObject {
		if !c.isInputType(ref) {
			c.addViolation(violationInputType(parent.Name+"."+name, ref.String(), trace...))
		}
		if len(cf.Resolvers) > 0 || len(cf.Args) > 0 {
			c.addViolation(violationf(trace, "input field %s.%s cannot declare arguments or resolvers", parent.Name, name))
		}
		return def
	}

	if c.types[ref.Name()].Kind == TypeKindInputObject {
		c.addViolation(violationOutputType(parent.Name+"."+name, ref.String(), trace...))
	}
	for _, argName := range sortedKeys(cf.Args) {
		ca := cf.Args[argName]
		argTrace := append(append([]string(nil), trace...), argName)
		argRef := c.typeRef(ca.Type, argTrace)
		if argRef == nil {
			continue
		}
		if !c.isInputType(argRef) {
			c.addViolation(violationInputType(argName, argRef.String(), argTrace...))
		}
		def.Args = append(def.Args, &InputValue{
			Name:         argName,
			Description:  ca.Description,
			Type:         argRef,
			DefaultValue: ca.Default,
		})
	}
	c.args = def.Args
	def.Resolver = c.fold(trace, cf.Resolvers)
	c.args = nil
	return def
}

func (c *compiler) typeRef(expr string, trace []string) *TypeRef {
	ref, err := ParseTypeRef(expr)
	if err != nil {
		c.addViolation(violationf(trace, "%v", err))
		return nil
	}
	if _, ok := c.types[ref.Name()]; !ok {
		c.addViolation(violationUnknownType(ref.Name(), trace...))
		return nil
	}
	return ref
}

func (c *compiler) isInputType(ref *TypeRef) bool {
	t := c.types[ref.Name()]
	return t != nil && (t.IsLeaf() || t.Kind == TypeKindInputObject)
}

func (c *compiler) checkRoot(name, role string) {
	t, ok := c.types[name]
	if !ok {
		c.addViolation(violationf([]string{"schema", role}, "%s type %q is not defined", role, name))
		return
	}
	if t.Kind != TypeKindObject {
		c.addViolation(violationf([]string{"schema", role}, "%s type %q must be an object type", role, name))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewType builds a type with an indexed field list.
func NewType(name string, kind TypeKind, fields ...*FieldDefinition) *Type {
	t := &Type{Name: name, Kind: kind, Fields: fields}
	t.index()
	return t
}

// WithTypes returns a copy of b in which the given types are added or
// replace the types of the same name. b itself is left untouched.
func (b *Blueprint) WithTypes(types ...*Type) *Blueprint {
	out := *b
	out.Types = make(map[string]*Type, len(b.Types)+len(types))
	for name, t := range b.Types {
		out.Types[name] = t
	}
	for _, t := range types {
		if t.fieldIndex == nil {
			t.index()
		}
		out.Types[t.Name] = t
	}
	return &out
}
