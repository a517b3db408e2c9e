// Package ir defines the intermediate representation a field resolver is
// compiled into. An IR tree is pure data: the executor interprets it, the
// blueprint compiler produces it, and nothing mutates it once built.
package ir

import (
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/gqlforge/internal/mustache"
)

// IR is a node of a resolver expression. The set of implementations is
// closed.
type IR interface {
	isIR()
}

// Const yields a literal value.
type Const struct {
	Value any
}

// Dynamic yields a value assembled from templates.
type Dynamic struct {
	Value DynamicValue
}

// IOKind names the transport an IO node calls.
type IOKind string

const (
	KindHTTP      IOKind = "http"
	KindGRPC      IOKind = "grpc"
	KindGraphQL   IOKind = "graphql"
	KindExtension IOKind = "extension"
)

// IO performs one upstream call. Exactly one of the kind-specific fields is
// set, matching Kind.
type IO struct {
	Kind      IOKind
	HTTP      *HTTP
	GRPC      *GRPC
	GraphQL   *GraphQL
	Extension *Extension
}

// KeyValue is a named template, used for headers and query parameters.
type KeyValue struct {
	Key   string
	Value mustache.Template
}

// HTTP describes a templated HTTP request.
type HTTP struct {
	Method   string
	URL      mustache.Template
	Query    []KeyValue
	Headers  []KeyValue
	Body     *DynamicValue
	Encoding mustache.Encoding
	// ForwardHeaders lists incoming request headers copied onto the call.
	ForwardHeaders []string
}

// GRPC describes a unary call with a templated JSON request body.
type GRPC struct {
	URL     mustache.Template
	Method  protoreflect.MethodDescriptor
	Body    *DynamicValue
	Headers []KeyValue
}

// GraphQL describes a call to an upstream GraphQL service. The selection
// set of the planned field is not forwarded; Selection is rendered verbatim.
type GraphQL struct {
	URL       mustache.Template
	Operation string
	Field     string
	Args      []KeyValue

	// EnumArgs names the Args that carry enum values. They are written as
	// bare names rather than strings.
	EnumArgs map[string]bool

	Selection      string
	Headers        []KeyValue
	ForwardHeaders []string
}

// Extension calls an in-process extension registered under Library.
type Extension struct {
	Library string
	Params  *DynamicValue
}

// Path selects a value by path from the result of Child, or from the parent
// value when Child is nil. Path elements are templates so that arguments
// can select map keys.
type Path struct {
	Child IR
	Path  []mustache.Template
}

// Map translates the string result of Child through Mapping. Values with no
// entry pass through unchanged.
type Map struct {
	Child   IR
	Mapping map[string]string
}

// Cache memoizes an IO call for MaxAge, keyed by the rendered request.
type Cache struct {
	IO     *IO
	MaxAge time.Duration
}

// Conditional evaluates Then when Cond yields a truthy value and Else
// otherwise.
type Conditional struct {
	Cond IR
	Then IR
	Else IR
}

// Pipe evaluates First and feeds its result to Second as the parent value.
type Pipe struct {
	First  IR
	Second IR
}

func (*Const) isIR()       {}
func (*Dynamic) isIR()     {}
func (*IO) isIR()          {}
func (*Path) isIR()        {}
func (*Map) isIR()         {}
func (*Cache) isIR()       {}
func (*Conditional) isIR() {}
func (*Pipe) isIR()        {}

// Truthy reports GraphQL-ish truthiness of a JSON-like value.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
