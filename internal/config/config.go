// Package config holds the declarative engine configuration: the types the
// graph exposes, and for each field the chain of operators that resolves it.
package config

import (
	"sort"
	"time"
)

type Config struct {
	Server   Server           `yaml:"server"`
	Upstream Upstream         `yaml:"upstream"`
	Links    []Link           `yaml:"links"`
	Schema   Schema           `yaml:"schema"`
	Types    map[string]*Type `yaml:"types"`
}

type Server struct {
	Port            int               `yaml:"port"`
	QueryComplexity int               `yaml:"queryComplexity"`
	QueryDepth      int               `yaml:"queryDepth"`
	PlanCacheSize   int               `yaml:"planCacheSize"`
	Vars            map[string]string `yaml:"vars"`
	Timeout         time.Duration     `yaml:"timeout"`
	GraphiQL        bool              `yaml:"graphiql"`
}

type Upstream struct {
	BaseURL        string        `yaml:"baseURL"`
	AllowedHeaders []string      `yaml:"allowedHeaders"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheSize      int           `yaml:"cacheSize"`
}

// LinkType names what a link points at.
type LinkType string

const (
	LinkProtobuf  LinkType = "Protobuf"
	LinkExtension LinkType = "Extension"
)

// Link imports an external artifact into the configuration.
type Link struct {
	ID   string   `yaml:"id"`
	Type LinkType `yaml:"type"`
	Src  string   `yaml:"src"`
}

type Schema struct {
	Query    string `yaml:"query"`
	Mutation string `yaml:"mutation"`
}

// TypeKind discriminates the kinds of configured types.
type TypeKind string

const (
	KindObject TypeKind = "object"
	KindInput  TypeKind = "input"
	KindEnum   TypeKind = "enum"
	KindScalar TypeKind = "scalar"
)

type Type struct {
	Kind        TypeKind          `yaml:"kind"`
	Description string            `yaml:"description"`
	Fields      map[string]*Field `yaml:"fields"`
	Values      []string          `yaml:"values"`
}

type Field struct {
	Type        string          `yaml:"type"`
	Description string          `yaml:"description"`
	Args        map[string]*Arg `yaml:"args"`
	Default     any             `yaml:"default"`
	Resolvers   []Operator      `yaml:"resolvers"`
}

type Arg struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
}

// Operator is one step of a field's resolver chain. Exactly one member is
// expected to be set.
type Operator struct {
	HTTP      *HTTP             `yaml:"http,omitempty"`
	GRPC      *GRPC             `yaml:"grpc,omitempty"`
	GraphQL   *GraphQL          `yaml:"graphql,omitempty"`
	Extension *Extension        `yaml:"extension,omitempty"`
	Const     *Const            `yaml:"const,omitempty"`
	Expr      *Expr             `yaml:"expr,omitempty"`
	Cache     *Cache            `yaml:"cache,omitempty"`
	Path      []string          `yaml:"path,omitempty"`
	Map       map[string]string `yaml:"map,omitempty"`
}

// Name returns the operator keyword, or "" when none is set.
func (o Operator) Name() string {
	switch {
	case o.HTTP != nil:
		return "http"
	case o.GRPC != nil:
		return "grpc"
	case o.GraphQL != nil:
		return "graphql"
	case o.Extension != nil:
		return "extension"
	case o.Const != nil:
		return "const"
	case o.Expr != nil:
		return "expr"
	case o.Cache != nil:
		return "cache"
	case o.Path != nil:
		return "path"
	case o.Map != nil:
		return "map"
	}
	return ""
}

// Count returns how many members are set.
func (o Operator) Count() int {
	n := 0
	for _, set := range []bool{
		o.HTTP != nil, o.GRPC != nil, o.GraphQL != nil, o.Extension != nil,
		o.Const != nil, o.Expr != nil, o.Cache != nil, o.Path != nil, o.Map != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

type KeyValue struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type HTTP struct {
	BaseURL  string     `yaml:"baseURL"`
	Path     string     `yaml:"path"`
	Method   string     `yaml:"method"`
	Query    []KeyValue `yaml:"query"`
	Headers  []KeyValue `yaml:"headers"`
	Body     any        `yaml:"body"`
	Encoding string     `yaml:"encoding"`
}

type GRPC struct {
	BaseURL string     `yaml:"baseURL"`
	Method  string     `yaml:"method"`
	Body    any        `yaml:"body"`
	Headers []KeyValue `yaml:"headers"`
}

type GraphQL struct {
	BaseURL   string     `yaml:"baseURL"`
	Name      string     `yaml:"name"`
	Args      []KeyValue `yaml:"args"`
	Selection string     `yaml:"selection"`
	Headers   []KeyValue `yaml:"headers"`
	Mutation  bool       `yaml:"mutation"`
}

type Extension struct {
	Params any `yaml:"params"`
}

type Const struct {
	Data any `yaml:"data"`
}

type Expr struct {
	Body any `yaml:"body"`
}

type Cache struct {
	MaxAge time.Duration `yaml:"maxAge"`
}

// TypeNames returns the configured type names in sorted order.
func (c *Config) TypeNames() []string {
	names := make([]string, 0, len(c.Types))
	for name := range c.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldNames returns the type's field names in sorted order.
func (t *Type) FieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindLink returns the first link of the given type.
func (c *Config) FindLink(typ LinkType) (Link, bool) {
	for _, l := range c.Links {
		if l.Type == typ {
			return l, true
		}
	}
	return Link{}, false
}

// LinksOf returns every link of the given type.
func (c *Config) LinksOf(typ LinkType) []Link {
	var out []Link
	for _, l := range c.Links {
		if l.Type == typ {
			out = append(out, l)
		}
	}
	return out
}
