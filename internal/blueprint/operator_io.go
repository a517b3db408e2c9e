package blueprint

import (
	"net/http"
	"strings"

	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/ir"
	"github.com/hanpama/gqlforge/internal/mustache"
)

func compileHTTP(c *compiler, op config.Operator, trace []string) (ir.IR, bool) {
	h := op.HTTP
	base, ok := c.baseFor(h.BaseURL, trace)
	if !ok {
		return nil, false
	}
	url, ok := c.parseTemplate(base+h.Path, trace)
	if !ok {
		return nil, false
	}
	method := strings.ToUpper(h.Method)
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead:
	default:
		c.addViolation(violationf(trace, "unsupported HTTP method %q", h.Method))
		return nil, false
	}
	call := &ir.HTTP{
		Method:         method,
		URL:            url,
		ForwardHeaders: c.cfg.Upstream.AllowedHeaders,
	}
	switch h.Encoding {
	case "", "CommaSeparated":
		call.Encoding = mustache.CommaSeparated
	case "RepeatedKey":
		call.Encoding = mustache.RepeatedKey
	default:
		c.addViolation(violationf(trace, "unknown encoding %q", h.Encoding))
		return nil, false
	}
	if call.Query, ok = c.parseKeyValues(h.Query, trace); !ok {
		return nil, false
	}
	if call.Headers, ok = c.parseKeyValues(h.Headers, trace); !ok {
		return nil, false
	}
	if h.Body != nil {
		body, err := ir.ParseDynamic(h.Body)
		if err != nil {
			c.addViolation(violationf(trace, "%v", err))
			return nil, false
		}
		call.Body = &body
	}
	return &ir.IO{Kind: ir.KindHTTP, HTTP: call}, true
}

func compileGRPC(c *compiler, op config.Operator, trace []string) (ir.IR, bool) {
	g := op.GRPC
	base, ok := c.baseFor(g.BaseURL, trace)
	if !ok {
		return nil, false
	}
	url, ok := c.parseTemplate(base, trace)
	if !ok {
		return nil, false
	}
	if g.Method == "" {
		c.addViolation(violationf(trace, "grpc requires a method"))
		return nil, false
	}
	if c.methods == nil {
		c.addViolation(violationf(trace, "gRPC method %q not found", g.Method))
		return nil, false
	}
	md, err := c.methods.FindMethod(g.Method)
	if err != nil {
		c.addViolation(violationf(trace, "gRPC method %q not found", g.Method))
		return nil, false
	}
	if md.IsStreamingClient() || md.IsStreamingServer() {
		c.addViolation(violationf(trace, "gRPC method %q is streaming; only unary methods are supported", g.Method))
		return nil, false
	}
	call := &ir.GRPC{URL: url, Method: md}
	if call.Headers, ok = c.parseKeyValues(g.Headers, trace); !ok {
		return nil, false
	}
	if g.Body != nil {
		body, err := ir.ParseDynamic(g.Body)
		if err != nil {
			c.addViolation(violationf(trace, "%v", err))
			return nil, false
		}
		call.Body = &body
	}
	return &ir.IO{Kind: ir.KindGRPC, GRPC: call}, true
}

func compileGraphQL(c *compiler, op config.Operator, trace []string) (ir.IR, bool) {
	g := op.GraphQL
	base, ok := c.baseFor(g.BaseURL, trace)
	if !ok {
		return nil, false
	}
	url, ok := c.parseTemplate(base, trace)
	if !ok {
		return nil, false
	}
	if g.Name == "" {
		c.addViolation(violationf(trace, "graphql requires the upstream field name"))
		return nil, false
	}
	call := &ir.GraphQL{
		URL:            url,
		Operation:      "query",
		Field:          g.Name,
		Selection:      strings.TrimSpace(g.Selection),
		ForwardHeaders: c.cfg.Upstream.AllowedHeaders,
	}
	if g.Mutation {
		call.Operation = "mutation"
	}
	if call.Args, ok = c.parseKeyValues(g.Args, trace); !ok {
		return nil, false
	}
	call.EnumArgs = c.enumArgs(call.Args)
	if call.Headers, ok = c.parseKeyValues(g.Headers, trace); !ok {
		return nil, false
	}
	return &ir.IO{Kind: ir.KindGraphQL, GraphQL: call}, true
}

// enumArgs picks the upstream arguments whose template is exactly one
// enum-typed field argument, such as {{.args.status}}.
func (c *compiler) enumArgs(args []ir.KeyValue) map[string]bool {
	var out map[string]bool
	for _, kv := range args {
		exprs := kv.Value.Expressions()
		if len(kv.Value.Segments) != 1 || len(exprs) != 1 {
			continue
		}
		path := exprs[0].Path
		if len(path) != 2 || exprs[0].Source() != mustache.SourceArgs {
			continue
		}
		for _, a := range c.args {
			if a.Name != path[1] {
				continue
			}
			if t := c.types[a.Type.Name()]; t != nil && t.Kind == TypeKindEnum {
				if out == nil {
					out = make(map[string]bool)
				}
				out[kv.Key] = true
			}
		}
	}
	return out
}

func compileExtension(c *compiler, op config.Operator, trace []string) (ir.IR, bool) {
	link, ok := c.cfg.FindLink(config.LinkExtension)
	if !ok || link.Src == "" {
		c.addViolation(&Violation{Message: msgExtensionLinkRequired, Trace: trace})
		return nil, false
	}
	if c.extensions != nil && !c.extensions.Has(link.Src) {
		c.addViolation(violationf(trace, "extension %q is not registered", link.Src))
		return nil, false
	}
	call := &ir.Extension{Library: link.Src}
	if op.Extension.Params != nil {
		params, err := ir.ParseDynamic(op.Extension.Params)
		if err != nil {
			c.addViolation(violationf(trace, "%v", err))
			return nil, false
		}
		call.Params = &params
	}
	return &ir.IO{Kind: ir.KindExtension, Extension: call}, true
}

func (c *compiler) baseFor(own string, trace []string) (string, bool) {
	base := c.baseURL
	if own != "" {
		base = c.renderSetting(own, trace...)
	}
	if base == "" {
		c.addViolation(violationNoBaseURL(trace...))
		return "", false
	}
	return strings.TrimRight(base, "/"), true
}

func (c *compiler) parseTemplate(raw string, trace []string) (mustache.Template, bool) {
	t, err := mustache.Parse(raw)
	if err != nil {
		c.addViolation(violationf(trace, "%v", err))
		return mustache.Template{}, false
	}
	return t, true
}

func (c *compiler) parseKeyValues(kvs []config.KeyValue, trace []string) ([]ir.KeyValue, bool) {
	if len(kvs) == 0 {
		return nil, true
	}
	out := make([]ir.KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		if kv.Key == "" {
			c.addViolation(violationf(trace, "key must not be empty"))
			return nil, false
		}
		t, ok := c.parseTemplate(kv.Value, trace)
		if !ok {
			return nil, false
		}
		out = append(out, ir.KeyValue{Key: kv.Key, Value: t})
	}
	return out, true
}
