package executor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/hanpama/gqlforge/internal/graphqlio"
	"github.com/hanpama/gqlforge/internal/ir"
	"github.com/hanpama/gqlforge/internal/mustache"
	"github.com/hanpama/gqlforge/internal/upstream"
)

// render turns an IO node into the concrete request for ec.
func render(io *ir.IO, ec *EvalContext) (upstream.Request, error) {
	switch io.Kind {
	case ir.KindHTTP:
		return renderHTTP(io.HTTP, ec)
	case ir.KindGRPC:
		return renderGRPC(io.GRPC, ec)
	case ir.KindGraphQL:
		return renderGraphQL(io.GraphQL, ec), nil
	case ir.KindExtension:
		req := &upstream.ExtensionRequest{Library: io.Extension.Library, Value: ec.Value}
		if io.Extension.Params != nil {
			req.Params = io.Extension.Params.Render(ec)
		}
		return req, nil
	}
	return nil, fmt.Errorf("executor: unknown IO kind %q", io.Kind)
}

func renderHTTP(h *ir.HTTP, ec *EvalContext) (*upstream.HTTPRequest, error) {
	strs := mustache.WithEncoding(ec, h.Encoding)
	target := h.URL.Render(strs)

	if len(h.Query) > 0 {
		q := url.Values{}
		for _, kv := range h.Query {
			if h.Encoding == mustache.RepeatedKey {
				if v, ok := kv.Value.RenderValue(ec); ok {
					if items, ok := v.([]any); ok {
						for _, item := range items {
							q.Add(kv.Key, mustache.Stringify(item, h.Encoding))
						}
						continue
					}
				}
			}
			if v := kv.Value.Render(strs); v != "" {
				q.Add(kv.Key, v)
			}
		}
		if encoded := q.Encode(); encoded != "" {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + encoded
		}
	}

	req := &upstream.HTTPRequest{
		Method:  h.Method,
		URL:     target,
		Headers: headers(ec, h.ForwardHeaders, h.Headers),
	}
	if h.Body != nil {
		body, err := json.Marshal(h.Body.Render(ec))
		if err != nil {
			return nil, fmt.Errorf("encode body for %s: %w", target, err)
		}
		req.Body = body
	}
	return req, nil
}

func renderGRPC(g *ir.GRPC, ec *EvalContext) (*upstream.GRPCRequest, error) {
	req := &upstream.GRPCRequest{
		Target: g.URL.Render(ec),
		Method: g.Method,
	}
	if g.Body != nil {
		body, err := json.Marshal(g.Body.Render(ec))
		if err != nil {
			return nil, fmt.Errorf("encode body for %s: %w", g.Method.FullName(), err)
		}
		req.Body = body
	}
	if len(g.Headers) > 0 {
		req.Headers = make(map[string]string, len(g.Headers))
		for _, kv := range g.Headers {
			req.Headers[kv.Key] = kv.Value.Render(ec)
		}
	}
	return req, nil
}

func renderGraphQL(g *ir.GraphQL, ec *EvalContext) *upstream.GraphQLRequest {
	args := make([]string, 0, len(g.Args))
	for _, kv := range g.Args {
		v, ok := kv.Value.RenderValue(ec)
		if !ok || v == nil {
			continue
		}
		if g.EnumArgs[kv.Key] {
			args = append(args, kv.Key+": "+enumLiteral(v))
			continue
		}
		args = append(args, kv.Key+": "+literal(v))
	}
	return &upstream.GraphQLRequest{
		URL:     g.URL.Render(ec),
		Query:   graphqlio.BuildQuery(g.Operation, g.Field, strings.Join(args, ", "), g.Selection),
		Field:   g.Field,
		Headers: headers(ec, g.ForwardHeaders, g.Headers),
	}
}

// headers copies the allowed incoming headers, then applies the configured
// ones on top.
func headers(ec *EvalContext, forward []string, configured []ir.KeyValue) http.Header {
	out := http.Header{}
	for _, name := range forward {
		for _, v := range ec.Header.Values(name) {
			out.Add(name, v)
		}
	}
	for _, kv := range configured {
		out.Set(kv.Key, kv.Value.Render(ec))
	}
	return out
}

// enumLiteral writes enum names bare. Lists of names stay lists.
func enumLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = enumLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return literal(v)
}

// literal writes v as a GraphQL input literal.
func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		b, _ := json.Marshal(x)
		return string(b)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = literal(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + literal(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return mustache.Stringify(x, mustache.CommaSeparated)
	}
}
