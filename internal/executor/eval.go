package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/ir"
	"github.com/hanpama/gqlforge/internal/mustache"
	"github.com/hanpama/gqlforge/internal/upstream"
)

// EvalContext is what a resolver expression can read while it is being
// evaluated for one field instance.
type EvalContext struct {
	Value  any
	Args   map[string]any
	Vars   map[string]string
	Header http.Header
	Env    config.Env
}

var (
	_ mustache.PathValue  = (*EvalContext)(nil)
	_ mustache.PathString = (*EvalContext)(nil)
	_ mustache.HasHeaders = (*EvalContext)(nil)
)

func (c *EvalContext) PathValue(path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	rest := path[1:]
	switch mustache.Source(path[0]) {
	case mustache.SourceValue:
		return mustache.Lookup(c.Value, rest)
	case mustache.SourceArgs:
		if c.Args == nil {
			return nil, false
		}
		return mustache.Lookup(c.Args, rest)
	case mustache.SourceVars:
		if len(rest) != 1 {
			return nil, false
		}
		v, ok := c.Vars[rest[0]]
		return v, ok
	case mustache.SourceHeaders:
		if len(rest) != 1 {
			return nil, false
		}
		vs := c.Header.Values(rest[0])
		if len(vs) == 0 {
			return nil, false
		}
		return strings.Join(vs, ","), true
	case mustache.SourceEnv:
		if len(rest) != 1 || c.Env == nil {
			return nil, false
		}
		return c.Env.Get(rest[0])
	}
	return nil, false
}

func (c *EvalContext) PathString(path []string) (string, bool) {
	return mustache.WithEncoding(c, mustache.CommaSeparated).PathString(path)
}

func (c *EvalContext) Headers() http.Header { return c.Header }

// WithValue returns a copy of c whose parent value is v.
func (c *EvalContext) WithValue(v any) *EvalContext {
	cp := *c
	cp.Value = v
	return &cp
}

func (r *run) eval(ctx context.Context, node ir.IR, ec *EvalContext, inflight *flights) (any, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case *ir.Const:
		return n.Value, nil
	case *ir.Dynamic:
		return n.Value.Render(ec), nil
	case *ir.IO:
		return r.call(ctx, n, ec, inflight, nil)
	case *ir.Cache:
		return r.call(ctx, n.IO, ec, inflight, n)
	case *ir.Path:
		src := ec.Value
		if n.Child != nil {
			v, err := r.eval(ctx, n.Child, ec, inflight)
			if err != nil {
				return nil, err
			}
			src = v
		}
		path := make([]string, len(n.Path))
		for i, t := range n.Path {
			path[i] = t.Render(ec)
		}
		v, _ := mustache.Lookup(src, path)
		return v, nil
	case *ir.Map:
		v, err := r.eval(ctx, n.Child, ec, inflight)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok {
			if mapped, ok := n.Mapping[s]; ok {
				return mapped, nil
			}
		}
		return v, nil
	case *ir.Conditional:
		cond, err := r.eval(ctx, n.Cond, ec, inflight)
		if err != nil {
			return nil, err
		}
		if ir.Truthy(cond) {
			return r.eval(ctx, n.Then, ec, inflight)
		}
		return r.eval(ctx, n.Else, ec, inflight)
	case *ir.Pipe:
		v, err := r.eval(ctx, n.First, ec, inflight)
		if err != nil {
			return nil, err
		}
		return r.eval(ctx, n.Second, ec.WithValue(v), inflight)
	}
	return nil, fmt.Errorf("executor: unsupported resolver %T", node)
}

// call renders io and performs it once per wave and key. With a Cache node
// a fresh cached response is used instead, and a new one is stored.
func (r *run) call(ctx context.Context, io *ir.IO, ec *EvalContext, inflight *flights, cached *ir.Cache) (any, error) {
	req, err := render(io, ec)
	if err != nil {
		return nil, err
	}
	key := req.Key()
	useCache := cached != nil && r.cache != nil
	if useCache {
		if v, ok := r.cache.Get(key); ok {
			return v, nil
		}
	}
	v, err := inflight.do(ctx, key, func() (any, error) {
		return r.send(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if useCache {
		r.cache.Set(key, v, cached.MaxAge)
	}
	return v, nil
}

func (r *run) send(ctx context.Context, req upstream.Request) (any, error) {
	t := r.transports
	switch req := req.(type) {
	case *upstream.HTTPRequest:
		if t.HTTP == nil {
			return nil, fmt.Errorf("http %s: %w", req.URL, upstream.ErrNoTransport)
		}
		return t.HTTP.Do(ctx, req)
	case *upstream.GRPCRequest:
		if t.GRPC == nil {
			return nil, fmt.Errorf("grpc %s: %w", req.Method.FullName(), upstream.ErrNoTransport)
		}
		return t.GRPC.Call(ctx, req)
	case *upstream.GraphQLRequest:
		if t.GraphQL == nil {
			return nil, fmt.Errorf("graphql %s: %w", req.URL, upstream.ErrNoTransport)
		}
		return t.GraphQL.Query(ctx, req)
	case *upstream.ExtensionRequest:
		if t.Extension == nil {
			return nil, fmt.Errorf("extension %s: %w", req.Library, upstream.ErrNoTransport)
		}
		return t.Extension.Invoke(ctx, req)
	}
	return nil, fmt.Errorf("executor: unsupported request %T", req)
}
