package ir_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlforge/internal/ir"
	"github.com/hanpama/gqlforge/internal/mustache"
)

type ctx map[string]any

func (c ctx) PathValue(path []string) (any, bool) { return mustache.Lookup(map[string]any(c), path) }

func TestParseDynamicRender(t *testing.T) {
	dv, err := ir.ParseDynamic(map[string]any{
		"id":    "{{.args.id}}",
		"label": "user-{{.args.id}}",
		"tags":  []any{"a", "{{.value.tag}}"},
		"limit": 10,
		"gone":  "{{.args.missing}}",
	})
	require.NoError(t, err)
	require.False(t, dv.IsConst())

	got := dv.Render(ctx{"args": map[string]any{"id": float64(7)}, "value": map[string]any{"tag": "b"}})
	require.Equal(t, map[string]any{
		"id":    float64(7),
		"label": "user-7",
		"tags":  []any{"a", "b"},
		"limit": 10,
		"gone":  nil,
	}, got)
}

func TestParseDynamicRejectsBadTemplate(t *testing.T) {
	_, err := ir.ParseDynamic([]any{"{{.nope.x}}"})
	require.Error(t, err)
}

func TestRewriteSharesUntouchedSubtrees(t *testing.T) {
	io := &ir.IO{Kind: ir.KindHTTP, HTTP: &ir.HTTP{Method: "GET", URL: mustache.MustParse("http://x/")}}
	c := &ir.Const{Value: 1}
	root := &ir.Pipe{First: io, Second: &ir.Path{Child: c}}

	out := ir.Rewrite(root, func(n ir.IR) (ir.IR, bool) {
		if v, ok := n.(*ir.IO); ok {
			return &ir.Cache{IO: v, MaxAge: time.Minute}, true
		}
		return nil, false
	})

	pipe, ok := out.(*ir.Pipe)
	require.True(t, ok)
	require.NotSame(t, root, pipe)
	cache, ok := pipe.First.(*ir.Cache)
	require.True(t, ok)
	require.Same(t, io, cache.IO)
	require.Same(t, root.Second, pipe.Second)
	require.True(t, ir.HasIO(out))
	require.False(t, ir.HasIO(c))
}

func TestTruthy(t *testing.T) {
	require.False(t, ir.Truthy(nil))
	require.False(t, ir.Truthy(""))
	require.False(t, ir.Truthy(float64(0)))
	require.True(t, ir.Truthy("x"))
	require.True(t, ir.Truthy([]any{1}))
	require.False(t, ir.Truthy(map[string]any{}))
}
