package executor

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/ir"
	"github.com/hanpama/gqlforge/internal/mustache"
	"github.com/hanpama/gqlforge/internal/upstream"
)

func testContext() *EvalContext {
	return &EvalContext{
		Value: map[string]any{"userId": float64(3), "tags": []any{"a", "b"}},
		Args:  map[string]any{"id": int64(7), "ids": []any{int64(1), int64(2)}, "input": map[string]any{"title": "t"}},
		Vars:  map[string]string{"region": "eu"},
		Header: http.Header{
			"Authorization": {"Bearer x"},
			"X-Trace":       {"1"},
		},
		Env: config.MapEnv{"TOKEN": "secret"},
	}
}

func TestEvalContextSources(t *testing.T) {
	ec := testContext()
	for path, want := range map[string]any{
		"value.userId":          float64(3),
		"value.tags.1":          "b",
		"args.id":               int64(7),
		"args.input.title":      "t",
		"vars.region":           "eu",
		"headers.authorization": "Bearer x",
		"env.TOKEN":             "secret",
	} {
		tmpl := mustache.MustParse("{{." + path + "}}")
		got, ok := tmpl.RenderValue(ec)
		require.True(t, ok, path)
		require.Equal(t, want, got, path)
	}
	for _, path := range []string{"value.missing", "args.nope", "vars.nope", "headers.x-none", "env.NONE", "vars.region.deep"} {
		_, ok := ec.PathValue(mustache.MustParse("{{." + path + "}}").Expressions()[0].Path)
		require.False(t, ok, path)
	}
	require.Equal(t, ec.Header, ec.Headers())
}

func TestRenderHTTP(t *testing.T) {
	ec := testContext()
	h := &ir.HTTP{
		Method: http.MethodGet,
		URL:    mustache.MustParse("http://api/{{.vars.region}}/users/{{.value.userId}}"),
		Query: []ir.KeyValue{
			{Key: "ids", Value: mustache.MustParse("{{.args.ids}}")},
			{Key: "empty", Value: mustache.MustParse("{{.args.missing}}")},
		},
		Headers:        []ir.KeyValue{{Key: "X-Token", Value: mustache.MustParse("{{.env.TOKEN}}")}},
		ForwardHeaders: []string{"Authorization"},
	}

	req, err := renderHTTP(h, ec)
	require.NoError(t, err)
	require.Equal(t, "http://api/eu/users/3?ids=1%2C2", req.URL)
	require.Equal(t, "Bearer x", req.Headers.Get("Authorization"))
	require.Equal(t, "secret", req.Headers.Get("X-Token"))
	require.Empty(t, req.Headers.Get("X-Trace"))
	require.Nil(t, req.Body)

	h.Encoding = mustache.RepeatedKey
	req, err = renderHTTP(h, ec)
	require.NoError(t, err)
	require.Equal(t, "http://api/eu/users/3?ids=1&ids=2", req.URL)
}

func TestRenderHTTPBody(t *testing.T) {
	body, err := ir.ParseDynamic(map[string]any{"post": "{{.args.input}}", "by": "{{.value.userId}}"})
	require.NoError(t, err)
	req, err := renderHTTP(&ir.HTTP{
		Method: http.MethodPost,
		URL:    mustache.MustParse("http://api/posts?x=1"),
		Query:  []ir.KeyValue{{Key: "y", Value: mustache.MustParse("2")}},
		Body:   &body,
	}, testContext())
	require.NoError(t, err)
	require.Equal(t, "http://api/posts?x=1&y=2", req.URL)
	require.JSONEq(t, `{"post":{"title":"t"},"by":3}`, string(req.Body))
}

func TestRenderGraphQL(t *testing.T) {
	req := renderGraphQL(&ir.GraphQL{
		URL:       mustache.MustParse("http://gql"),
		Operation: "query",
		Field:     "user",
		Args: []ir.KeyValue{
			{Key: "id", Value: mustache.MustParse("{{.args.id}}")},
			{Key: "input", Value: mustache.MustParse("{{.args.input}}")},
			{Key: "skip", Value: mustache.MustParse("{{.args.missing}}")},
		},
		Selection: "{ id name }",
	}, testContext())
	require.Equal(t, `query { user(id: 7, input: {title: "t"}) { id name } }`, req.Query)
	require.Equal(t, "user", req.Field)
	require.Equal(t, "http://gql", req.URL)
}

func TestRenderGraphQLEnumArgs(t *testing.T) {
	ec := testContext()
	ec.Args = map[string]any{"status": "PUBLISHED", "statuses": []any{"DRAFT", "PUBLISHED"}, "title": "PUBLISHED"}
	req := renderGraphQL(&ir.GraphQL{
		URL:       mustache.MustParse("http://gql"),
		Operation: "query",
		Field:     "posts",
		Args: []ir.KeyValue{
			{Key: "status", Value: mustache.MustParse("{{.args.status}}")},
			{Key: "statuses", Value: mustache.MustParse("{{.args.statuses}}")},
			{Key: "title", Value: mustache.MustParse("{{.args.title}}")},
		},
		EnumArgs: map[string]bool{"status": true, "statuses": true},
	}, ec)
	require.Equal(t, `query { posts(status: PUBLISHED, statuses: [DRAFT, PUBLISHED], title: "PUBLISHED") }`, req.Query)
}

func TestRenderExtension(t *testing.T) {
	params, err := ir.ParseDynamic(map[string]any{"id": "{{.args.id}}"})
	require.NoError(t, err)
	req, err := render(&ir.IO{Kind: ir.KindExtension, Extension: &ir.Extension{Library: "lib", Params: &params}}, testContext())
	require.NoError(t, err)
	ext := req.(*upstream.ExtensionRequest)
	require.Equal(t, map[string]any{"id": int64(7)}, ext.Params)
	require.Equal(t, testContext().Value, ext.Value)
}

func TestLiteral(t *testing.T) {
	for want, v := range map[string]any{
		`null`:              nil,
		`"a\"b"`:            `a"b`,
		`1.5`:               1.5,
		`true`:              true,
		`[1, "x"]`:          []any{int64(1), "x"},
		`{a: 1, b: [null]}`: map[string]any{"b": []any{nil}, "a": float64(1)},
	} {
		require.Equal(t, want, literal(v))
	}
}

func TestFlightsCoalesce(t *testing.T) {
	f := newFlights()
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.do(context.Background(), 1, func() (any, error) {
				calls.Add(1)
				<-release
				return "v", nil
			})
			require.NoError(t, err)
			results[i] = v
		}()
	}
	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		require.Equal(t, "v", v)
	}

	v, err := f.do(context.Background(), 2, func() (any, error) { return "w", nil })
	require.NoError(t, err)
	require.Equal(t, "w", v)
}

func TestFlightWaitHonorsContext(t *testing.T) {
	f := newFlights()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.do(context.Background(), 1, func() (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.do(ctx, 1, func() (any, error) { return "never", nil })
	require.ErrorIs(t, err, context.Canceled)
	close(release)
	<-done
}
