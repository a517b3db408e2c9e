package executor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/cache"
	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/executor"
	"github.com/hanpama/gqlforge/internal/jit"
	"github.com/hanpama/gqlforge/internal/language"
	"github.com/hanpama/gqlforge/internal/store"
	"github.com/hanpama/gqlforge/internal/upstream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const blog = `
upstream:
  baseURL: http://upstream
server:
  vars:
    greeting: hello
schema:
  query: Query
  mutation: Mutation
types:
  Query:
    fields:
      posts:
        type: "[Post]"
        resolvers:
          - http: {path: /posts}
      post:
        type: Post
        args:
          id: {type: "Int!"}
        resolvers:
          - http: {path: "/posts/{{.args.id}}"}
      cachedPost:
        type: Post
        resolvers:
          - http: {path: /posts/1}
          - cache: {maxAge: 1m}
      greeting:
        type: String
        args:
          name: {type: String, default: world}
        resolvers:
          - expr: {body: "{{.vars.greeting}} {{.args.name}}"}
      firstTitle:
        type: String
        resolvers:
          - http: {path: /posts}
          - path: ["0", title]
  Mutation:
    fields:
      createPost:
        type: Post
        args:
          title: {type: "String!"}
        resolvers:
          - http: {path: /posts, method: POST, body: {title: "{{.args.title}}"}}
  Post:
    fields:
      id: {type: "Int!"}
      userId: {type: "Int!"}
      title: {type: String}
      meta: {type: Meta}
      user:
        type: User
        resolvers:
          - http: {path: "/users/{{.value.userId}}"}
  Meta:
    fields:
      author:
        type: User
        resolvers:
          - http: {path: "/users/{{.value.authorId}}"}
  User:
    fields:
      id: {type: "Int!"}
      name: {type: String}
`

func testBlueprint(t *testing.T) *blueprint.Blueprint {
	t.Helper()
	cfg, err := config.Parse([]byte(blog))
	require.NoError(t, err)
	bp, err := blueprint.Compile(cfg, blueprint.WithEnv(config.MapEnv{}))
	require.NoError(t, err)
	return bp
}

func plan(t *testing.T, bp *blueprint.Blueprint, query string) *jit.OperationPlan {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	p, err := jit.NewBuilder(bp).Build(doc, "")
	require.NoError(t, err)
	return p
}

func key(f *jit.Field, indexes ...int) store.Key {
	return store.Key{Field: int(f.ID), Indexes: indexes}
}

func value(t *testing.T, s *store.Store, k store.Key) any {
	t.Helper()
	res, ok := s.Get(k)
	require.True(t, ok, "no result for %s", k)
	require.NoError(t, res.Err)
	return res.Value
}

var posts = []any{
	map[string]any{"id": float64(1), "userId": float64(1), "title": "a"},
	map[string]any{"id": float64(2), "userId": float64(1), "title": "b"},
	map[string]any{"id": float64(3), "userId": float64(2), "title": "c"},
}

func TestExecuteNestedWaves(t *testing.T) {
	bp := testBlueprint(t)
	mock := executor.NewMockTransport(executor.MockValues(map[string]any{
		"http://upstream/posts":   posts,
		"http://upstream/users/1": map[string]any{"id": float64(1), "name": "Ann"},
		"http://upstream/users/2": map[string]any{"id": float64(2), "name": "Bob"},
	}))
	p := plan(t, bp, `{ posts { id title user { name } } }`)

	s, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)

	postsField := p.Root[0]
	userField := postsField.Children[2]
	require.Equal(t, posts, value(t, s, key(postsField)))
	require.Equal(t, "Ann", value(t, s, key(userField, 0)).(map[string]any)["name"])
	require.Equal(t, "Ann", value(t, s, key(userField, 1)).(map[string]any)["name"])
	require.Equal(t, "Bob", value(t, s, key(userField, 2)).(map[string]any)["name"])
	require.Equal(t, 4, s.Len())

	// users/1 is requested by two siblings in the same wave and sent once.
	require.ElementsMatch(t, []string{
		"http://upstream/posts",
		"http://upstream/users/1",
		"http://upstream/users/2",
	}, mock.URLs())
}

func TestPhysicalFieldsDoNotCostAWave(t *testing.T) {
	bp := testBlueprint(t)
	mock := executor.NewMockTransport(executor.MockValues(map[string]any{
		"http://upstream/posts/7": map[string]any{"id": float64(7), "meta": map[string]any{"authorId": float64(3)}},
		"http://upstream/users/3": map[string]any{"id": float64(3), "name": "Cy"},
	}))
	p := plan(t, bp, `{ post(id: 7) { meta { author { name } } } }`)

	s, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)
	author := p.Root[0].Children[0].Children[0]
	require.Equal(t, map[string]any{"id": float64(3), "name": "Cy"}, value(t, s, key(author)))
	require.Equal(t, []string{"http://upstream/posts/7", "http://upstream/users/3"}, mock.URLs())
}

func TestErrorsStayWithTheirInstance(t *testing.T) {
	bp := testBlueprint(t)
	boom := errors.New("boom")
	mock := executor.NewMockTransport(executor.MockValues(map[string]any{
		"http://upstream/posts":   posts,
		"http://upstream/users/1": map[string]any{"id": float64(1), "name": "Ann"},
		"http://upstream/users/2": boom,
	}))
	p := plan(t, bp, `{ posts { user { name } } }`)

	s, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)
	user := p.Root[0].Children[0]
	require.NotNil(t, value(t, s, key(user, 0)))
	res, ok := s.Get(key(user, 2))
	require.True(t, ok)
	require.ErrorIs(t, res.Err, boom)
}

func TestArgumentsAndVariables(t *testing.T) {
	bp := testBlueprint(t)
	mock := executor.NewMockTransport(executor.MockValues(map[string]any{
		"http://upstream/posts/42": map[string]any{"id": float64(42)},
	}))
	p := plan(t, bp, `query($id: Int!) { post(id: $id) { id } }`)
	vars, err := jit.CoerceVariables(bp, p, map[string]any{"id": float64(42)})
	require.NoError(t, err)

	s, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{Variables: vars})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": float64(42)}, value(t, s, key(p.Root[0])))
}

func TestConditionsSkipCalls(t *testing.T) {
	bp := testBlueprint(t)
	mock := executor.NewMockTransport(executor.MockValues(map[string]any{
		"http://upstream/posts": posts,
	}))
	p := plan(t, bp, `query($withUser: Boolean!) { posts { id user @include(if: $withUser) { name } } }`)

	s, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{
		Variables: map[string]any{"withUser": false},
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
	require.Equal(t, []string{"http://upstream/posts"}, mock.URLs())
}

func TestExprReadsVarsAndArgs(t *testing.T) {
	bp := testBlueprint(t)
	mock := executor.NewMockTransport(executor.MockValues(nil))
	p := plan(t, bp, `{ a: greeting b: greeting(name: "Ann") }`)

	s, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)
	require.Equal(t, "hello world", value(t, s, key(p.Root[0])))
	require.Equal(t, "hello Ann", value(t, s, key(p.Root[1])))
	require.Empty(t, mock.Calls())
}

func TestPathSelectsFromResponse(t *testing.T) {
	bp := testBlueprint(t)
	mock := executor.NewMockTransport(executor.MockValues(map[string]any{
		"http://upstream/posts": posts,
	}))
	p := plan(t, bp, `{ firstTitle }`)

	s, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)
	require.Equal(t, "a", value(t, s, key(p.Root[0])))
}

func TestCacheSurvivesRequests(t *testing.T) {
	bp := testBlueprint(t)
	mock := executor.NewMockTransport(executor.MockValues(map[string]any{
		"http://upstream/posts/1": map[string]any{"id": float64(1)},
	}))
	c, err := cache.New(16)
	require.NoError(t, err)
	exec := executor.New(bp, mock.Transports(), executor.WithCache(c))
	p := plan(t, bp, `{ cachedPost { id } }`)

	for i := 0; i < 3; i++ {
		s, err := exec.Execute(context.Background(), p, executor.Request{})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"id": float64(1)}, value(t, s, key(p.Root[0])))
	}
	require.Len(t, mock.Calls(), 1)
	require.Equal(t, 1, c.Len())
}

func TestMutationRootsRunInOrder(t *testing.T) {
	bp := testBlueprint(t)
	var (
		mu     sync.Mutex
		titles []string
	)
	mock := executor.NewMockTransport(func(_ context.Context, req upstream.Request) (any, error) {
		r := req.(*upstream.HTTPRequest)
		var title string
		switch string(r.Body) {
		case `{"title":"first"}`:
			// Give a concurrent second call the chance to overtake.
			time.Sleep(20 * time.Millisecond)
			title = "first"
		case `{"title":"second"}`:
			title = "second"
		}
		mu.Lock()
		titles = append(titles, title)
		mu.Unlock()
		return map[string]any{"title": title}, nil
	})
	p := plan(t, bp, `mutation { a: createPost(title: "first") { title } b: createPost(title: "second") { title } }`)

	_, err := executor.New(bp, mock.Transports()).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"first", "second"}, titles); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "POST", mock.Calls()[0].(*upstream.HTTPRequest).Method)
}

func TestCancelledContextAborts(t *testing.T) {
	bp := testBlueprint(t)
	ctx, cancel := context.WithCancel(context.Background())
	mock := executor.NewMockTransport(func(ctx context.Context, _ upstream.Request) (any, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	p := plan(t, bp, `{ posts { user { name } } }`)

	s, err := executor.New(bp, mock.Transports()).Execute(ctx, p, executor.Request{})
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, s)
	require.Len(t, mock.Calls(), 1)
}

func TestMissingTransport(t *testing.T) {
	bp := testBlueprint(t)
	p := plan(t, bp, `{ posts { id } }`)

	s, err := executor.New(bp, upstream.Transports{}).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)
	res, ok := s.Get(key(p.Root[0]))
	require.True(t, ok)
	require.ErrorIs(t, res.Err, upstream.ErrNoTransport)
}

func TestConcurrencyLimit(t *testing.T) {
	bp := testBlueprint(t)
	var (
		mu            sync.Mutex
		running, peak int
	)
	mock := executor.NewMockTransport(func(_ context.Context, req upstream.Request) (any, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return map[string]any{"id": float64(1)}, nil
	})
	p := plan(t, bp, `{ a: post(id: 1) { id } b: post(id: 2) { id } c: post(id: 3) { id } d: post(id: 4) { id } }`)

	_, err := executor.New(bp, mock.Transports(), executor.WithConcurrency(1)).Execute(context.Background(), p, executor.Request{})
	require.NoError(t, err)
	require.Len(t, mock.Calls(), 4)
	require.Equal(t, 1, peak)
}
