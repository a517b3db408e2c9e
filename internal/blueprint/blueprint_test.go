package blueprint_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/ir"
)

func mustConfig(t *testing.T, src string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(src))
	require.NoError(t, err)
	return cfg
}

func compileErr(t *testing.T, src string) blueprint.ValidationError {
	t.Helper()
	_, err := blueprint.Compile(mustConfig(t, src), blueprint.WithEnv(config.MapEnv{}))
	require.Error(t, err)
	var verr blueprint.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

const jsonplaceholder = `
upstream:
  baseURL: "{{.env.API}}"
types:
  Query:
    fields:
      posts:
        type: "[Post!]!"
        args:
          a: {type: String}
          b: {type: String}
          c: {type: String}
        resolvers:
          - http:
              path: "/{{args.b}}?a={{args.a}}&b={{args.b}}&c={{args.c}}"
          - cache:
              maxAge: 1m
  Post:
    fields:
      id: {type: "Int!"}
      userId: {type: "Int!"}
      title: {type: String}
      user:
        type: User
        resolvers:
          - http:
              path: /users/{{.value.userId}}
  User:
    fields:
      id: {type: "Int!"}
      name: {type: String}
`

func TestCompileFoldsOperators(t *testing.T) {
	bp, err := blueprint.Compile(mustConfig(t, jsonplaceholder), blueprint.WithEnv(config.MapEnv{"API": "http://localhost:3000/"}))
	require.NoError(t, err)

	posts := bp.Field("Query", "posts")
	require.NotNil(t, posts)
	require.Equal(t, "[Post!]!", posts.Type.String())
	require.Len(t, posts.Args, 3)

	cache, ok := posts.Resolver.(*ir.Cache)
	require.True(t, ok, "cache wraps the http call")
	require.Equal(t, time.Minute, cache.MaxAge)
	require.Equal(t, ir.KindHTTP, cache.IO.Kind)
	require.Equal(t, "GET", cache.IO.HTTP.Method)
	require.Equal(t, "http://localhost:3000/{{.args.b}}?a={{.args.a}}&b={{.args.b}}&c={{.args.c}}", cache.IO.HTTP.URL.String())

	user := bp.Field("Post", "user")
	io, ok := user.Resolver.(*ir.IO)
	require.True(t, ok)
	require.Equal(t, "http://localhost:3000/users/{{.value.userId}}", io.HTTP.URL.String())

	require.Nil(t, bp.Field("Post", "title").Resolver)
	require.Nil(t, bp.Field("Post", "missing"))
	require.Equal(t, "Query", bp.Query)
}

func TestCompileChainsLeavesIntoPipe(t *testing.T) {
	bp, err := blueprint.Compile(mustConfig(t, `
upstream:
  baseURL: http://upstream
types:
  Query:
    fields:
      greeting:
        type: String
        resolvers:
          - http: {path: /hello}
          - path: [data, message]
      constant:
        type: String
        resolvers:
          - const: {data: hi}
      echo:
        type: String
        args:
          msg: {type: String}
        resolvers:
          - expr: {body: "{{.args.msg}}"}
      status:
        type: String
        resolvers:
          - const: {data: 1}
          - http: {path: "/status/{{.value}}"}
`))
	require.NoError(t, err)

	p, ok := bp.Field("Query", "greeting").Resolver.(*ir.Path)
	require.True(t, ok)
	require.Len(t, p.Path, 2)
	require.IsType(t, &ir.IO{}, p.Child)

	require.Equal(t, &ir.Const{Value: "hi"}, bp.Field("Query", "constant").Resolver)
	require.IsType(t, &ir.Dynamic{}, bp.Field("Query", "echo").Resolver)

	pipe, ok := bp.Field("Query", "status").Resolver.(*ir.Pipe)
	require.True(t, ok)
	require.IsType(t, &ir.Const{}, pipe.First)
	require.IsType(t, &ir.IO{}, pipe.Second)
}

func TestCompileExtensionRequiresLink(t *testing.T) {
	verr := compileErr(t, `
types:
  Query:
    fields:
      shout:
        type: String
        resolvers:
          - extension: {params: {text: hi}}
`)
	require.Equal(t, []string{"A @link with path to dylib is required"}, verr.Messages())
	require.Equal(t, []string{"Query", "shout", "@extension"}, verr[0].Trace)
}

func TestCompileExtensionWithLink(t *testing.T) {
	bp, err := blueprint.Compile(mustConfig(t, `
links:
  - type: Extension
    src: uppercase
types:
  Query:
    fields:
      shout:
        type: String
        resolvers:
          - extension: {params: {text: "{{.args.text}}"}}
        args:
          text: {type: String}
`))
	require.NoError(t, err)
	io := bp.Field("Query", "shout").Resolver.(*ir.IO)
	require.Equal(t, ir.KindExtension, io.Kind)
	require.Equal(t, "uppercase", io.Extension.Library)
	require.NotNil(t, io.Extension.Params)
}

func TestCompileGraphQLMarksEnumArgs(t *testing.T) {
	bp, err := blueprint.Compile(mustConfig(t, `
upstream:
  baseURL: http://upstream
types:
  Query:
    fields:
      posts:
        type: "[String]"
        args:
          status: {type: Status}
          statuses: {type: "[Status!]"}
          title: {type: String}
        resolvers:
          - graphql:
              name: posts
              args:
                - {key: status, value: "{{.args.status}}"}
                - {key: any, value: "{{.args.statuses}}"}
                - {key: title, value: "{{.args.title}}"}
                - {key: label, value: "s-{{.args.status}}"}
  Status:
    kind: enum
    values: [DRAFT, PUBLISHED]
`), blueprint.WithEnv(config.MapEnv{}))
	require.NoError(t, err)
	io := bp.Field("Query", "posts").Resolver.(*ir.IO)
	require.Equal(t, map[string]bool{"status": true, "any": true}, io.GraphQL.EnumArgs)
}

func TestCompileAccumulatesAllViolations(t *testing.T) {
	verr := compileErr(t, `
types:
  Query:
    fields:
      a:
        type: Missing
      b:
        type: String
        resolvers:
          - http: {path: /b}
      c:
        type: String
        resolvers:
          - cache: {maxAge: 1s}
      d:
        type: String
        resolvers:
          - const: {data: "{{.nope}}"}
      e:
        type: String
        resolvers:
          - const: {data: 1}
            expr: {body: 2}
`)
	require.Equal(t, []string{
		`unknown type "Missing"`,
		"No base URL defined",
		"@cache requires a preceding resolver",
		`invalid template "{{.nope}}" at offset 0: unknown source "nope"`,
		"a resolver step must set exactly one operator, found 2",
	}, verr.Messages())
}

func TestCompileRejectsMissingQueryType(t *testing.T) {
	verr := compileErr(t, `
types:
  Post:
    fields:
      id: {type: Int}
`)
	require.Equal(t, []string{`query type "Query" is not defined`}, verr.Messages())
}

func TestCompileGRPCWithoutProtobufLink(t *testing.T) {
	verr := compileErr(t, `
upstream:
  baseURL: http://localhost:50051
types:
  Query:
    fields:
      news:
        type: JSON
        resolvers:
          - grpc: {method: news.NewsService.GetAllNews}
`)
	require.Equal(t, []string{`gRPC method "news.NewsService.GetAllNews" not found`}, verr.Messages())
}

func TestCompileChecksInputAndOutputKinds(t *testing.T) {
	verr := compileErr(t, `
types:
  Query:
    fields:
      post:
        type: PostInput
        args:
          filter: {type: Post}
  Post:
    fields:
      id: {type: Int}
  PostInput:
    kind: input
    fields:
      id: {type: Int}
`)
	require.Equal(t, []string{
		"field Query.post has input type PostInput; output type expected",
		"argument filter has type Post; input type expected",
	}, verr.Messages())
}

func TestRenderSDL(t *testing.T) {
	bp, err := blueprint.Compile(mustConfig(t, `
types:
  Query:
    fields:
      posts:
        type: "[Post!]!"
        args:
          first: {type: Int, default: 10}
  Post:
    description: A blog post
    fields:
      id: {type: "ID!"}
      status: {type: Status}
  Status:
    kind: enum
    values: [DRAFT, PUBLISHED]
`), blueprint.WithEnv(config.MapEnv{}))
	require.NoError(t, err)

	want := `schema {
  query: Query
}

"""
A blog post
"""
type Post {
  id: ID!
  status: Status
}

type Query {
  posts(first: Int = 10): [Post!]!
}

enum Status {
  DRAFT
  PUBLISHED
}
`
	require.Equal(t, want, blueprint.Render(bp))
}

func TestTypeRef(t *testing.T) {
	cases := []struct {
		in     string
		list   bool
		name   string
		nonNul bool
	}{
		{"Int", false, "Int", false},
		{"Int!", false, "Int", true},
		{"[Post!]!", true, "Post", true},
		{" [ [String] ] ", true, "String", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			ref, err := blueprint.ParseTypeRef(tc.in)
			require.NoError(t, err)
			isList, name := ref.Flatten()
			require.Equal(t, tc.list, isList)
			require.Equal(t, tc.name, name)
			require.Equal(t, tc.nonNul, ref.IsNonNull())
		})
	}

	for _, bad := range []string{"", "[Int", "Int!!", "1abc", "Int]"} {
		_, err := blueprint.ParseTypeRef(bad)
		require.Error(t, err, bad)
	}
}
