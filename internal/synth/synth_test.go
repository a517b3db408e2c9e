package synth_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/gqlforge/internal/blueprint"
	"github.com/hanpama/gqlforge/internal/config"
	"github.com/hanpama/gqlforge/internal/jit"
	"github.com/hanpama/gqlforge/internal/language"
	"github.com/hanpama/gqlforge/internal/store"
	"github.com/hanpama/gqlforge/internal/synth"
)

const schema = `
upstream:
  baseURL: http://upstream
schema:
  query: Query
types:
  Query:
    fields:
      posts:
        type: "[Post]"
        resolvers: [{http: {path: /posts}}]
      strictPosts:
        type: "[Post!]"
        resolvers: [{http: {path: /posts}}]
      post:
        type: Post
        resolvers: [{http: {path: /posts/1}}]
      required:
        type: "Post!"
        resolvers: [{http: {path: /posts/1}}]
      version:
        type: String
  Post:
    fields:
      id: {type: "Int!"}
      title: {type: String}
      score: {type: Float}
      status: {type: Status}
      user:
        type: User
        resolvers: [{http: {path: "/users/{{.value.userId}}"}}]
  User:
    fields:
      id: {type: "ID!"}
      name: {type: String}
  Status:
    kind: enum
    values: [DRAFT, PUBLISHED]
`

type fixture struct {
	bp    *blueprint.Blueprint
	plan  *jit.OperationPlan
	store *store.Store
}

func setup(t *testing.T, query string) *fixture {
	t.Helper()
	cfg, err := config.Parse([]byte(schema))
	require.NoError(t, err)
	bp, err := blueprint.Compile(cfg, blueprint.WithEnv(config.MapEnv{}))
	require.NoError(t, err)
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	plan, err := jit.NewBuilder(bp).Build(doc, "")
	require.NoError(t, err)
	return &fixture{bp: bp, plan: plan, store: store.New()}
}

func (f *fixture) set(t *testing.T, field *jit.Field, value any, err error, indexes ...int) {
	t.Helper()
	require.NoError(t, f.store.Set(store.Key{Field: int(field.ID), Indexes: indexes}, store.Result{Value: value, Err: err}))
}

func (f *fixture) raw(vars map[string]any, root any) (string, synth.Result[json.RawMessage]) {
	res := synth.New[json.RawMessage](f.bp, f.plan, f.store, vars, synth.Raw{}).Run(root)
	return string(res.Data), res
}

func paths(res synth.Result[json.RawMessage]) []ast.Path {
	var out []ast.Path
	for _, e := range res.Errors {
		out = append(out, e.Path)
	}
	return out
}

func TestRawKeepsResponseOrder(t *testing.T) {
	f := setup(t, `{ posts { title id __typename } v: version }`)
	f.set(t, f.plan.Root[0], []any{
		map[string]any{"id": float64(1), "title": "a"},
		map[string]any{"id": float64(2), "title": nil},
	}, nil)

	data, res := f.raw(nil, map[string]any{"version": "v1"})
	require.Empty(t, res.Errors)
	require.Equal(t, `{"posts":[{"title":"a","id":1,"__typename":"Post"},{"title":null,"id":2,"__typename":"Post"}],"v":"v1"}`, data)
}

func TestPlainBuilder(t *testing.T) {
	f := setup(t, `{ post { id status user { id name } } }`)
	f.set(t, f.plan.Root[0], map[string]any{"id": "7", "status": "DRAFT", "userId": float64(3)}, nil)
	f.set(t, f.plan.Root[0].Children[2], map[string]any{"id": float64(3), "name": "Cy"}, nil)

	res := synth.New[any](f.bp, f.plan, f.store, nil, synth.Plain{}).Run(nil)
	require.Empty(t, res.Errors)
	want := map[string]any{"post": map[string]any{
		"id":     int64(7),
		"status": "DRAFT",
		"user":   map[string]any{"id": "3", "name": "Cy"},
	}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestResolverErrorOnNullableField(t *testing.T) {
	f := setup(t, `{ post { id } version }`)
	f.set(t, f.plan.Root[0], nil, errors.New("upstream down"))

	data, res := f.raw(nil, map[string]any{"version": "v1"})
	require.Equal(t, `{"post":null,"version":"v1"}`, data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "upstream down", res.Errors[0].Message)
	require.Equal(t, []ast.Path{{ast.PathName("post")}}, paths(res))
	require.Equal(t, 1, res.Errors[0].Locations[0].Line)
}

func TestNonNullBubblesToNullableListItem(t *testing.T) {
	f := setup(t, `{ posts { id title } }`)
	f.set(t, f.plan.Root[0], []any{
		map[string]any{"id": float64(1), "title": "a"},
		map[string]any{"id": nil, "title": "b"},
	}, nil)

	data, res := f.raw(nil, nil)
	require.Equal(t, `{"posts":[{"id":1,"title":"a"},null]}`, data)
	require.Equal(t, []ast.Path{{ast.PathName("posts"), ast.PathIndex(1), ast.PathName("id")}}, paths(res))
	require.Equal(t, "Cannot return null for non-nullable field Post.id.", res.Errors[0].Message)
}

func TestNonNullItemNullsTheList(t *testing.T) {
	f := setup(t, `{ strictPosts { id } version }`)
	f.set(t, f.plan.Root[0], []any{map[string]any{"id": float64(1)}, nil}, nil)

	data, res := f.raw(nil, map[string]any{"version": "v1"})
	require.Equal(t, `{"strictPosts":null,"version":"v1"}`, data)
	require.Equal(t, []ast.Path{{ast.PathName("strictPosts"), ast.PathIndex(1)}}, paths(res))
}

func TestNonNullRootNullsData(t *testing.T) {
	f := setup(t, `{ version required { id } }`)
	f.set(t, f.plan.Root[1], nil, errors.New("boom"))

	data, res := f.raw(nil, map[string]any{"version": "v1"})
	require.Equal(t, `null`, data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, []ast.Path{{ast.PathName("required")}}, paths(res))
}

func TestNonNullFailureKeepsSiblingErrors(t *testing.T) {
	for _, query := range []string{
		`{ required { id } post { id } }`,
		`{ post { id } required { id } }`,
	} {
		f := setup(t, query)
		for _, root := range f.plan.Root {
			f.set(t, root, nil, errors.New(root.Name+" boom"))
		}

		data, res := f.raw(nil, nil)
		require.Equal(t, `null`, data, query)
		var messages []string
		for _, e := range res.Errors {
			messages = append(messages, e.Message)
		}
		require.ElementsMatch(t, []string{"required boom", "post boom"}, messages, query)
	}
}

func TestNonNullListItemsAllReport(t *testing.T) {
	f := setup(t, `{ strictPosts { id } }`)
	f.set(t, f.plan.Root[0], []any{nil, map[string]any{"id": float64(1)}, nil}, nil)

	data, res := f.raw(nil, nil)
	require.Equal(t, `{"strictPosts":null}`, data)
	require.Equal(t, []ast.Path{
		{ast.PathName("strictPosts"), ast.PathIndex(0)},
		{ast.PathName("strictPosts"), ast.PathIndex(2)},
	}, paths(res))
}

func TestNestedResolverErrorUsesItsIndexes(t *testing.T) {
	f := setup(t, `{ posts { user { name } } }`)
	user := f.plan.Root[0].Children[0]
	f.set(t, f.plan.Root[0], []any{map[string]any{"userId": 1}, map[string]any{"userId": 2}}, nil)
	f.set(t, user, map[string]any{"name": "Ann"}, nil, 0)
	f.set(t, user, nil, errors.New("not found"), 1)

	data, res := f.raw(nil, nil)
	require.Equal(t, `{"posts":[{"user":{"name":"Ann"}},{"user":null}]}`, data)
	require.Equal(t, []ast.Path{{ast.PathName("posts"), ast.PathIndex(1), ast.PathName("user")}}, paths(res))
}

func TestLeafErrors(t *testing.T) {
	f := setup(t, `{ post { id score status title } }`)
	f.set(t, f.plan.Root[0], map[string]any{"id": float64(1), "score": "high", "status": "GONE", "title": []any{"x"}}, nil)

	data, res := f.raw(nil, nil)
	require.Equal(t, `{"post":{"id":1,"score":null,"status":null,"title":null}}`, data)
	var messages []string
	for _, e := range res.Errors {
		messages = append(messages, e.Message)
	}
	require.Equal(t, []string{
		`Float cannot represent non numeric value: "high"`,
		`Enum "Status" cannot represent value: "GONE"`,
		`String cannot represent value: ["x"]`,
	}, messages)
}

func TestExpectedIterable(t *testing.T) {
	f := setup(t, `{ posts { id } }`)
	f.set(t, f.plan.Root[0], map[string]any{"id": float64(1)}, nil)

	data, res := f.raw(nil, nil)
	require.Equal(t, `{"posts":null}`, data)
	require.Equal(t, `Expected Iterable, but did not find one for field "Query.posts".`, res.Errors[0].Message)
}

func TestConditionsOmitFields(t *testing.T) {
	f := setup(t, `query($more: Boolean!) { version posts @include(if: $more) { id } }`)

	data, res := f.raw(map[string]any{"more": false}, map[string]any{"version": "v1"})
	require.Empty(t, res.Errors)
	require.Equal(t, `{"version":"v1"}`, data)
}

func TestSerialize(t *testing.T) {
	intType := &blueprint.Type{Name: "Int", Kind: blueprint.TypeKindScalar}
	for _, tc := range []struct {
		typ  *blueprint.Type
		in   any
		want any
		err  string
	}{
		{typ: intType, in: float64(3), want: int64(3)},
		{typ: intType, in: "42", want: int64(42)},
		{typ: intType, in: 1.5, err: "Int cannot represent non-integer value: 1.5"},
		{typ: intType, in: float64(1 << 40), err: "Int cannot represent non 32-bit signed integer value: 1099511627776"},
		{typ: &blueprint.Type{Name: "Float", Kind: blueprint.TypeKindScalar}, in: int64(2), want: float64(2)},
		{typ: &blueprint.Type{Name: "String", Kind: blueprint.TypeKindScalar}, in: float64(10), want: "10"},
		{typ: &blueprint.Type{Name: "Boolean", Kind: blueprint.TypeKindScalar}, in: "true", err: `Boolean cannot represent a non boolean value: "true"`},
		{typ: &blueprint.Type{Name: "ID", Kind: blueprint.TypeKindScalar}, in: float64(12), want: "12"},
		{typ: &blueprint.Type{Name: "JSON", Kind: blueprint.TypeKindScalar}, in: map[string]any{"a": 1}, want: map[string]any{"a": 1}},
		{typ: &blueprint.Type{Name: "Color", Kind: blueprint.TypeKindEnum, EnumValues: []string{"RED"}}, in: "RED", want: "RED"},
	} {
		got, err := synth.Serialize(tc.typ, tc.in)
		if tc.err != "" {
			require.EqualError(t, err, tc.err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}
